package http

import (
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/importer"
	"finanzas/internal/ledger"
	applog "finanzas/internal/log"
)

// report builds the dashboard for ref, adding the caller's projection
// when they have a non-empty simulation.
func (s *Server) report(r *http.Request, ref core.MonthKey) ledger.Report {
	rep := s.ledger.Report(r.Context(), ref)
	if sess, ok := s.existingSession(r); ok && sess.Len() > 0 {
		p := sess.Project(rep.Aggregates)
		rep.Projection = &p
	}
	return rep
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ref, ok := month(w, r)
	if !ok {
		return
	}
	NewResponse().JSON(s.report(r, ref)).Write(w)
}

// handleSummary returns the plain-text digest handed to the assistant.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ref, ok := month(w, r)
	if !ok {
		return
	}
	NewResponse().Text(ledger.Summary(s.report(r, ref), s.ledger.MonthNames())).Write(w)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	series := ledger.MonthlySeries(s.ledger.Transactions(r.Context()), s.ledger.MonthNames())
	if series == nil {
		series = []ledger.SeriesPoint{}
	}
	NewResponse().JSON(series).Write(w)
}

// handleListTransactions lists the whole ledger, or one month when month
// is given.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := s.ledger.Transactions(r.Context())
	if r.URL.Query().Get("month") != "" {
		ref, ok := month(w, r)
		if !ok {
			return
		}
		txs = ledger.InMonth(txs, ref)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewResponse().JSON(txs).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.AddTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.afterSave(r)
	NewResponse().Status(http.StatusCreated).JSON(tx).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.ledger.UpdateTransaction(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.afterSave(r)
	NewResponse().JSON(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.afterSave(r)
	w.WriteHeader(http.StatusNoContent)
}

// handleReplaceTransactions is the bulk edit: the body becomes the whole
// ledger.
func (s *Server) handleReplaceTransactions(w http.ResponseWriter, r *http.Request) {
	var reqs []bulkRowRequest
	if err := decodeJSON(w, r, &reqs); err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := bulkRows(reqs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.ledger.ReplaceTransactions(r.Context(), rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.afterSave(r)
	NewResponse().JSON(txs).Write(w)
}

type importResponse struct {
	importer.Report
	Rejected []string `json:"rejected"`
}

// handleImport reads a CSV body. Query flags: create_categories, dry_run,
// delimiter and locale.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := importer.Options{
		AllowNewCategories: queryBool(q, "create_categories"),
		DryRun:             queryBool(q, "dry_run"),
	}
	if d := q.Get("delimiter"); d != "" {
		opts.Comma = []rune(d)[0]
	}
	loc, err := core.ParseLocale(q.Get("locale"))
	if err != nil {
		writeError(w, r, &core.ValidationError{Field: "locale", Err: err})
		return
	}
	opts.Locale = loc

	body := http.MaxBytesReader(w, r.Body, s.opts.MaxImportBytes)
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentImport)
	rep, err := importer.New(s.ledger, opts, logger.Logger).Import(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !opts.DryRun && rep.Imported > 0 {
		s.afterSave(r)
	}
	NewResponse().JSON(importResponse{Report: rep, Rejected: rep.Messages()}).Write(w)
}
