package http

import (
	"net/http"

	"finanzas/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.ledger.Categories(r.Context())).Write(w)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cats, err := s.ledger.AddCategory(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(cats).Write(w)
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.RemoveCategory(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(cats).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets := s.ledger.Budgets(r.Context())
	if budgets == nil {
		budgets = []core.Budget{}
	}
	NewResponse().JSON(budgets).Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.ledger.SetBudget(r.Context(), r.PathValue("category"), req.MonthlyLimit.Decimal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(b).Write(w)
}

func (s *Server) handleRemoveBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RemoveBudget(r.Context(), r.PathValue("category")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls := s.ledger.Templates(r.Context())
	if tpls == nil {
		tpls = []core.RecurringTemplate{}
	}
	NewResponse().JSON(tpls).Write(w)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.template()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.ledger.AddTemplate(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(created).Write(w)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.template()
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.ledger.UpdateTemplate(r.Context(), r.PathValue("id"), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTemplate(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type materializeResponse struct {
	Posted   []core.Transaction `json:"posted"`
	Warnings []string           `json:"warnings,omitempty"`
}

// handleMaterialize posts every template on the given date, today when
// the body is empty.
func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	var req materializeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	date := req.Date
	if date.IsZero() {
		date = core.Today()
	}

	posted, warnings, err := s.ledger.Materialize(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(posted) > 0 {
		s.afterSave(r)
	}
	resp := materializeResponse{Posted: posted}
	if resp.Posted == nil {
		resp.Posted = []core.Transaction{}
	}
	for _, warning := range warnings {
		resp.Warnings = append(resp.Warnings, warning.Error())
	}
	NewResponse().Status(http.StatusCreated).JSON(resp).Write(w)
}
