package http

import (
	"errors"
	"net/http"

	"finanzas/internal/charts"
	"finanzas/internal/ledger"
)

func (s *Server) writeChart(w http.ResponseWriter, r *http.Request, img []byte, err error) {
	if errors.Is(err, charts.ErrNoData) {
		NotFoundError("no data to chart").Write(w)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().PNG(img).Write(w)
}

func (s *Server) handleEvolutionChart(w http.ResponseWriter, r *http.Request) {
	series := ledger.MonthlySeries(s.ledger.Transactions(r.Context()), s.ledger.MonthNames())
	img, err := charts.Evolution(series)
	s.writeChart(w, r, img, err)
}

func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	series := ledger.MonthlySeries(s.ledger.Transactions(r.Context()), s.ledger.MonthNames())
	img, err := charts.Trend(series)
	s.writeChart(w, r, img, err)
}

// handleCategoriesChart draws the category split. metric is cash or
// impact; month restricts it to one month.
func (s *Server) handleCategoriesChart(w http.ResponseWriter, r *http.Request) {
	metric := ledger.Metric(r.URL.Query().Get("metric"))
	if metric == "" {
		metric = ledger.MetricCash
	}
	if !metric.Valid() {
		BadRequestError("metric must be cash or impact").Write(w)
		return
	}

	txs := s.ledger.Transactions(r.Context())
	title := "Gasto por categoría"
	if metric == ledger.MetricImpact {
		title = "Impacto mensual por categoría"
	}
	if r.URL.Query().Get("month") != "" {
		ref, ok := month(w, r)
		if !ok {
			return
		}
		txs = ledger.InMonth(txs, ref)
		title += " " + s.ledger.MonthNames().Name(ref.Month) + " " + ref.String()[:4]
	}

	img, err := charts.Categories(ledger.CategoryTotals(txs, metric), title)
	s.writeChart(w, r, img, err)
}
