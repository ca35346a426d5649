package http

import (
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	applog "finanzas/internal/log"
)

type simulationResponse struct {
	Items      []core.SimulationItem `json:"items"`
	Projection *ledger.Projection    `json:"projection,omitempty"`
}

// simulation snapshots the session and projects it against ref. The store
// is read before the session lock is taken.
func (s *Server) simulation(r *http.Request, items func() []core.SimulationItem, project func(ledger.Aggregates) ledger.Projection, ref core.MonthKey) simulationResponse {
	resp := simulationResponse{Items: items()}
	if resp.Items == nil {
		resp.Items = []core.SimulationItem{}
	}
	if len(resp.Items) > 0 {
		p := project(ledger.Aggregate(s.ledger.Transactions(r.Context()), ref))
		resp.Projection = &p
	}
	return resp
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	ref, ok := month(w, r)
	if !ok {
		return
	}
	sess, found := s.existingSession(r)
	if !found {
		NewResponse().JSON(simulationResponse{Items: []core.SimulationItem{}}).Write(w)
		return
	}
	NewResponse().JSON(s.simulation(r, sess.Items, sess.Project, ref)).Write(w)
}

// handleAddSimulation adds a hypothetical entry to the caller's session.
// Nothing reaches the store.
func (s *Server) handleAddSimulation(w http.ResponseWriter, r *http.Request) {
	ref, ok := month(w, r)
	if !ok {
		return
	}
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

	sess := s.session(w, r)
	item, err := sess.Add(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Simulation item added",
		applog.FieldSessionID, sess.ID, applog.FieldTxType, item.Type, applog.FieldAmount, item.Amount.String())
	NewResponse().Status(http.StatusCreated).JSON(s.simulation(r, sess.Items, sess.Project, ref)).Write(w)
}

func (s *Server) handleClearSimulation(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.existingSession(r); ok {
		sess.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}
