package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"finanzas/internal/core"
	applog "finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/services"
	"finanzas/internal/session"
)

// SessionCookie carries the simulation session ID.
const SessionCookie = "finanzas_session"

// Options tunes the server. The zero value is usable.
type Options struct {
	// ClearSimulationOnSave empties the caller's simulation after any
	// successful write to the ledger.
	ClearSimulationOnSave bool
	RateLimit             ratelimit.Config
	TrustedProxies        []string
	MaxImportBytes        int64
	Logger                *applog.Logger
}

type Server struct {
	http.Server
	ledger   *services.LedgerService
	sessions *session.Registry
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *applog.Logger
	opts     Options

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, sessions *session.Registry, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.MaxImportBytes <= 0 {
		opts.MaxImportBytes = 10 << 20
	}

	s := &Server{
		ledger:   ledger,
		sessions: sessions,
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
		logger:   opts.Logger.WithComponent(applog.ComponentHTTP),
		opts:     opts,
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/series", s.handleSeries)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/transactions", s.handleReplaceTransactions)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/import", s.handleImport)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleAddCategory)
	mux.HandleFunc("DELETE /api/categories/{name}", s.handleRemoveCategory)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("PUT /api/budgets/{category}", s.handleSetBudget)
	mux.HandleFunc("DELETE /api/budgets/{category}", s.handleRemoveBudget)

	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/templates", s.handleCreateTemplate)
	mux.HandleFunc("PUT /api/templates/{id}", s.handleUpdateTemplate)
	mux.HandleFunc("DELETE /api/templates/{id}", s.handleDeleteTemplate)
	mux.HandleFunc("POST /api/materialize", s.handleMaterialize)

	mux.HandleFunc("GET /api/simulation", s.handleGetSimulation)
	mux.HandleFunc("POST /api/simulation", s.handleAddSimulation)
	mux.HandleFunc("DELETE /api/simulation", s.handleClearSimulation)

	mux.HandleFunc("GET /api/charts/evolution.png", s.handleEvolutionChart)
	mux.HandleFunc("GET /api/charts/trend.png", s.handleTrendChart)
	mux.HandleFunc("GET /api/charts/categories.png", s.handleCategoriesChart)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.chain(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// chain applies middleware outermost first.
func (s *Server) chain(h http.Handler) http.Handler {
	requestLogger := func(r *http.Request) *slog.Logger {
		return applog.FromContext(r.Context()).Logger
	}
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ClientIP(r), applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	}

	h = s.limiter.Middleware(s.detector.ClientIP, onLimit)(h)
	h = s.detector.Middleware(requestLogger)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = applog.AccessLog(h)
	h = applog.RequestIDMiddleware(h)
	return applog.Middleware(s.logger)(h)
}

// Shutdown stops the limiter janitor and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewResponse().Text("ok").Write(w)
}

// handleReady reports ready once every collection can be read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if _, err := s.ledger.LoadSnapshot(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
		ServiceUnavailableError("store unavailable").Write(w)
		return
	}
	NewResponse().Text("ready").Write(w)
}

// session returns the caller's simulation session, starting one and
// setting the cookie when needed.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, created := s.sessions.Resolve(sessionID(r))
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// existingSession never creates one; reads should not hand out cookies.
func (s *Server) existingSession(r *http.Request) (*session.Session, bool) {
	return s.sessions.Get(sessionID(r))
}

func sessionID(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// afterSave applies clear_simulation_on_save for the caller.
func (s *Server) afterSave(r *http.Request) {
	if !s.opts.ClearSimulationOnSave {
		return
	}
	if sess, ok := s.existingSession(r); ok && sess.Len() > 0 {
		sess.Clear()
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Simulation cleared after save",
			applog.FieldSessionID, sess.ID)
	}
}

// month reads the reference month, writing a 400 when it is malformed.
func month(w http.ResponseWriter, r *http.Request) (core.MonthKey, bool) {
	ref, err := ParseMonthParam(r.URL.Query())
	if err != nil {
		writeError(w, r, &core.ValidationError{Field: "month", Err: err})
		return core.MonthKey{}, false
	}
	return ref, true
}
