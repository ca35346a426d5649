package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	apphttp "finanzas/internal/http"
	applog "finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/session"

	"github.com/spf13/cobra"
)

type serveFlags struct {
	port           string
	maxSessions    int
	requestsPerMin int
	trustedProxies []string
}

func (a *app) newServeCommand() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.port != "" {
				a.cfg.Port = f.port
			}
			return a.serve(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.port, "port", "p", "", "Listen port (default: $PORT)")
	cmd.Flags().IntVar(&f.maxSessions, "max-sessions", 1000, "Simulation sessions kept in memory")
	cmd.Flags().IntVar(&f.requestsPerMin, "rate-limit", ratelimit.DefaultConfig().RequestsPerMinute, "Write requests per client per minute")
	cmd.Flags().StringSliceVar(&f.trustedProxies, "trusted-proxy", nil, "Proxy address whose X-Forwarded-For is trusted (repeatable)")
	return cmd
}

func (a *app) serve(parent context.Context, f serveFlags) error {
	ctx, cancel := SignalContext(parent, a.logger)
	defer cancel()

	rt, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessions := session.NewRegistry(f.maxSessions, a.cfg.SessionTTL, rt.Settings.Policy(),
		a.logger.WithComponent(applog.ComponentSimulator).Slog())

	limits := ratelimit.DefaultConfig()
	limits.RequestsPerMinute = f.requestsPerMin
	srv := apphttp.NewServer(":"+a.cfg.Port, rt.Ledger, sessions, apphttp.Options{
		ClearSimulationOnSave: rt.Settings.Engine.ClearSimulationOnSave,
		RateLimit:             limits,
		TrustedProxies:        f.trustedProxies,
		Logger:                a.logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go sweepSessions(ctx, sessions, a.logger, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting finanzas server", "port", a.cfg.Port, applog.FieldBackend, a.cfg.DataBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Server error", applog.FieldError, err, "port", a.cfg.Port)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server shutdown error", applog.FieldError, err)
		return err
	}
	a.logger.Info("Server stopped gracefully")
	return nil
}

// sweepSessions drops expired simulation sessions until ctx ends.
func sweepSessions(ctx context.Context, sessions *session.Registry, logger *applog.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.CleanExpired(); n > 0 {
				logger.Debug("Expired simulation sessions removed", applog.FieldCount, n)
			}
		}
	}
}
