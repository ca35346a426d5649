// Package cli holds the finanzas command line and the startup helpers the
// worker binaries share with it.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"finanzas/internal/amqp"
	"finanzas/internal/backend"
	"finanzas/internal/config"
	applog "finanzas/internal/log"
	"finanzas/internal/services"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(component string, out io.Writer) *applog.Logger {
	cfg := applog.ConfigFromEnv()
	cfg.Component = component
	cfg.Output = out
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadConfig reads the environment and the TOML settings file. A non-empty
// settingsFile overrides SETTINGS_FILE.
func LoadConfig(settingsFile string) (*config.Config, config.Settings, error) {
	cfg := config.Load()
	if settingsFile != "" {
		cfg.SettingsFile = settingsFile
	}
	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return nil, settings, fmt.Errorf("loading %s: %w", cfg.SettingsFile, err)
	}
	return cfg, settings, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Runtime is an opened backend with the ledger service on top of it.
type Runtime struct {
	Config   *config.Config
	Settings config.Settings
	Logger   *applog.Logger
	Backend  *backend.Result
	Ledger   *services.LedgerService

	publisher *amqp.Client
}

// Open validates cfg, opens the configured backend and, when a mirror is
// configured, connects the change publisher. A broker that cannot be
// reached is logged and skipped.
func Open(ctx context.Context, cfg *config.Config, settings config.Settings, logger *applog.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	storageLogger := logger.WithComponent(applog.ComponentStorage)
	res, err := backend.NewFactory(storageLogger.Slog()).Create(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", bcfg.Type, err)
	}
	storageLogger.Debug("Backend opened", applog.FieldBackend, bcfg.Type.String())

	rt := &Runtime{Config: cfg, Settings: settings, Logger: logger, Backend: res}

	opts := []services.Option{
		services.WithMonthNames(settings.Months()),
		services.WithPolicy(settings.Policy()),
		services.WithSeedCategories(settings.Categories()),
		services.WithLogger(logger.WithComponent(applog.ComponentLedger).Slog()),
	}
	if cfg.MirrorEnabled() {
		amqpLogger := logger.WithComponent(applog.ComponentAMQP)
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqpLogger.Slog())
		if err != nil {
			amqpLogger.Warn("Failed to initialize AMQP client, changes will not be mirrored", applog.FieldError, err)
		} else {
			rt.publisher = client
			opts = append(opts, services.WithPublisher(client))
		}
	}
	rt.Ledger = services.NewLedgerService(res.Store, opts...)
	return rt, nil
}

// Close releases the publisher and the backend.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	if r.publisher != nil {
		if err := r.publisher.Close(); err != nil {
			r.Logger.Warn("Closing AMQP client", applog.FieldError, err)
		}
	}
	return r.Backend.Close()
}
