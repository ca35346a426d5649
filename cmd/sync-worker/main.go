package main

import (
	"context"
	"os"

	"finanzas/internal/amqp"
	"finanzas/internal/backend"
	"finanzas/internal/cli"
	"finanzas/internal/config"
	applog "finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentWorker, os.Stdout)
	logger.Info("Starting sync-worker")

	cfg, _, err := cli.LoadConfig("")
	if err != nil {
		logger.Error("Configuration load failed", applog.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if cfg.DataBackend == config.BackendSheets {
		logger.Error("Nothing to mirror: the primary backend already is Google Sheets")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	primaryCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.WithComponent(applog.ComponentStorage).Slog())

	primary, err := factory.Create(ctx, primaryCfg)
	if err != nil {
		logger.Error("Failed to open primary backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer primary.Close()

	mirror, err := factory.Create(ctx, primaryCfg.Mirror())
	if err != nil {
		logger.Error("Failed to open Google Sheets mirror", applog.FieldError, err)
		os.Exit(1)
	}
	defer mirror.Close()
	logger.Info("Mirroring ledger", "from", cfg.DataBackend, "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(applog.ComponentAMQP).Slog())
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	processor := services.NewSyncProcessor(primary.Store, mirror.Store, services.DefaultSyncProcessorConfig(), logger.Slog())
	if err := worker.NewSyncWorker(processor, logger.Slog()).Run(ctx, amqpClient); err != nil {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Sync-worker shutdown complete")
}
