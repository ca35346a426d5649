package main

import (
	"context"
	"os"
	"time"

	"finanzas/internal/cli"
	applog "finanzas/internal/log"
	"finanzas/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentWorker, os.Stdout)
	logger.Info("Starting recurring-worker")

	cfg, settings, err := cli.LoadConfig("")
	if err != nil {
		logger.Error("Configuration load failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	rt, err := cli.Open(ctx, cfg, settings, logger)
	if err != nil {
		logger.Error("Startup failed", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer rt.Close()

	schedule := services.Schedule{Day: settings.Recurring.DayOfMonth, Month: time.Month(settings.Recurring.AnnualMonth)}
	processor := services.NewRecurringProcessor(rt.Ledger, rt.Backend.Runs, schedule, logger.Slog())

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"day_of_month", schedule.Day,
		"annual_month", schedule.Month,
		applog.FieldBackend, cfg.DataBackend)

	if err := processor.Run(ctx, cfg.RecurringInterval); err != nil {
		logger.Error("Recurring processor failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete")
}
