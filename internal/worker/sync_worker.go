// Package worker turns ledger change notifications into mirror work.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finanzas/internal/amqp"
	"finanzas/internal/services"
)

// Consumer delivers LedgerChanged messages until ctx ends. *amqp.Client
// satisfies it.
type Consumer interface {
	ConsumeLedgerChanged(ctx context.Context, handler func(context.Context, *amqp.LedgerChanged) error) error
}

// SyncWorker feeds notifications into a SyncProcessor. Messages only mark
// collections dirty; the processor coalesces bursts and owns retries, so
// handling never fails and the broker never redelivers.
type SyncWorker struct {
	processor *services.SyncProcessor
	logger    *slog.Logger
}

func NewSyncWorker(processor *services.SyncProcessor, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{processor: processor, logger: logger.With("component", "worker")}
}

// HandleLedgerChanged processes a single notification.
func (w *SyncWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChanged) error {
	w.logger.DebugContext(ctx, "Ledger change received",
		"resource", msg.Resource,
		"count", msg.Count,
		"published_at", msg.Timestamp)
	w.processor.MarkDirty(msg.Resource)
	return nil
}

// Run starts the processor, which mirrors everything once, then consumes
// until ctx ends. The processor is stopped on the way out and any dirty
// collection is flushed one last time.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer) error {
	if err := w.processor.Start(ctx); err != nil {
		return fmt.Errorf("start sync processor: %w", err)
	}

	consumeErr := consumer.ConsumeLedgerChanged(ctx, w.HandleLedgerChanged)

	stopCtx := context.WithoutCancel(ctx)
	if err := w.processor.Stop(stopCtx); err != nil {
		w.logger.WarnContext(stopCtx, "Sync processor did not stop cleanly", "error", err)
	}
	w.processor.Flush(stopCtx)

	if consumeErr != nil && !errors.Is(consumeErr, context.Canceled) {
		return consumeErr
	}
	return nil
}
