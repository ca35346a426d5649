package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/store"
)

// SyncProcessorConfig holds configuration for the mirror processor
type SyncProcessorConfig struct {
	// PollInterval is how often dirty collections are flushed (default: 10s)
	PollInterval time.Duration

	// MaxRetries is how many consecutive failures a collection tolerates
	// before it is dropped until the next reconcile (default: 3)
	MaxRetries int

	// ReconcileInterval forces a full copy of every collection, catching
	// notifications that were lost (default: 1h)
	ReconcileInterval time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:      10 * time.Second,
		MaxRetries:        3,
		ReconcileInterval: time.Hour,
	}
}

var allResources = []string{
	amqp.ResourceTransactions,
	amqp.ResourceTemplates,
	amqp.ResourceCategories,
	amqp.ResourceBudgets,
}

// SyncProcessor mirrors the primary store into a secondary one, usually
// the spreadsheet. Collections are copied whole, so a flush is idempotent
// and the mirror converges even when notifications are duplicated.
type SyncProcessor struct {
	source store.Store
	mirror store.Store
	config SyncProcessorConfig
	logger *slog.Logger

	mu       sync.Mutex
	dirty    map[string]int // resource -> failed attempts
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastSync time.Time
}

// NewSyncProcessor creates a new mirror processor
func NewSyncProcessor(source, mirror store.Store, config SyncProcessorConfig, logger *slog.Logger) *SyncProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncProcessor{
		source: source,
		mirror: mirror,
		config: config,
		logger: logger.With("component", "worker"),
		dirty:  map[string]int{},
	}
}

// MarkDirty queues resource for the next flush.
func (p *SyncProcessor) MarkDirty(resource string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.dirty[resource]; !ok {
		p.dirty[resource] = 0
	}
}

// Pending lists the resources waiting for a flush.
func (p *SyncProcessor) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, r := range allResources {
		if _, ok := p.dirty[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// LastSync is the time of the last flush that finished without errors.
func (p *SyncProcessor) LastSync() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSync
}

// Mirror copies one collection from source to mirror right away.
func (p *SyncProcessor) Mirror(ctx context.Context, resource string) error {
	if p.source == nil || p.mirror == nil {
		return errors.New("sync processor not properly initialized")
	}
	var (
		n   int
		err error
	)
	switch resource {
	case amqp.ResourceTransactions:
		n, err = copyCollection(ctx, p.source.LoadTransactions, p.mirror.SaveTransactions)
	case amqp.ResourceTemplates:
		n, err = copyCollection(ctx, p.source.LoadTemplates, p.mirror.SaveTemplates)
	case amqp.ResourceCategories:
		n, err = copyCollection(ctx, p.source.LoadCategories, p.mirror.SaveCategories)
	case amqp.ResourceBudgets:
		n, err = copyCollection(ctx, p.source.LoadBudgets, p.mirror.SaveBudgets)
	default:
		return fmt.Errorf("unknown resource %q", resource)
	}
	if err != nil {
		return fmt.Errorf("mirror %s: %w", resource, err)
	}
	p.logger.InfoContext(ctx, "Collection mirrored", "resource", resource, "count", n)
	return nil
}

func copyCollection[T any](ctx context.Context, load func(context.Context) ([]T, error), save func(context.Context, []T) error) (int, error) {
	items, err := load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}
	if err := save(ctx, items); err != nil {
		return 0, fmt.Errorf("save: %w", err)
	}
	return len(items), nil
}

// MirrorAll copies every collection and returns the joined errors.
func (p *SyncProcessor) MirrorAll(ctx context.Context) error {
	var errs []error
	for _, r := range allResources {
		if err := p.Mirror(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		p.mu.Lock()
		p.lastSync = time.Now()
		p.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Flush mirrors every dirty collection. Failures stay dirty until they
// exceed MaxRetries.
func (p *SyncProcessor) Flush(ctx context.Context) {
	for _, r := range p.Pending() {
		err := p.Mirror(ctx, r)

		p.mu.Lock()
		if err == nil {
			delete(p.dirty, r)
			p.lastSync = time.Now()
			p.mu.Unlock()
			continue
		}
		p.dirty[r]++
		attempts := p.dirty[r]
		if attempts >= p.config.MaxRetries {
			delete(p.dirty, r)
		}
		p.mu.Unlock()

		if attempts >= p.config.MaxRetries {
			p.logger.ErrorContext(ctx, "Giving up on collection until next reconcile", "resource", r, "attempts", attempts, "error", err)
		} else {
			p.logger.WarnContext(ctx, "Mirror failed, will retry", "resource", r, "attempts", attempts, "error", err)
		}
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"reconcile_interval", p.config.ReconcileInterval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	reconcileTicker := time.NewTicker(p.config.ReconcileInterval)
	defer reconcileTicker.Stop()

	// Full copy on startup so the mirror never starts stale.
	if err := p.MirrorAll(ctx); err != nil {
		p.logger.ErrorContext(ctx, "Initial mirror failed", "error", err)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.Flush(ctx)
		case <-reconcileTicker.C:
			for _, r := range allResources {
				p.MarkDirty(r)
			}
			p.Flush(ctx)
		}
	}
}
