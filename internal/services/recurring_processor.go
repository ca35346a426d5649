package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/store"
)

// Schedule anchors recurring posting: monthly templates post on Day of
// every month, annual ones on Day of Month.
type Schedule struct {
	Day   int
	Month time.Month
}

func (s Schedule) anchor(freq core.Frequency, now time.Time) core.Date {
	day := s.Day
	if day < 1 {
		day = 1
	}
	month := now.Month()
	if freq == core.Annual && s.Month >= time.January && s.Month <= time.December {
		month = s.Month
	}
	return core.NewDate(now.Year(), int(month), day)
}

// RecurringProcessor posts monthly and annual templates when their
// schedule comes due and records each run so a restart does not post
// twice.
type RecurringProcessor struct {
	ledger   *LedgerService
	runs     store.RunRecorder
	schedule Schedule
	logger   *slog.Logger
}

func NewRecurringProcessor(ledger *LedgerService, runs store.RunRecorder, schedule Schedule, logger *slog.Logger) *RecurringProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecurringProcessor{
		ledger:   ledger,
		runs:     runs,
		schedule: schedule,
		logger:   logger.With("component", "recurring"),
	}
}

func runKey(freq core.Frequency) string {
	return "recurring:" + string(freq)
}

// ProcessDue posts every frequency batch that is due at now and returns
// how many transactions were created.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.ledger == nil || p.runs == nil {
		return 0, errors.New("processor not properly initialized")
	}

	tpls, err := p.ledger.loadTemplates(ctx)
	if err != nil {
		return 0, err
	}
	groups := map[core.Frequency][]core.RecurringTemplate{}
	for _, t := range tpls {
		groups[t.Frequency] = append(groups[t.Frequency], t)
	}

	created := 0
	var errs []error
	for _, freq := range []core.Frequency{core.Monthly, core.Annual} {
		batch := groups[freq]
		if len(batch) == 0 {
			continue
		}
		n, err := p.processBatch(ctx, freq, batch, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		created += n
	}

	p.logger.InfoContext(ctx, "Recurring processing complete",
		"created", created,
		"templates", len(tpls),
		"skipped_one_time", len(groups[core.OneTime]))
	return created, errors.Join(errs...)
}

func (p *RecurringProcessor) processBatch(ctx context.Context, freq core.Frequency, batch []core.RecurringTemplate, now time.Time) (int, error) {
	checker, err := GetDuenessChecker(freq)
	if err != nil {
		return 0, err
	}
	key := runKey(freq)
	last, err := p.runs.LastRun(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("last run %s: %w", key, err)
	}
	if !checker.IsDue(last, now, p.schedule.anchor(freq, now)) {
		p.logger.DebugContext(ctx, "Batch not due", "run_key", key, "last_run", last)
		return 0, nil
	}

	date := core.NewDate(now.Year(), int(now.Month()), now.Day())
	txs, warnings, err := p.ledger.materialize(ctx, batch, date)
	if err != nil {
		return 0, fmt.Errorf("materialize %s: %w", freq, err)
	}
	for _, w := range warnings {
		p.logger.WarnContext(ctx, "Template posted with inactive category", "error", w)
	}
	if err := p.runs.RecordRun(ctx, key, now); err != nil {
		// The batch is saved; the next tick may post it again.
		p.logger.ErrorContext(ctx, "Failed to record run", "run_key", key, "error", err)
	}
	p.logger.InfoContext(ctx, "Recurring batch posted", "run_key", key, "count", len(txs), "date", date.String())
	return len(txs), nil
}

// Run checks for due batches immediately and then every interval until
// ctx ends.
func (p *RecurringProcessor) Run(ctx context.Context, interval time.Duration) error {
	tick := func() {
		if _, err := p.ProcessDue(ctx, time.Now()); err != nil {
			p.logger.ErrorContext(ctx, "Recurring processing failed", "error", err)
		}
	}
	tick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "Recurring processor stopping")
			return nil
		case <-ticker.C:
			tick()
		}
	}
}
