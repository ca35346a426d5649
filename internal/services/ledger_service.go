package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/ledger"
	applog "finanzas/internal/log"
	"finanzas/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Publisher announces that a collection was saved. *amqp.Client
// satisfies it; a nil Publisher disables notifications.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, resource string, count int) error
}

// Snapshot is one consistent read of every collection.
type Snapshot struct {
	Transactions []core.Transaction
	Templates    []core.RecurringTemplate
	Categories   []string
	Budgets      []core.Budget
}

// BulkRow is one line of a bulk edit. An empty or unknown ID creates a new
// entry; Input.Amount is the pre-split total.
type BulkRow struct {
	ID    string          `json:"id"`
	Input core.EntryInput `json:"input"`
}

// LedgerService runs the engine over a store. Every mutation loads the
// collection it touches, changes it in memory and saves it whole.
// Mutations are serialized within the process; separate processes writing
// the same backend are not coordinated and the last save wins.
type LedgerService struct {
	store     store.Store
	publisher Publisher
	names     ledger.MonthNames
	policy    ledger.ClassificationPolicy
	seed      []string
	logger    *slog.Logger

	mu sync.Mutex
}

type Option func(*LedgerService)

func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithMonthNames(names ledger.MonthNames) Option {
	return func(s *LedgerService) { s.names = names }
}

func WithPolicy(p ledger.ClassificationPolicy) Option {
	return func(s *LedgerService) { s.policy = p }
}

// WithSeedCategories sets the list used while the store holds none.
func WithSeedCategories(cats []string) Option {
	return func(s *LedgerService) { s.seed = core.NormalizeCategories(cats) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func NewLedgerService(st store.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:  st,
		names:  ledger.SpanishMonths,
		seed:   core.NormalizeCategories(core.DefaultCategories),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "ledger")
	return s
}

func (s *LedgerService) MonthNames() ledger.MonthNames { return s.names }
func (s *LedgerService) Policy() ledger.ClassificationPolicy { return s.policy }
func (s *LedgerService) NewSimulator() *ledger.Simulator { return ledger.NewSimulator(s.policy) }

// LoadSnapshot reads the four collections concurrently. The first
// backend failure cancels the rest and is returned.
func (s *LedgerService) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.store.LoadTransactions(gctx)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		snap.Transactions = txs
		return nil
	})
	g.Go(func() error {
		tpls, err := s.store.LoadTemplates(gctx)
		if err != nil {
			return fmt.Errorf("load templates: %w", err)
		}
		snap.Templates = tpls
		return nil
	})
	g.Go(func() error {
		cats, err := s.store.LoadCategories(gctx)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		snap.Categories = cats
		return nil
	})
	g.Go(func() error {
		budgets, err := s.store.LoadBudgets(gctx)
		if err != nil {
			return fmt.Errorf("load budgets: %w", err)
		}
		snap.Budgets = budgets
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.Categories = s.withSeed(snap.Categories)
	return snap, nil
}

// readSnapshot is the read-view variant: each collection that fails to
// load is replaced by an empty list and reported as a warning.
func (s *LedgerService) readSnapshot(ctx context.Context) (Snapshot, []string) {
	var (
		snap     Snapshot
		mu       sync.Mutex
		warnings []string
		wg       sync.WaitGroup
	)
	degrade := func(resource string, err error) {
		s.logger.WarnContext(ctx, "Collection unavailable, showing it empty", "resource", resource, "error", err)
		mu.Lock()
		warnings = append(warnings, fmt.Sprintf("%s unavailable: %v", resource, err))
		mu.Unlock()
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		txs, err := s.store.LoadTransactions(ctx)
		if err != nil {
			degrade(amqp.ResourceTransactions, err)
			return
		}
		snap.Transactions = txs
	}()
	go func() {
		defer wg.Done()
		tpls, err := s.store.LoadTemplates(ctx)
		if err != nil {
			degrade(amqp.ResourceTemplates, err)
			return
		}
		snap.Templates = tpls
	}()
	go func() {
		defer wg.Done()
		cats, err := s.store.LoadCategories(ctx)
		if err != nil {
			degrade(amqp.ResourceCategories, err)
			return
		}
		snap.Categories = cats
	}()
	go func() {
		defer wg.Done()
		budgets, err := s.store.LoadBudgets(ctx)
		if err != nil {
			degrade(amqp.ResourceBudgets, err)
			return
		}
		snap.Budgets = budgets
	}()
	wg.Wait()

	snap.Categories = s.withSeed(snap.Categories)
	return snap, warnings
}

func (s *LedgerService) withSeed(cats []string) []string {
	if len(cats) == 0 {
		return append([]string(nil), s.seed...)
	}
	return cats
}

// Report computes the dashboard for ref. It never fails: unavailable
// collections show as empty and are listed in Warnings.
func (s *LedgerService) Report(ctx context.Context, ref core.MonthKey) ledger.Report {
	snap, warnings := s.readSnapshot(ctx)
	r := ledger.BuildReport(snap.Transactions, snap.Budgets, snap.Categories, ref, s.names)
	r.Warnings = append(warnings, r.Warnings...)
	for _, t := range snap.Templates {
		if !core.HasCategory(snap.Categories, t.Category) {
			r.Warnings = append(r.Warnings, (&core.ConfigurationError{Kind: "template", Category: t.Category}).Error())
		}
	}
	return r
}

// ReportWithProjection adds the what-if projection of sim to the report.
func (s *LedgerService) ReportWithProjection(ctx context.Context, ref core.MonthKey, sim *ledger.Simulator) ledger.Report {
	r := s.Report(ctx, ref)
	if sim != nil && sim.Len() > 0 {
		p := sim.Project(r.Aggregates)
		r.Projection = &p
	}
	return r
}

// Summary is the plain-text digest handed to the external assistant.
func (s *LedgerService) Summary(ctx context.Context, ref core.MonthKey, sim *ledger.Simulator) string {
	return ledger.Summary(s.ReportWithProjection(ctx, ref, sim), s.names)
}

// Project runs the simulator against the current aggregates without
// touching the store.
func (s *LedgerService) Project(ctx context.Context, ref core.MonthKey, sim *ledger.Simulator) ledger.Projection {
	snap, _ := s.readSnapshot(ctx)
	return sim.Project(ledger.Aggregate(snap.Transactions, ref))
}

func (s *LedgerService) Transactions(ctx context.Context) []core.Transaction {
	snap, _ := s.readSnapshot(ctx)
	return snap.Transactions
}

func (s *LedgerService) Templates(ctx context.Context) []core.RecurringTemplate {
	snap, _ := s.readSnapshot(ctx)
	return snap.Templates
}

func (s *LedgerService) Categories(ctx context.Context) []string {
	snap, _ := s.readSnapshot(ctx)
	return snap.Categories
}

func (s *LedgerService) Budgets(ctx context.Context) []core.Budget {
	snap, _ := s.readSnapshot(ctx)
	return ledger.ActiveBudgets(snap.Budgets)
}

// categories is the strict variant used before a write.
func (s *LedgerService) categories(ctx context.Context) ([]string, error) {
	cats, err := s.store.LoadCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return s.withSeed(cats), nil
}

func (s *LedgerService) validate(in core.EntryInput, cats []string) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if !core.HasCategory(cats, in.Category) {
		return &core.ValidationError{Field: "category", Err: core.ErrUnknownCategory}
	}
	return nil
}

// validateEdit checks an edit of prev. The category is only checked
// against the active set when the edit changes it.
func (s *LedgerService) validateEdit(prev core.Transaction, in core.EntryInput, cats []string) error {
	if in.Category == prev.Category {
		return in.Validate()
	}
	return s.validate(in, cats)
}

func (s *LedgerService) loadTransactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.store.LoadTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return txs, nil
}

func (s *LedgerService) saveTransactions(ctx context.Context, txs []core.Transaction) error {
	if err := s.store.SaveTransactions(ctx, txs); err != nil {
		return fmt.Errorf("save transactions: %w", err)
	}
	s.publish(ctx, amqp.ResourceTransactions, len(txs))
	return nil
}

// AddTransaction validates and normalizes in, then appends it.
func (s *LedgerService) AddTransaction(ctx context.Context, in core.EntryInput) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.categories(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.validate(in, cats); err != nil {
		return core.Transaction{}, err
	}
	tx, err := ledger.NewTransaction(in)
	if err != nil {
		return core.Transaction{}, err
	}

	txs, err := s.loadTransactions(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.saveTransactions(ctx, append(txs, tx)); err != nil {
		return core.Transaction{}, err
	}
	s.logger.InfoContext(ctx, "Transaction added",
		applog.NewFields().WithOperation(applog.OpCreate).WithTransaction(tx).ToSlice()...)
	return tx, nil
}

// AppendTransactions saves already normalized entries, as produced by the
// importer or the materializer.
func (s *LedgerService) AppendTransactions(ctx context.Context, batch []core.Transaction) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.loadTransactions(ctx)
	if err != nil {
		return err
	}
	return s.saveTransactions(ctx, append(txs, batch...))
}

// UpdateTransaction replaces every field of the entry with id. The ID is
// kept and the entry is normalized again from the new total.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, in core.EntryInput) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.categories(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	txs, err := s.loadTransactions(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	i := indexOf(txs, id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err := s.validateEdit(txs[i], in, cats); err != nil {
		return core.Transaction{}, err
	}
	updated, err := ledger.Replace(txs[i], in)
	if err != nil {
		return core.Transaction{}, err
	}
	txs[i] = updated
	if err := s.saveTransactions(ctx, txs); err != nil {
		return core.Transaction{}, err
	}
	s.logger.InfoContext(ctx, "Transaction updated",
		applog.NewFields().WithOperation(applog.OpUpdate).WithTransaction(updated).ToSlice()...)
	return updated, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.loadTransactions(ctx)
	if err != nil {
		return err
	}
	i := indexOf(txs, id)
	if i < 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	removed := txs[i]
	txs = append(txs[:i], txs[i+1:]...)
	if err := s.saveTransactions(ctx, txs); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Transaction deleted",
		applog.NewFields().WithOperation(applog.OpDelete).WithTransaction(removed).ToSlice()...)
	return nil
}

// ReplaceTransactions is the bulk edit: rows become the whole ledger, in
// order. Nothing is saved unless every row validates.
func (s *LedgerService) ReplaceTransactions(ctx context.Context, rows []BulkRow) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.categories(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.loadTransactions(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]core.Transaction, len(existing))
	for _, tx := range existing {
		byID[tx.ID] = tx
	}

	out := make([]core.Transaction, 0, len(rows))
	seen := map[string]bool{}
	for i, row := range rows {
		prev, carried := byID[row.ID]
		carried = carried && !seen[row.ID]

		var tx core.Transaction
		if carried {
			if err := s.validateEdit(prev, row.Input, cats); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			tx, err = ledger.Replace(prev, row.Input)
		} else {
			if err := s.validate(row.Input, cats); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			tx, err = ledger.NewTransaction(row.Input)
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		seen[tx.ID] = true
		out = append(out, tx)
	}
	if err := s.saveTransactions(ctx, out); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Ledger replaced", "operation", "bulk_replace", "count", len(out), "previous", len(existing))
	return out, nil
}

// Materialize posts every template dated date. Templates whose category
// is no longer active still post; the mismatch comes back as a warning.
func (s *LedgerService) Materialize(ctx context.Context, date core.Date) ([]core.Transaction, []error, error) {
	tpls, err := s.store.LoadTemplates(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load templates: %w", err)
	}
	return s.materialize(ctx, tpls, date)
}

func (s *LedgerService) materialize(ctx context.Context, tpls []core.RecurringTemplate, date core.Date) ([]core.Transaction, []error, error) {
	if len(tpls) == 0 {
		return nil, nil, nil
	}
	cats, err := s.categories(ctx)
	if err != nil {
		return nil, nil, err
	}
	var warnings []error
	for _, t := range tpls {
		if !core.HasCategory(cats, t.Category) {
			warnings = append(warnings, &core.ConfigurationError{Kind: "template", Category: t.Category})
		}
	}

	batch := ledger.Materialize(tpls, date)
	if err := s.AppendTransactions(ctx, batch); err != nil {
		return nil, warnings, err
	}
	s.logger.InfoContext(ctx, "Templates materialized", "operation", "materialize", "count", len(batch), "date", date.String())
	return batch, warnings, nil
}

// AddTemplate stores a new template under a fresh ID.
func (s *LedgerService) AddTemplate(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateTemplate(ctx, t); err != nil {
		return core.RecurringTemplate{}, err
	}
	tpls, err := s.loadTemplates(ctx)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	t.ID = uuid.NewString()
	if err := s.saveTemplates(ctx, append(tpls, t)); err != nil {
		return core.RecurringTemplate{}, err
	}
	return t, nil
}

func (s *LedgerService) UpdateTemplate(ctx context.Context, id string, t core.RecurringTemplate) (core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateTemplate(ctx, t); err != nil {
		return core.RecurringTemplate{}, err
	}
	tpls, err := s.loadTemplates(ctx)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	for i := range tpls {
		if tpls[i].ID == id {
			t.ID = id
			tpls[i] = t
			return t, s.saveTemplates(ctx, tpls)
		}
	}
	return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
}

func (s *LedgerService) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpls, err := s.loadTemplates(ctx)
	if err != nil {
		return err
	}
	for i := range tpls {
		if tpls[i].ID == id {
			return s.saveTemplates(ctx, append(tpls[:i], tpls[i+1:]...))
		}
	}
	return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
}

func (s *LedgerService) validateTemplate(ctx context.Context, t core.RecurringTemplate) error {
	cats, err := s.categories(ctx)
	if err != nil {
		return err
	}
	return s.validate(t.Input(core.Today()), cats)
}

func (s *LedgerService) loadTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	tpls, err := s.store.LoadTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return tpls, nil
}

func (s *LedgerService) saveTemplates(ctx context.Context, tpls []core.RecurringTemplate) error {
	if err := s.store.SaveTemplates(ctx, tpls); err != nil {
		return fmt.Errorf("save templates: %w", err)
	}
	s.publish(ctx, amqp.ResourceTemplates, len(tpls))
	return nil
}

// AddCategory appends name to the active set. Adding an existing name is
// a no-op.
func (s *LedgerService) AddCategory(ctx context.Context, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &core.ValidationError{Field: "category", Err: core.ErrEmptyCategory}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.categories(ctx)
	if err != nil {
		return nil, err
	}
	if core.HasCategory(cats, name) {
		return cats, nil
	}
	return s.saveCategories(ctx, append(cats, name))
}

// RemoveCategory drops name from the active set. Entries keep their
// category; budgets and templates pointing at it surface as warnings.
func (s *LedgerService) RemoveCategory(ctx context.Context, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.categories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		if c != name {
			out = append(out, c)
		}
	}
	if len(out) == len(cats) {
		return nil, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
	}
	return s.saveCategories(ctx, out)
}

// EnsureCategories adds any missing names in one save. Used by imports
// that are allowed to create categories.
func (s *LedgerService) EnsureCategories(ctx context.Context, names []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.categories(ctx)
	if err != nil {
		return nil, err
	}
	merged := core.NormalizeCategories(append(append([]string(nil), cats...), names...))
	if len(merged) == len(cats) {
		return cats, nil
	}
	return s.saveCategories(ctx, merged)
}

func (s *LedgerService) saveCategories(ctx context.Context, cats []string) ([]string, error) {
	cats = core.NormalizeCategories(cats)
	if err := s.store.SaveCategories(ctx, cats); err != nil {
		return nil, fmt.Errorf("save categories: %w", err)
	}
	s.publish(ctx, amqp.ResourceCategories, len(cats))
	return cats, nil
}

// SetBudget creates or replaces the limit for category.
func (s *LedgerService) SetBudget(ctx context.Context, category string, limit decimal.Decimal) (core.Budget, error) {
	if !limit.IsPositive() {
		return core.Budget{}, &core.ValidationError{Field: "monthly_limit", Err: core.ErrInvalidAmount}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.categories(ctx)
	if err != nil {
		return core.Budget{}, err
	}
	if !core.HasCategory(cats, category) {
		return core.Budget{}, &core.ValidationError{Field: "category", Err: core.ErrUnknownCategory}
	}
	budgets, err := s.loadBudgets(ctx)
	if err != nil {
		return core.Budget{}, err
	}
	b := core.Budget{Category: category, MonthlyLimit: limit}
	if err := s.saveBudgets(ctx, append(ledger.ActiveBudgets(budgets), b)); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s *LedgerService) RemoveBudget(ctx context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	budgets, err := s.loadBudgets(ctx)
	if err != nil {
		return err
	}
	active := ledger.ActiveBudgets(budgets)
	out := active[:0]
	for _, b := range active {
		if b.Category != category {
			out = append(out, b)
		}
	}
	if len(out) == len(active) {
		return fmt.Errorf("budget %q: %w", category, core.ErrNotFound)
	}
	return s.saveBudgets(ctx, out)
}

func (s *LedgerService) loadBudgets(ctx context.Context) ([]core.Budget, error) {
	budgets, err := s.store.LoadBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	return budgets, nil
}

func (s *LedgerService) saveBudgets(ctx context.Context, budgets []core.Budget) error {
	budgets = ledger.ActiveBudgets(budgets)
	if err := s.store.SaveBudgets(ctx, budgets); err != nil {
		return fmt.Errorf("save budgets: %w", err)
	}
	s.publish(ctx, amqp.ResourceBudgets, len(budgets))
	return nil
}

// publish is best effort: the save already happened.
func (s *LedgerService) publish(ctx context.Context, resource string, count int) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerChanged(ctx, resource, count); err != nil {
		level := slog.LevelError
		if errors.Is(err, amqp.ErrCircuitOpen) {
			level = slog.LevelWarn
		}
		fields := applog.NewFields().WithOperation(applog.OpSync).WithError(err)
		fields[applog.FieldResource] = resource
		s.logger.Log(ctx, level, "Failed to publish ledger change", fields.ToSlice()...)
	}
}

func indexOf(txs []core.Transaction, id string) int {
	for i := range txs {
		if txs[i].ID == id {
			return i
		}
	}
	return -1
}
