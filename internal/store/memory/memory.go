package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/store"
)

// Store keeps every collection in process memory. It is the default
// backend for development and the fixture used by service tests.
type Store struct {
	mu        sync.Mutex
	txs       []core.Transaction
	templates []core.RecurringTemplate
	cats      []string
	budgets   []core.Budget
	runs      map[string]time.Time
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.RunRecorder = (*Store)(nil)
)

func New(cats []string) *Store {
	return &Store{cats: core.NormalizeCategories(cats), runs: map[string]time.Time{}}
}

// NewFromFiles seeds categories from base/seed_categories.txt, falling
// back to the built-in defaults.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = core.DefaultCategories
	}
	return New(cats)
}

func (s *Store) LoadTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs...), nil
}

func (s *Store) SaveTransactions(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append([]core.Transaction(nil), txs...)
	return nil
}

func (s *Store) LoadTemplates(_ context.Context) ([]core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RecurringTemplate(nil), s.templates...), nil
}

func (s *Store) SaveTemplates(_ context.Context, templates []core.RecurringTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append([]core.RecurringTemplate(nil), templates...)
	return nil
}

func (s *Store) LoadCategories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cats...), nil
}

func (s *Store) SaveCategories(_ context.Context, cats []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cats = core.NormalizeCategories(cats)
	return nil
}

func (s *Store) LoadBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Budget(nil), s.budgets...), nil
}

func (s *Store) SaveBudgets(_ context.Context, budgets []core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets = append([]core.Budget(nil), budgets...)
	return nil
}

func (s *Store) LastRun(_ context.Context, key string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[key], nil
}

func (s *Store) RecordRun(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[key] = at
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return core.NormalizeCategories(out)
}
