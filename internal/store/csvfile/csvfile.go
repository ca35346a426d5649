// Package csvfile stores each collection as a CSV file in one directory.
// The ledger file stays readable by the older seven-column layout.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/store"
)

const (
	TransactionsFile = "finanzas.csv"
	TemplatesFile    = "plantillas.csv"
	CategoriesFile   = "categorias.csv"
	BudgetsFile      = "presupuestos.csv"
	RunsFile         = "ejecuciones.csv"
)

var runsHeader = []string{"Clave", "Fecha"}

type Store struct {
	dir    string
	logger *slog.Logger
	// mu serializes writers inside this process only.
	mu sync.Mutex
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.RunRecorder = (*Store)(nil)
)

func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger.With("component", "storage", "backend", "csv")}, nil
}

func (s *Store) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, schema, err := s.read(ctx, TransactionsFile, store.TransactionHeader, store.ColDate, store.ColAmount)
	if err != nil || rows == nil {
		return nil, err
	}
	txs, errs := store.DecodeTransactions(rows, schema, 2)
	store.LogDropped(ctx, s.logger, TransactionsFile, errs)
	return txs, nil
}

func (s *Store) SaveTransactions(_ context.Context, txs []core.Transaction) error {
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, store.EncodeTransaction(tx))
	}
	return s.write(TransactionsFile, store.TransactionHeader, rows)
}

func (s *Store) LoadTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	rows, schema, err := s.read(ctx, TemplatesFile, store.TemplateHeader, store.ColAmount)
	if err != nil || rows == nil {
		return nil, err
	}
	tpls, errs := store.DecodeTemplates(rows, schema, 2)
	store.LogDropped(ctx, s.logger, TemplatesFile, errs)
	return tpls, nil
}

func (s *Store) SaveTemplates(_ context.Context, templates []core.RecurringTemplate) error {
	rows := make([][]string, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, store.EncodeTemplate(t))
	}
	return s.write(TemplatesFile, store.TemplateHeader, rows)
}

func (s *Store) LoadCategories(ctx context.Context) ([]string, error) {
	rows, _, err := s.read(ctx, CategoriesFile, store.CategoryHeader, store.ColCategory)
	if err != nil || rows == nil {
		return nil, err
	}
	return store.DecodeCategories(rows), nil
}

func (s *Store) SaveCategories(_ context.Context, cats []string) error {
	cats = core.NormalizeCategories(cats)
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, []string{c})
	}
	return s.write(CategoriesFile, store.CategoryHeader, rows)
}

func (s *Store) LoadBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, schema, err := s.read(ctx, BudgetsFile, store.BudgetHeader, store.ColCategory, store.ColLimit)
	if err != nil || rows == nil {
		return nil, err
	}
	budgets, errs := store.DecodeBudgets(rows, schema, 2)
	store.LogDropped(ctx, s.logger, BudgetsFile, errs)
	return budgets, nil
}

func (s *Store) SaveBudgets(_ context.Context, budgets []core.Budget) error {
	rows := make([][]string, 0, len(budgets))
	for _, b := range budgets {
		rows = append(rows, store.EncodeBudget(b))
	}
	return s.write(BudgetsFile, store.BudgetHeader, rows)
}

// read returns the data rows and the schema taken from the header. A
// missing file or one that cannot be parsed as CSV yields no rows and no
// error. A file without a recognisable header is read positionally.
func (s *Store) read(ctx context.Context, name string, fallback []string, required ...string) ([][]string, store.Schema, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := readAll(r)
	if err != nil {
		s.logger.WarnContext(ctx, "Malformed CSV file, treating as empty", "file", name, "error", err)
		return nil, nil, nil
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	if schema, ok := store.DetectSchema(records[0], required...); ok {
		return records[1:], schema, nil
	}
	return records, store.SchemaFor(fallback), nil
}

func readAll(r *csv.Reader) ([][]string, error) {
	var out [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// write replaces the file atomically through a temp file in the same dir.
func (s *Store) write(name string, header []string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// LastRun returns the zero time when key never ran.
func (s *Store) LastRun(ctx context.Context, key string) (time.Time, error) {
	runs, err := s.runs(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return runs[key], nil
}

func (s *Store) RecordRun(ctx context.Context, key string, at time.Time) error {
	runs, err := s.runs(ctx)
	if err != nil {
		return err
	}
	runs[key] = at
	rows := make([][]string, 0, len(runs))
	for k, t := range runs {
		rows = append(rows, []string{k, t.UTC().Format(time.RFC3339)})
	}
	return s.write(RunsFile, runsHeader, rows)
}

func (s *Store) runs(ctx context.Context) (map[string]time.Time, error) {
	rows, _, err := s.read(ctx, RunsFile, runsHeader)
	if err != nil {
		return nil, err
	}
	runs := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		if len(row) < 2 || row[0] == runsHeader[0] {
			continue
		}
		t, err := time.Parse(time.RFC3339, row[1])
		if err != nil {
			s.logger.WarnContext(ctx, "Dropping unreadable run record", "key", row[0], "error", err)
			continue
		}
		runs[row[0]] = t
	}
	return runs, nil
}
