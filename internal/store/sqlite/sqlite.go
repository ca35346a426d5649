// Package sqlite is the SQLite backend. Columns hold the same text the
// sheet and CSV backends hold, and rows go through the shared codec, so a
// row that would be dropped from a sheet is dropped here too.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/store"

	_ "modernc.org/sqlite" // register sqlite driver
)

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.RunRecorder = (*Store)(nil)
)

// Open runs migrations and opens the database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "storage", "backend", "sqlite")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.queryRows(ctx, `SELECT id, fecha, tipo, categoria, concepto, importe, frecuencia, impacto_mensual, conjunto
		FROM transactions ORDER BY position`, len(store.TransactionHeader))
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	txs, errs := store.DecodeTransactions(rows, store.SchemaFor(store.TransactionHeader), 1)
	store.LogDropped(ctx, s.logger, "transactions", errs)
	return txs, nil
}

func (s *Store) SaveTransactions(ctx context.Context, txs []core.Transaction) error {
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, store.EncodeTransaction(tx))
	}
	return s.replaceAll(ctx, "transactions",
		`INSERT INTO transactions (position, id, fecha, tipo, categoria, concepto, importe, frecuencia, impacto_mensual, conjunto)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, rows)
}

func (s *Store) LoadTemplates(ctx context.Context) ([]core.RecurringTemplate, error) {
	rows, err := s.queryRows(ctx, `SELECT id, tipo, categoria, concepto, importe, frecuencia, conjunto
		FROM templates ORDER BY position`, len(store.TemplateHeader))
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	tpls, errs := store.DecodeTemplates(rows, store.SchemaFor(store.TemplateHeader), 1)
	store.LogDropped(ctx, s.logger, "templates", errs)
	return tpls, nil
}

func (s *Store) SaveTemplates(ctx context.Context, templates []core.RecurringTemplate) error {
	rows := make([][]string, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, store.EncodeTemplate(t))
	}
	return s.replaceAll(ctx, "templates",
		`INSERT INTO templates (position, id, tipo, categoria, concepto, importe, frecuencia, conjunto)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, rows)
}

func (s *Store) LoadCategories(ctx context.Context) ([]string, error) {
	rows, err := s.queryRows(ctx, `SELECT name FROM categories ORDER BY position`, 1)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return store.DecodeCategories(rows), nil
}

func (s *Store) SaveCategories(ctx context.Context, cats []string) error {
	cats = core.NormalizeCategories(cats)
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, []string{c})
	}
	return s.replaceAll(ctx, "categories", `INSERT INTO categories (position, name) VALUES (?, ?)`, rows)
}

func (s *Store) LoadBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := s.queryRows(ctx, `SELECT categoria, limite_mensual FROM budgets ORDER BY position`, 2)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	budgets, errs := store.DecodeBudgets(rows, store.SchemaFor(store.BudgetHeader), 1)
	store.LogDropped(ctx, s.logger, "budgets", errs)
	return budgets, nil
}

// SaveBudgets replaces the budgets table. categoria is the primary key, so
// INSERT OR REPLACE leaves the last limit for a repeated category.
func (s *Store) SaveBudgets(ctx context.Context, budgets []core.Budget) error {
	rows := make([][]string, 0, len(budgets))
	for _, b := range budgets {
		rows = append(rows, store.EncodeBudget(b))
	}
	return s.replaceAll(ctx, "budgets",
		`INSERT OR REPLACE INTO budgets (position, categoria, limite_mensual) VALUES (?, ?, ?)`, rows)
}

func (s *Store) LastRun(ctx context.Context, key string) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT last_run FROM materialization_runs WHERE run_key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read last run: %w", err)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last run %q: %w", raw, err)
	}
	return t, nil
}

func (s *Store) RecordRun(ctx context.Context, key string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO materialization_runs (run_key, last_run) VALUES (?, ?)
		ON CONFLICT(run_key) DO UPDATE SET last_run = excluded.last_run`,
		key, at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func (s *Store) queryRows(ctx context.Context, query string, cols int) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out [][]string
	for rows.Next() {
		vals := make([]string, cols)
		ptrs := make([]any, cols)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// replaceAll swaps the whole table contents in one transaction. Each
// insert receives the row position followed by the encoded cells.
func (s *Store) replaceAll(ctx context.Context, table, insert string, rows [][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s save: %w", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		args := make([]any, 0, len(row)+1)
		args = append(args, i)
		for _, c := range row {
			args = append(args, c)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s save: %w", table, err)
	}
	return nil
}
