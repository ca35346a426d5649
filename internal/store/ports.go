// Package store defines the persistence ports of the ledger and the row
// codec shared by the tabular backends.
//
// Every collection is loaded and saved whole: Save overwrites what was
// there. A missing resource loads as an empty list. Rows that cannot be
// parsed are dropped and logged, never half-loaded. An error from Load
// means the backend itself failed (I/O, network, database).
package store

import (
	"context"
	"time"

	"finanzas/internal/core"
)

// Ports for outbound adapters.
type (
	TransactionStore interface {
		LoadTransactions(ctx context.Context) ([]core.Transaction, error)
		SaveTransactions(ctx context.Context, txs []core.Transaction) error
	}

	TemplateStore interface {
		LoadTemplates(ctx context.Context) ([]core.RecurringTemplate, error)
		SaveTemplates(ctx context.Context, templates []core.RecurringTemplate) error
	}

	CategoryStore interface {
		LoadCategories(ctx context.Context) ([]string, error)
		SaveCategories(ctx context.Context, categories []string) error
	}

	BudgetStore interface {
		LoadBudgets(ctx context.Context) ([]core.Budget, error)
		SaveBudgets(ctx context.Context, budgets []core.Budget) error
	}

	// Store is the full set of collections a backend provides.
	Store interface {
		TransactionStore
		TemplateStore
		CategoryStore
		BudgetStore
	}

	// RunRecorder remembers when a recurring materialization last ran so the
	// worker does not post the same batch twice.
	RunRecorder interface {
		LastRun(ctx context.Context, key string) (time.Time, error)
		RecordRun(ctx context.Context, key string, at time.Time) error
	}
)
