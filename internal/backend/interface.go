// Package backend opens the store selected by DATA_BACKEND.
package backend

import (
	"context"

	"finanzas/internal/store"
)

// CleanupFunc releases whatever the backend holds open.
type CleanupFunc func() error

// Result contains the store, where recurring runs are recorded, and an
// optional cleanup function.
type Result struct {
	Store   store.Store
	Runs    store.RunRecorder
	Cleanup CleanupFunc
}

// Close runs Cleanup when there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates stores based on configuration.
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Type names a backend.
type Type string

const (
	MemoryBackend Type = "memory"
	CSVBackend    Type = "csv"
	SQLiteBackend Type = "sqlite"
	SheetsBackend Type = "sheets"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, CSVBackend, SQLiteBackend, SheetsBackend:
		return true
	default:
		return false
	}
}

// Types returns all valid backend types.
func Types() []Type {
	return []Type{MemoryBackend, CSVBackend, SQLiteBackend, SheetsBackend}
}
