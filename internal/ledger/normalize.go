// Package ledger holds the projection engine: impact normalization,
// recurring materialization, monthly aggregation, scenario simulation and
// budget evaluation. Everything here is pure and synchronous; callers load
// and save collections through the store package.
package ledger

import (
	"finanzas/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	two    = decimal.NewFromInt(2)
	twelve = decimal.NewFromInt(12)
	one    = decimal.NewFromInt(1)
)

// Normalize turns an entered total into the stored amount and its monthly
// impact. Joint expenses are halved; joint income is never split. Annual
// entries spread their stored amount over twelve months.
func Normalize(typ core.TxType, total decimal.Decimal, freq core.Frequency, joint bool) (stored, monthly decimal.Decimal) {
	stored = total
	if joint && typ == core.Expense {
		stored = total.Div(two)
	}
	monthly = MonthlyImpact(stored, freq)
	return stored, monthly
}

// MonthlyImpact derives the monthly share of a stored amount.
func MonthlyImpact(stored decimal.Decimal, freq core.Frequency) decimal.Decimal {
	if freq == core.Annual {
		return stored.Div(twelve)
	}
	return stored
}

// NewTransaction validates the input and normalizes it into a fresh
// transaction with a new ID. Nothing is returned on validation failure.
func NewTransaction(in core.EntryInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return build(uuid.NewString(), in), nil
}

// Replace applies a full-field edit to an existing transaction. The input
// amount is the entered total, so the joint split and monthly impact are
// recomputed from scratch.
func Replace(existing core.Transaction, in core.EntryInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	id := existing.ID
	if id == "" {
		id = uuid.NewString()
	}
	return build(id, in), nil
}

// Renormalize recomputes MonthlyImpact from the stored amount. Stores call
// it on load so a hand-edited sheet cannot carry a stale impact.
func Renormalize(tx core.Transaction) core.Transaction {
	tx.MonthlyImpact = MonthlyImpact(tx.Amount, tx.Frequency)
	return tx
}

// NewSimulationItem normalizes input the same way as a real entry.
func NewSimulationItem(in core.EntryInput) (core.SimulationItem, error) {
	if err := in.Validate(); err != nil {
		return core.SimulationItem{}, err
	}
	stored, monthly := Normalize(in.Type, in.Amount, in.Frequency, in.IsJoint)
	return core.SimulationItem{
		Date:          in.Date,
		Type:          in.Type,
		Category:      in.Category,
		Concept:       in.Concept,
		Amount:        stored,
		Frequency:     in.Frequency,
		MonthlyImpact: monthly,
		IsJoint:       in.IsJoint,
	}, nil
}

func build(id string, in core.EntryInput) core.Transaction {
	stored, monthly := Normalize(in.Type, in.Amount, in.Frequency, in.IsJoint)
	return core.Transaction{
		ID:            id,
		Date:          in.Date,
		Type:          in.Type,
		Category:      in.Category,
		Concept:       in.Concept,
		Amount:        stored,
		Frequency:     in.Frequency,
		MonthlyImpact: monthly,
		IsJoint:       in.IsJoint,
	}
}
