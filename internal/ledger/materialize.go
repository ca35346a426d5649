package ledger

import (
	"finanzas/internal/core"

	"github.com/google/uuid"
)

// Materialize stamps every template with date and returns one normalized
// transaction per template, in template order. It does not look at the
// ledger: calling it twice for the same date yields two batches.
func Materialize(templates []core.RecurringTemplate, date core.Date) []core.Transaction {
	out := make([]core.Transaction, 0, len(templates))
	for _, t := range templates {
		out = append(out, build(uuid.NewString(), t.Input(date)))
	}
	return out
}
