package ledger

import (
	"sort"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
)

type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityExceeded Severity = "exceeded"
)

var (
	hundred         = decimal.NewFromInt(100)
	warningPercent  = decimal.NewFromInt(90)
	exceededPercent = decimal.NewFromInt(100)
)

type BudgetStatus struct {
	Category  string          `json:"category"`
	Limit     decimal.Decimal `json:"limit"`
	Spend     decimal.Decimal `json:"spend"`
	Percent   decimal.Decimal `json:"percent"`
	Remaining decimal.Decimal `json:"remaining"`
	Severity  Severity        `json:"severity"`
}

// SeverityFor maps a consumption percentage to its severity band.
func SeverityFor(percent decimal.Decimal) Severity {
	switch {
	case percent.GreaterThanOrEqual(exceededPercent):
		return SeverityExceeded
	case percent.GreaterThanOrEqual(warningPercent):
		return SeverityWarning
	default:
		return SeverityOK
	}
}

// ActiveBudgets collapses duplicates so that the last entry for a category
// wins, keeping first-seen order. Limits of zero or less are dropped since
// they would divide by zero and mean "no budget".
func ActiveBudgets(budgets []core.Budget) []core.Budget {
	idx := make(map[string]int)
	var out []core.Budget
	for _, b := range budgets {
		if i, ok := idx[b.Category]; ok {
			out[i] = b
			continue
		}
		idx[b.Category] = len(out)
		out = append(out, b)
	}
	kept := out[:0]
	for _, b := range out {
		if b.MonthlyLimit.IsPositive() {
			kept = append(kept, b)
		}
	}
	return kept
}

// EvaluateBudgets compares spend per category against each active budget.
// Categories with no positive budget are absent from the result. Output
// is sorted by percent descending so the worst offenders come first.
func EvaluateBudgets(budgets []core.Budget, spend map[string]decimal.Decimal) []BudgetStatus {
	active := ActiveBudgets(budgets)
	out := make([]BudgetStatus, 0, len(active))
	for _, b := range active {
		s := spend[b.Category]
		pct := s.Div(b.MonthlyLimit).Mul(hundred)
		out = append(out, BudgetStatus{
			Category:  b.Category,
			Limit:     b.MonthlyLimit,
			Spend:     s,
			Percent:   pct,
			Remaining: b.MonthlyLimit.Sub(s),
			Severity:  SeverityFor(pct),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Percent.GreaterThan(out[j].Percent)
	})
	return out
}

// PartitionBudgets separates budgets whose category is in the active set
// from those that are not. Unknown ones are treated as unlimited: the
// caller evaluates only the known budgets and surfaces the errors.
func PartitionBudgets(budgets []core.Budget, categories []string) (known []core.Budget, unknown []error) {
	for _, b := range ActiveBudgets(budgets) {
		if !core.HasCategory(categories, b.Category) {
			unknown = append(unknown, &core.ConfigurationError{Kind: "budget", Category: b.Category})
			continue
		}
		known = append(known, b)
	}
	return known, unknown
}
