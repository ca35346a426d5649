package ledger

import (
	"finanzas/internal/core"

	"github.com/shopspring/decimal"
)

type Classification string

const (
	Deficit        Classification = "deficit"
	SharplyReduced Classification = "sharply_reduced"
	Reduced        Classification = "reduced"
	Improved       Classification = "improved"
)

// ClassificationPolicy tunes how a projection is labelled. A zero
// SharpReductionRatio disables the sharply-reduced tier.
type ClassificationPolicy struct {
	SharpReductionRatio decimal.Decimal
}

// Classify labels projected savings against the current capacity.
func (p ClassificationPolicy) Classify(projected, capacity decimal.Decimal) Classification {
	switch {
	case projected.IsNegative():
		return Deficit
	case p.SharpReductionRatio.IsPositive() && projected.LessThan(capacity.Mul(p.SharpReductionRatio)):
		return SharplyReduced
	case projected.LessThan(capacity):
		return Reduced
	default:
		return Improved
	}
}

type Projection struct {
	SimIncome        decimal.Decimal `json:"sim_income"`
	SimExpense       decimal.Decimal `json:"sim_expense"`
	ProjectedIncome  decimal.Decimal `json:"projected_income"`
	ProjectedExpense decimal.Decimal `json:"projected_expense"`
	ProjectedSavings decimal.Decimal `json:"projected_savings"`
	SavingsCapacity  decimal.Decimal `json:"savings_capacity"`
	// Delta is ProjectedSavings minus SavingsCapacity.
	Delta          decimal.Decimal `json:"delta"`
	Classification Classification  `json:"classification"`
	Items          int             `json:"items"`
}

// Simulator holds hypothetical entries for one session. It never touches a
// store and is not safe for concurrent use; the session registry guards it.
type Simulator struct {
	items  []core.SimulationItem
	policy ClassificationPolicy
}

func NewSimulator(policy ClassificationPolicy) *Simulator {
	return &Simulator{policy: policy}
}

// Add normalizes the input and appends it. Duplicates are kept.
func (s *Simulator) Add(in core.EntryInput) (core.SimulationItem, error) {
	item, err := NewSimulationItem(in)
	if err != nil {
		return core.SimulationItem{}, err
	}
	s.items = append(s.items, item)
	return item, nil
}

// Items returns a copy of the held items in insertion order.
func (s *Simulator) Items() []core.SimulationItem {
	return append([]core.SimulationItem(nil), s.items...)
}

func (s *Simulator) Len() int { return len(s.items) }

func (s *Simulator) Clear() {
	s.items = nil
}

// Project overlays the held items on real aggregates. The aggregates are
// taken by value and the simulator's items are not modified.
func (s *Simulator) Project(real Aggregates) Projection {
	return Project(s.items, real, s.policy)
}

// Project computes a projection for an arbitrary item list.
func Project(items []core.SimulationItem, real Aggregates, policy ClassificationPolicy) Projection {
	simIncome, simExpense := decimal.Zero, decimal.Zero
	for _, it := range items {
		switch it.Type {
		case core.Income:
			simIncome = simIncome.Add(it.MonthlyImpact)
		case core.Expense:
			simExpense = simExpense.Add(it.MonthlyImpact)
		}
	}

	p := Projection{
		SimIncome:        simIncome,
		SimExpense:       simExpense,
		ProjectedIncome:  real.CurrentMonthIncome.Add(simIncome),
		ProjectedExpense: real.ProratedMonthlyExpense.Add(simExpense),
		SavingsCapacity:  real.SavingsCapacity,
		Items:            len(items),
	}
	p.ProjectedSavings = p.ProjectedIncome.Sub(p.ProjectedExpense)
	p.Delta = p.ProjectedSavings.Sub(real.SavingsCapacity)
	p.Classification = policy.Classify(p.ProjectedSavings, real.SavingsCapacity)
	return p
}
