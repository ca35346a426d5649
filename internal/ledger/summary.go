package ledger

import (
	"fmt"
	"strings"

	"finanzas/internal/core"
)

// Report bundles everything a dashboard or the assistant summary shows.
type Report struct {
	Aggregates    Aggregates      `json:"aggregates"`
	Series        []SeriesPoint   `json:"series"`
	TopCategories []CategoryTotal `json:"top_categories"`
	ImpactByCat   []CategoryTotal `json:"impact_by_category"`
	Weekdays      []WeekdayTotal  `json:"weekdays"`
	Budgets       []BudgetStatus  `json:"budgets"`
	Warnings      []string        `json:"warnings,omitempty"`
	Projection    *Projection     `json:"projection,omitempty"`
}

// BuildReport runs every read-side computation for the reference month.
func BuildReport(txs []core.Transaction, budgets []core.Budget, categories []string, ref core.MonthKey, names MonthNames) Report {
	current := InMonth(txs, ref)
	known, unknown := PartitionBudgets(budgets, categories)

	r := Report{
		Aggregates:    Aggregate(txs, ref),
		Series:        MonthlySeries(txs, names),
		TopCategories: TopCategories(current, MetricCash, 5),
		ImpactByCat:   CategoryTotals(txs, MetricImpact),
		Weekdays:      WeekdayBreakdown(current),
		Budgets:       EvaluateBudgets(known, SpendByCategory(current, MetricCash)),
	}
	for _, err := range unknown {
		r.Warnings = append(r.Warnings, err.Error())
	}
	return r
}

// Summary renders the computed figures as plain Spanish text for the
// external assistant. Only figures go out; raw rows never do.
func Summary(r Report, names MonthNames) string {
	a := r.Aggregates
	var b strings.Builder

	fmt.Fprintf(&b, "Resumen financiero de %s %d\n", names.Name(a.Month.Month), a.Month.Year)
	fmt.Fprintf(&b, "- Ingresos del mes: %s\n", core.FormatEuro(a.CurrentMonthIncome))
	fmt.Fprintf(&b, "- Gastos reales del mes: %s\n", core.FormatEuro(a.CurrentMonthExpenseActual))
	fmt.Fprintf(&b, "- Gasto mensual prorrateado: %s (sobre %d meses)\n", core.FormatEuro(a.ProratedMonthlyExpense), max(a.DistinctMonths, 1))
	fmt.Fprintf(&b, "- Capacidad de ahorro: %s\n", core.FormatEuro(a.SavingsCapacity))
	fmt.Fprintf(&b, "- Hucha anual (provisión mensual): %s\n", core.FormatEuro(a.AnnualProvision))
	fmt.Fprintf(&b, "- Acumulado gastos conjuntos: %s\n", core.FormatEuro(a.JointExpenseTotal))

	if len(r.TopCategories) > 0 {
		b.WriteString("Categorías con más gasto este mes:\n")
		for _, c := range r.TopCategories {
			fmt.Fprintf(&b, "- %s: %s (%s%%)\n", c.Category, core.FormatEuro(c.Total), c.Share.StringFixed(1))
		}
	}

	if len(r.Budgets) > 0 {
		b.WriteString("Presupuestos:\n")
		for _, s := range r.Budgets {
			fmt.Fprintf(&b, "- %s: %s de %s (%s%%, %s)\n",
				s.Category, core.FormatEuro(s.Spend), core.FormatEuro(s.Limit), s.Percent.StringFixed(1), SeverityLabel(s.Severity))
		}
	}

	if p := r.Projection; p != nil && p.Items > 0 {
		fmt.Fprintf(&b, "Simulación (%d movimientos): ahorro proyectado %s, %s\n",
			p.Items, core.FormatEuro(p.ProjectedSavings), ClassificationLabel(p.Classification))
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "Aviso: %s\n", w)
	}
	return b.String()
}

func SeverityLabel(s Severity) string {
	switch s {
	case SeverityExceeded:
		return "superado"
	case SeverityWarning:
		return "cerca del límite"
	}
	return "correcto"
}

func ClassificationLabel(c Classification) string {
	switch c {
	case Deficit:
		return "déficit"
	case SharplyReduced:
		return "ahorro muy reducido"
	case Reduced:
		return "ahorro reducido"
	}
	return "ahorro mejorado"
}
