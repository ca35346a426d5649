package ledger

import (
	"errors"
	"strings"
	"testing"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityBoundaries(t *testing.T) {
	cases := []struct {
		spend string
		want  Severity
	}{
		{"89.9", SeverityOK},
		{"90", SeverityWarning},
		{"99.99", SeverityWarning},
		{"100", SeverityExceeded},
		{"130", SeverityExceeded},
		{"0", SeverityOK},
	}
	for _, tc := range cases {
		out := EvaluateBudgets(
			[]core.Budget{{Category: "Ocio", MonthlyLimit: d("100")}},
			map[string]decimal.Decimal{"Ocio": d(tc.spend)},
		)
		require.Len(t, out, 1)
		assert.Equal(t, tc.want, out[0].Severity, "spend %s", tc.spend)
		assert.True(t, out[0].Remaining.Equal(d("100").Sub(d(tc.spend))))
	}
}

func TestEvaluateBudgetsOmitsZeroLimitAndUnbudgeted(t *testing.T) {
	out := EvaluateBudgets(
		[]core.Budget{
			{Category: "Ocio", MonthlyLimit: d("0")},
			{Category: "Vivienda", MonthlyLimit: d("500")},
		},
		map[string]decimal.Decimal{"Ocio": d("10"), "Vivienda": d("250"), "Salud": d("80")},
	)
	require.Len(t, out, 1)
	assert.Equal(t, "Vivienda", out[0].Category)
	assert.True(t, out[0].Percent.Equal(d("50")))
}

func TestActiveBudgetsLastWins(t *testing.T) {
	got := ActiveBudgets([]core.Budget{
		{Category: "Ocio", MonthlyLimit: d("100")},
		{Category: "Salud", MonthlyLimit: d("50")},
		{Category: "Ocio", MonthlyLimit: d("200")},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "Ocio", got[0].Category)
	assert.True(t, got[0].MonthlyLimit.Equal(d("200")))
}

func TestPartitionBudgets(t *testing.T) {
	known, unknown := PartitionBudgets([]core.Budget{
		{Category: "Ocio", MonthlyLimit: d("100")},
		{Category: "Gimnasio", MonthlyLimit: d("40")},
	}, []string{"Ocio", "Vivienda"})

	require.Len(t, known, 1)
	require.Len(t, unknown, 1)
	assert.True(t, errors.Is(unknown[0], core.ErrUnknownCategory))
	assert.Contains(t, unknown[0].Error(), "Gimnasio")
}

func TestBuildReportAndSummary(t *testing.T) {
	txs := sampleLedger()
	budgets := []core.Budget{
		{Category: "Seguros", MonthlyLimit: d("500")},
		{Category: "Gimnasio", MonthlyLimit: d("40")},
	}
	r := BuildReport(txs, budgets, []string{"Seguros", "Vivienda", "Ocio", "Nómina"}, may, SpanishMonths)

	require.Len(t, r.Budgets, 1)
	assert.Equal(t, SeverityExceeded, r.Budgets[0].Severity)
	require.Len(t, r.Warnings, 1)
	assert.Len(t, r.Series, 4)

	sim := NewSimulator(ClassificationPolicy{})
	_, _ = sim.Add(input(core.Expense, "100", core.Monthly, false))
	p := sim.Project(r.Aggregates)
	r.Projection = &p

	text := Summary(r, SpanishMonths)
	assert.True(t, strings.HasPrefix(text, "Resumen financiero de Mayo 2024"))
	assert.Contains(t, text, "Ingresos del mes: 2.100,00 €")
	assert.Contains(t, text, "Seguros: 600,00 € de 500,00 €")
	assert.Contains(t, text, "Simulación (1 movimientos)")
	assert.Contains(t, text, "Gimnasio")
}
