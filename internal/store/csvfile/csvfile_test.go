package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tuple struct {
	Date, Type, Category, Concept, Amount, Frequency string
	Joint                                            bool
}

func tuples(txs []core.Transaction) []tuple {
	out := make([]tuple, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tuple{tx.Date.String(), string(tx.Type), tx.Category, tx.Concept, tx.Amount.String(), string(tx.Frequency), tx.IsJoint})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Concept < out[j].Concept })
	return out
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	txs := []core.Transaction{
		{ID: "b", Date: core.NewDate(2024, 1, 31), Type: core.Expense, Category: "Vivienda", Concept: "Alquiler, piso", Amount: decimal.RequireFromString("450"), Frequency: core.Monthly, MonthlyImpact: decimal.RequireFromString("450"), IsJoint: true},
		{ID: "a", Date: core.NewDate(2024, 2, 1), Type: core.Income, Category: "Nómina", Concept: "Sueldo \"extra\"", Amount: decimal.RequireFromString("2000.5"), Frequency: core.OneTime, MonthlyImpact: decimal.RequireFromString("2000.5")},
	}
	require.NoError(t, s.SaveTransactions(ctx, txs))

	got, err := s.LoadTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, tuples(txs), tuples(got))

	require.NoError(t, s.SaveTransactions(ctx, txs[:1]))
	got, _ = s.LoadTransactions(ctx)
	assert.Len(t, got, 1, "save overwrites")
}

func TestMissingFilesLoadEmpty(t *testing.T) {
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "nested"), nil)
	require.NoError(t, err)

	txs, err := s.LoadTransactions(ctx)
	assert.NoError(t, err)
	assert.Empty(t, txs)
	cats, err := s.LoadCategories(ctx)
	assert.NoError(t, err)
	assert.Empty(t, cats)
	budgets, err := s.LoadBudgets(ctx)
	assert.NoError(t, err)
	assert.Empty(t, budgets)
}

func TestLegacyFileWithoutIDs(t *testing.T) {
	dir := t.TempDir()
	legacy := "Fecha,Tipo,Categoría,Concepto,Importe,Frecuencia,Impacto_Mensual\n" +
		"05/01/2024,Gasto,Seguros,Coche,600,Anual,50\n" +
		"06/01/2024,Ingreso,Ingresos,Nómina,1800,Mensual,1800\n" +
		"garbage,Gasto,Otros,x,1,Puntual,1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, TransactionsFile), []byte(legacy), 0o644))

	s, err := New(dir, nil)
	require.NoError(t, err)
	txs, err := s.LoadTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.NotEmpty(t, txs[0].ID)
	assert.True(t, txs[0].MonthlyImpact.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, core.Income, txs[1].Type)
}

func TestCategoriesTemplatesBudgets(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.SaveCategories(ctx, []string{"Ocio", "Salud", "Ocio"}))
	cats, err := s.LoadCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ocio", "Salud"}, cats)

	tpl := core.RecurringTemplate{ID: "t1", Type: core.Expense, Category: "Ocio", Concept: "Netflix", Amount: decimal.RequireFromString("12.99"), Frequency: core.Monthly, IsJoint: true}
	require.NoError(t, s.SaveTemplates(ctx, []core.RecurringTemplate{tpl}))
	tpls, err := s.LoadTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, tpls, 1)
	assert.True(t, tpls[0].Amount.Equal(tpl.Amount))
	assert.True(t, tpls[0].IsJoint)

	require.NoError(t, s.SaveBudgets(ctx, []core.Budget{{Category: "Ocio", MonthlyLimit: decimal.NewFromInt(100)}}))
	budgets, err := s.LoadBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.True(t, budgets[0].MonthlyLimit.Equal(decimal.NewFromInt(100)))
}

func TestRunRecorderPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir, nil)
	require.NoError(t, err)

	last, err := s.LastRun(ctx, "recurring:monthly")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.RecordRun(ctx, "recurring:monthly", at))
	require.NoError(t, s.RecordRun(ctx, "recurring:annual", at.AddDate(0, 0, 1)))
	require.NoError(t, s.RecordRun(ctx, "recurring:monthly", at.AddDate(0, 1, 0)))

	reopened, err := New(dir, nil)
	require.NoError(t, err)
	last, err = reopened.LastRun(ctx, "recurring:monthly")
	require.NoError(t, err)
	assert.True(t, last.Equal(at.AddDate(0, 1, 0)))
	last, _ = reopened.LastRun(ctx, "recurring:annual")
	assert.True(t, last.Equal(at.AddDate(0, 0, 1)))
}
