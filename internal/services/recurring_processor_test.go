package services

import (
	"context"
	"testing"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 9, 0, 0, 0, time.UTC)
}

func recurringFixture(t *testing.T, schedule Schedule) (*RecurringProcessor, *LedgerService, *memory.Store) {
	t.Helper()
	st := memory.New(core.DefaultCategories)
	svc := NewLedgerService(st)
	ctx := context.Background()
	for _, tpl := range []core.RecurringTemplate{
		{Type: core.Income, Category: "Nómina", Concept: "Sueldo", Amount: d("2000"), Frequency: core.Monthly},
		{Type: core.Expense, Category: "Vivienda", Concept: "Alquiler", Amount: d("900"), Frequency: core.Monthly, IsJoint: true},
		{Type: core.Expense, Category: "Otros", Concept: "Seguro hogar", Amount: d("240"), Frequency: core.Annual},
		{Type: core.Expense, Category: "Ocio", Concept: "Concierto", Amount: d("80"), Frequency: core.OneTime},
	} {
		_, err := svc.AddTemplate(ctx, tpl)
		require.NoError(t, err)
	}
	return NewRecurringProcessor(svc, st, schedule, nil), svc, st
}

func TestProcessDuePostsEachBatchOnce(t *testing.T) {
	p, svc, st := recurringFixture(t, Schedule{Day: 1, Month: time.January})
	ctx := context.Background()

	n, err := p.ProcessDue(ctx, at(2024, time.May, 10))
	require.NoError(t, err)
	assert.Equal(t, 3, n, "two monthly templates plus the annual one; one-time is skipped")

	txs := svc.Transactions(ctx)
	require.Len(t, txs, 3)
	for _, tx := range txs {
		assert.Equal(t, core.NewDate(2024, 5, 10), tx.Date)
		assert.NotEqual(t, core.OneTime, tx.Frequency)
	}

	last, err := st.LastRun(ctx, "recurring:monthly")
	require.NoError(t, err)
	assert.Equal(t, at(2024, time.May, 10), last)

	n, err = p.ProcessDue(ctx, at(2024, time.May, 20))
	require.NoError(t, err)
	assert.Zero(t, n, "same month posts nothing")

	n, err = p.ProcessDue(ctx, at(2024, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, n, "only the monthly batch comes due again this year")
	assert.Len(t, svc.Transactions(ctx), 5)
}

func TestProcessDueRespectsAnchors(t *testing.T) {
	p, svc, _ := recurringFixture(t, Schedule{Day: 15, Month: time.September})
	ctx := context.Background()

	n, err := p.ProcessDue(ctx, at(2024, time.May, 10))
	require.NoError(t, err)
	assert.Zero(t, n, "before the anchor day")

	n, err = p.ProcessDue(ctx, at(2024, time.May, 15))
	require.NoError(t, err)
	assert.Equal(t, 2, n, "annual batch waits for September")

	n, err = p.ProcessDue(ctx, at(2024, time.September, 15))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var annual int
	for _, tx := range svc.Transactions(ctx) {
		if tx.Frequency == core.Annual {
			annual++
			assert.True(t, tx.MonthlyImpact.Equal(d("20")))
		}
	}
	assert.Equal(t, 1, annual)
}

func TestProcessDueWithoutTemplates(t *testing.T) {
	st := memory.New(core.DefaultCategories)
	p := NewRecurringProcessor(NewLedgerService(st), st, Schedule{Day: 1}, nil)

	n, err := p.ProcessDue(context.Background(), at(2024, time.May, 10))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessDueUninitialized(t *testing.T) {
	p := NewRecurringProcessor(nil, nil, Schedule{}, nil)
	_, err := p.ProcessDue(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestScheduleAnchor(t *testing.T) {
	now := at(2024, time.May, 10)
	assert.Equal(t, core.NewDate(2024, 5, 1), Schedule{}.anchor(core.Monthly, now))
	assert.Equal(t, core.NewDate(2024, 5, 28), Schedule{Day: 28, Month: time.March}.anchor(core.Monthly, now))
	assert.Equal(t, core.NewDate(2024, 3, 28), Schedule{Day: 28, Month: time.March}.anchor(core.Annual, now))
	assert.Equal(t, core.NewDate(2024, 5, 1), Schedule{Day: 1}.anchor(core.Annual, now), "no month keeps the current one")
}
