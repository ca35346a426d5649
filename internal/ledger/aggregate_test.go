package ledger

import (
	"testing"
	"time"

	"finanzas/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(date core.Date, typ core.TxType, cat, amount string, freq core.Frequency, joint bool) core.Transaction {
	in := core.EntryInput{Date: date, Type: typ, Category: cat, Concept: cat, Amount: d(amount), Frequency: freq, IsJoint: joint}
	t, err := NewTransaction(in)
	if err != nil {
		panic(err)
	}
	return t
}

var may = core.MonthKey{Year: 2024, Month: time.May}

func sampleLedger() []core.Transaction {
	return []core.Transaction{
		tx(core.NewDate(2024, 4, 1), core.Income, "Nómina", "2000", core.Monthly, false),
		tx(core.NewDate(2024, 4, 3), core.Expense, "Vivienda", "800", core.Monthly, true),
		tx(core.NewDate(2024, 5, 1), core.Income, "Nómina", "2100", core.Monthly, false),
		tx(core.NewDate(2024, 5, 3), core.Expense, "Vivienda", "800", core.Monthly, true),
		tx(core.NewDate(2024, 5, 20), core.Expense, "Seguros", "600", core.Annual, false),
		tx(core.NewDate(2024, 5, 21), core.Expense, "Ocio", "60", core.OneTime, false),
	}
}

func TestAggregate(t *testing.T) {
	agg := Aggregate(sampleLedger(), may)

	assert.True(t, agg.CurrentMonthIncome.Equal(d("2100")), "income %s", agg.CurrentMonthIncome)
	// 400 + 600 + 60 stored
	assert.True(t, agg.CurrentMonthExpenseActual.Equal(d("1060")), "actual %s", agg.CurrentMonthExpenseActual)
	// impacts: 400 + 400 + 50 + 60 = 910 over 2 months
	assert.True(t, agg.ProratedMonthlyExpense.Equal(d("455")), "prorated %s", agg.ProratedMonthlyExpense)
	assert.True(t, agg.SavingsCapacity.Equal(d("1645")), "capacity %s", agg.SavingsCapacity)
	assert.True(t, agg.AnnualProvision.Equal(d("50")))
	assert.True(t, agg.JointExpenseTotal.Equal(d("800")))
	assert.Equal(t, 2, agg.DistinctMonths)
}

func TestAggregateMatchesYearToo(t *testing.T) {
	txs := []core.Transaction{
		tx(core.NewDate(2023, 5, 1), core.Income, "Nómina", "999", core.Monthly, false),
		tx(core.NewDate(2024, 5, 1), core.Income, "Nómina", "1", core.Monthly, false),
	}
	agg := Aggregate(txs, may)
	assert.True(t, agg.CurrentMonthIncome.Equal(d("1")))
}

func TestAggregateEmptyLedger(t *testing.T) {
	agg := Aggregate(nil, may)
	assert.True(t, agg.ProratedMonthlyExpense.IsZero())
	assert.True(t, agg.SavingsCapacity.IsZero())
	assert.Equal(t, 0, agg.DistinctMonths)
}

func TestAggregateSingleMonthDivisorIsOne(t *testing.T) {
	txs := []core.Transaction{
		tx(core.NewDate(2024, 5, 2), core.Expense, "Ocio", "30", core.OneTime, false),
		tx(core.NewDate(2024, 5, 9), core.Expense, "Ocio", "20", core.OneTime, false),
	}
	agg := Aggregate(txs, may)
	assert.True(t, agg.ProratedMonthlyExpense.Equal(d("50")))
}

func TestAggregateDivisorCountsPresentMonths(t *testing.T) {
	mayRent := tx(core.NewDate(2024, 5, 3), core.Expense, "Vivienda", "300", core.OneTime, false)

	tests := []struct {
		name         string
		txs          []core.Transaction
		ref          core.MonthKey
		wantMonths   int
		wantProrated string
	}{
		{
			name: "gaps are absent months",
			txs: []core.Transaction{
				tx(core.NewDate(2023, 1, 15), core.Expense, "Ocio", "100", core.OneTime, false),
				tx(core.NewDate(2024, 12, 15), core.Expense, "Ocio", "300", core.OneTime, false),
			},
			ref:          core.MonthKey{Year: 2024, Month: time.December},
			wantMonths:   2,
			wantProrated: "200",
		},
		{
			name: "income only month counts",
			txs: []core.Transaction{
				tx(core.NewDate(2024, 4, 1), core.Income, "Nómina", "1000", core.Monthly, false),
				mayRent,
			},
			ref:          may,
			wantMonths:   2,
			wantProrated: "150",
		},
		{
			name:         "single month",
			txs:          []core.Transaction{mayRent},
			ref:          may,
			wantMonths:   1,
			wantProrated: "300",
		},
		{
			name: "backdated entry raises the divisor",
			txs: []core.Transaction{
				mayRent,
				tx(core.NewDate(2019, 11, 2), core.Expense, "Ocio", "60", core.OneTime, false),
			},
			ref:          may,
			wantMonths:   2,
			wantProrated: "180",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := Aggregate(tt.txs, tt.ref)
			assert.Equal(t, tt.wantMonths, agg.DistinctMonths)
			assert.True(t, agg.ProratedMonthlyExpense.Equal(d(tt.wantProrated)), "prorated %s", agg.ProratedMonthlyExpense)
		})
	}
}

func TestMonthlySeries(t *testing.T) {
	series := MonthlySeries(sampleLedger(), SpanishMonths)
	require.Len(t, series, 4)

	assert.Equal(t, "Abril 2024", series[0].Label)
	assert.Equal(t, core.Income, series[0].Type)
	assert.Equal(t, core.Expense, series[1].Type)
	assert.True(t, series[1].Total.Equal(d("400")))
	assert.Equal(t, "Mayo 2024", series[2].Label)
	assert.True(t, series[3].Total.Equal(d("1060")))
}

func TestMonthNamesOverride(t *testing.T) {
	names := MonthNames{"Jan", "Feb"}
	assert.Equal(t, "Jan", names.Name(time.January))
	assert.Equal(t, "Marzo", names.Name(time.March))
	assert.Equal(t, "", names.Name(13))
}

func TestCategoryTotalsMetricsStaySeparate(t *testing.T) {
	txs := sampleLedger()

	cash := SpendByCategory(txs, MetricCash)
	impact := SpendByCategory(txs, MetricImpact)

	assert.True(t, cash["Seguros"].Equal(d("600")))
	assert.True(t, impact["Seguros"].Equal(d("50")))
	assert.True(t, cash["Vivienda"].Equal(d("800")))
	assert.True(t, impact["Vivienda"].Equal(d("800")))
	_, hasIncome := cash["Nómina"]
	assert.False(t, hasIncome)
}

func TestTopCategories(t *testing.T) {
	top := TopCategories(InMonth(sampleLedger(), may), MetricCash, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "Seguros", top[0].Category)
	assert.Equal(t, "Vivienda", top[1].Category)
	// 600 / 1060
	assert.True(t, top[0].Share.Equal(d("56.6")), "share %s", top[0].Share)
}

func TestWeekdayBreakdown(t *testing.T) {
	// 2024-05-20 is a Monday, 2024-05-21 a Tuesday.
	wd := WeekdayBreakdown(InMonth(sampleLedger(), may))
	require.Len(t, wd, 7)
	assert.Equal(t, time.Monday, wd[0].Weekday)
	assert.Equal(t, "Lun", wd[0].Label)
	assert.True(t, wd[0].Total.Equal(d("600")))
	assert.True(t, wd[1].Total.Equal(d("60")))
	assert.Equal(t, time.Sunday, wd[6].Weekday)
}
