package ledger

import (
	"testing"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func input(typ core.TxType, amount string, freq core.Frequency, joint bool) core.EntryInput {
	return core.EntryInput{
		Date:      core.NewDate(2024, 5, 10),
		Type:      typ,
		Category:  "Vivienda",
		Concept:   "test",
		Amount:    d(amount),
		Frequency: freq,
		IsJoint:   joint,
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name            string
		typ             core.TxType
		total           string
		freq            core.Frequency
		joint           bool
		stored, monthly string
	}{
		{"monthly expense", core.Expense, "100", core.Monthly, false, "100", "100"},
		{"joint monthly expense", core.Expense, "100", core.Monthly, true, "50", "50"},
		{"joint annual expense", core.Expense, "1200", core.Annual, true, "600", "50"},
		{"annual expense", core.Expense, "1200", core.Annual, false, "1200", "100"},
		{"one-time expense", core.Expense, "35.20", core.OneTime, false, "35.20", "35.20"},
		{"joint income is not split", core.Income, "2000", core.Monthly, true, "2000", "2000"},
		{"annual income", core.Income, "600", core.Annual, false, "600", "50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stored, monthly := Normalize(tc.typ, d(tc.total), tc.freq, tc.joint)
			assert.True(t, stored.Equal(d(tc.stored)), "stored %s want %s", stored, tc.stored)
			assert.True(t, monthly.Equal(d(tc.monthly)), "monthly %s want %s", monthly, tc.monthly)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, freq := range []core.Frequency{core.Monthly, core.Annual, core.OneTime} {
		for _, joint := range []bool{true, false} {
			s1, m1 := Normalize(core.Expense, d("987.65"), freq, joint)
			s2, m2 := Normalize(core.Expense, d("987.65"), freq, joint)
			assert.True(t, s1.Equal(s2))
			assert.True(t, m1.Equal(m2))
		}
	}
}

func TestAnnualImpactTimesTwelveIsStored(t *testing.T) {
	stored, monthly := Normalize(core.Expense, d("1000"), core.Annual, false)
	assert.True(t, monthly.Mul(twelve).Round(8).Equal(stored), "got %s", monthly.Mul(twelve))
}

func TestNewTransaction(t *testing.T) {
	tx, err := NewTransaction(input(core.Expense, "1200", core.Annual, true))
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.True(t, tx.Amount.Equal(d("600")))
	assert.True(t, tx.MonthlyImpact.Equal(d("50")))
	assert.True(t, tx.Total().Equal(d("1200")))

	_, err = NewTransaction(input(core.Expense, "0", core.Monthly, false))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	bad := input(core.Expense, "10", core.Monthly, false)
	bad.Concept = ""
	_, err = NewTransaction(bad)
	assert.ErrorIs(t, err, core.ErrEmptyConcept)
}

func TestReplaceRenormalizes(t *testing.T) {
	orig, err := NewTransaction(input(core.Expense, "100", core.Monthly, false))
	require.NoError(t, err)

	edited, err := Replace(orig, input(core.Expense, "2400", core.Annual, true))
	require.NoError(t, err)
	assert.Equal(t, orig.ID, edited.ID)
	assert.True(t, edited.Amount.Equal(d("1200")))
	assert.True(t, edited.MonthlyImpact.Equal(d("100")))

	_, err = Replace(orig, input(core.Expense, "-1", core.Monthly, false))
	assert.Error(t, err)
}

func TestRenormalize(t *testing.T) {
	tx := core.Transaction{Type: core.Expense, Amount: d("240"), Frequency: core.Annual, MonthlyImpact: d("999")}
	assert.True(t, Renormalize(tx).MonthlyImpact.Equal(d("20")))
}

func TestMaterialize(t *testing.T) {
	templates := []core.RecurringTemplate{
		{Type: core.Expense, Category: "Vivienda", Concept: "Alquiler", Amount: d("900"), Frequency: core.Monthly, IsJoint: true},
		{Type: core.Expense, Category: "Seguros", Concept: "Coche", Amount: d("480"), Frequency: core.Annual},
		{Type: core.Income, Category: "Nómina", Concept: "Sueldo", Amount: d("2500"), Frequency: core.Monthly},
	}
	date := core.NewDate(2024, 6, 1)

	first := Materialize(templates, date)
	require.Len(t, first, len(templates))
	for i, tx := range first {
		assert.True(t, tx.Date.Equal(date.Time))
		assert.Equal(t, templates[i].Concept, tx.Concept)
		assert.NotEmpty(t, tx.ID)
	}
	assert.True(t, first[0].Amount.Equal(d("450")))
	assert.True(t, first[1].MonthlyImpact.Equal(d("40")))
	assert.True(t, first[2].Amount.Equal(d("2500")))

	// No dedup: a second call is a second batch.
	second := Materialize(templates, date)
	assert.Len(t, append(first, second...), 2*len(templates))
	assert.NotEqual(t, first[0].ID, second[0].ID)

	assert.Empty(t, Materialize(nil, date))
}
