package ledger

import (
	"sort"
	"strconv"
	"time"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
)

// Aggregates are recomputed from the whole ledger on every read.
type Aggregates struct {
	Month                     core.MonthKey   `json:"month"`
	CurrentMonthIncome        decimal.Decimal `json:"current_month_income"`
	CurrentMonthExpenseActual decimal.Decimal `json:"current_month_expense_actual"`
	ProratedMonthlyExpense    decimal.Decimal `json:"prorated_monthly_expense"`
	SavingsCapacity           decimal.Decimal `json:"savings_capacity"`
	// AnnualProvision is the monthly amount to set aside for annual expenses.
	AnnualProvision decimal.Decimal `json:"annual_provision"`
	// JointExpenseTotal is the user's share of every joint expense so far.
	JointExpenseTotal decimal.Decimal `json:"joint_expense_total"`
	DistinctMonths    int             `json:"distinct_months"`
}

// Aggregate computes the headline figures for the reference month.
//
// Current month figures sum stored amounts whose calendar month matches
// ref. The prorated expense divides the sum of monthly impacts of all
// expenses by the number of distinct months present anywhere in the
// ledger, with the divisor floored at one.
func Aggregate(txs []core.Transaction, ref core.MonthKey) Aggregates {
	agg := Aggregates{
		Month:                     ref,
		CurrentMonthIncome:        decimal.Zero,
		CurrentMonthExpenseActual: decimal.Zero,
		AnnualProvision:           decimal.Zero,
		JointExpenseTotal:         decimal.Zero,
	}

	months := make(map[core.MonthKey]struct{})
	impact := decimal.Zero

	for _, tx := range txs {
		months[tx.Date.MonthKey()] = struct{}{}
		inMonth := tx.Date.MonthKey() == ref

		switch tx.Type {
		case core.Income:
			if inMonth {
				agg.CurrentMonthIncome = agg.CurrentMonthIncome.Add(tx.Amount)
			}
		case core.Expense:
			if inMonth {
				agg.CurrentMonthExpenseActual = agg.CurrentMonthExpenseActual.Add(tx.Amount)
			}
			impact = impact.Add(tx.MonthlyImpact)
			if tx.Frequency == core.Annual {
				agg.AnnualProvision = agg.AnnualProvision.Add(tx.MonthlyImpact)
			}
			if tx.IsJoint {
				agg.JointExpenseTotal = agg.JointExpenseTotal.Add(tx.Amount)
			}
		}
	}

	agg.DistinctMonths = len(months)
	divisor := one
	if agg.DistinctMonths > 1 {
		divisor = decimal.NewFromInt(int64(agg.DistinctMonths))
	}
	agg.ProratedMonthlyExpense = impact.Div(divisor)
	agg.SavingsCapacity = agg.CurrentMonthIncome.Sub(agg.ProratedMonthlyExpense)
	return agg
}

// InMonth keeps the transactions dated in the given calendar month.
func InMonth(txs []core.Transaction, ref core.MonthKey) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.MonthKey() == ref {
			out = append(out, tx)
		}
	}
	return out
}

// MonthNames labels months without consulting the runtime locale.
type MonthNames [12]string

// SpanishMonths is the default label table.
var SpanishMonths = MonthNames{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

func (n MonthNames) Name(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	if name := n[m-1]; name != "" {
		return name
	}
	return SpanishMonths[m-1]
}

// SeriesPoint is one (month, type) bucket of the evolution series.
type SeriesPoint struct {
	Month core.MonthKey   `json:"month"`
	Label string          `json:"label"`
	Type  core.TxType     `json:"type"`
	Total decimal.Decimal `json:"total"`
}

// MonthlySeries groups stored amounts by (year, month, type) in
// chronological order, income before expense within a month. Labels read
// "<month name> <year>".
func MonthlySeries(txs []core.Transaction, names MonthNames) []SeriesPoint {
	type key struct {
		month core.MonthKey
		typ   core.TxType
	}
	buckets := make(map[key]decimal.Decimal)
	for _, tx := range txs {
		k := key{tx.Date.MonthKey(), tx.Type}
		buckets[k] = buckets[k].Add(tx.Amount)
	}

	out := make([]SeriesPoint, 0, len(buckets))
	for k, total := range buckets {
		out = append(out, SeriesPoint{
			Month: k.month,
			Label: names.Name(k.month.Month) + " " + strconv.Itoa(k.month.Year),
			Type:  k.typ,
			Total: total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].Type == core.Income && out[j].Type != core.Income
	})
	return out
}

// Metric selects which amount a category breakdown sums.
type Metric string

const (
	// MetricCash sums stored amounts: money that actually left.
	MetricCash Metric = "cash"
	// MetricImpact sums monthly impacts: the recurring monthly burden.
	MetricImpact Metric = "impact"
)

func (m Metric) Valid() bool {
	return m == MetricCash || m == MetricImpact
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	// Share is the percentage of the grand total, 0-100.
	Share decimal.Decimal `json:"share"`
}

// CategoryTotals sums expense entries per category with the chosen metric.
// Results are sorted by total descending, then by name.
func CategoryTotals(txs []core.Transaction, metric Metric) []CategoryTotal {
	totals := make(map[string]decimal.Decimal)
	grand := decimal.Zero
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		v := tx.Amount
		if metric == MetricImpact {
			v = tx.MonthlyImpact
		}
		totals[tx.Category] = totals[tx.Category].Add(v)
		grand = grand.Add(v)
	}

	out := make([]CategoryTotal, 0, len(totals))
	for cat, total := range totals {
		share := decimal.Zero
		if grand.IsPositive() {
			share = total.Div(grand).Mul(hundred).Round(2)
		}
		out = append(out, CategoryTotal{Category: cat, Total: total, Share: share})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// SpendByCategory is CategoryTotals as a lookup map.
func SpendByCategory(txs []core.Transaction, metric Metric) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, ct := range CategoryTotals(txs, metric) {
		out[ct.Category] = ct.Total
	}
	return out
}

// TopCategories returns at most n entries of CategoryTotals.
func TopCategories(txs []core.Transaction, metric Metric, n int) []CategoryTotal {
	all := CategoryTotals(txs, metric)
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

type WeekdayTotal struct {
	Weekday time.Weekday    `json:"weekday"`
	Label   string          `json:"label"`
	Total   decimal.Decimal `json:"total"`
}

var spanishWeekdays = [7]string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"}

// WeekdayBreakdown sums expense cash per weekday, Monday first.
func WeekdayBreakdown(txs []core.Transaction) []WeekdayTotal {
	var sums [7]decimal.Decimal
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		wd := tx.Date.Weekday()
		sums[wd] = sums[wd].Add(tx.Amount)
	}
	out := make([]WeekdayTotal, 0, 7)
	for i := 1; i <= 7; i++ {
		wd := time.Weekday(i % 7)
		out = append(out, WeekdayTotal{Weekday: wd, Label: spanishWeekdays[wd], Total: sums[wd]})
	}
	return out
}
