// Package charts renders ledger figures as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/ledger"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to chart")

var (
	incomeColor  = drawing.ColorFromHex("2e7d32")
	expenseColor = drawing.ColorFromHex("c62828")
	savingsColor = drawing.ColorFromHex("1565c0")
)

var background = chart.Style{
	Padding:   chart.Box{Top: 50, Left: 50, Right: 50, Bottom: 50},
	FillColor: chart.ColorWhite,
}

func euros(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f €", f)
	}
	return ""
}

// Evolution draws the monthly income/expense series as grouped bars, one
// pair per month.
func Evolution(series []ledger.SeriesPoint) ([]byte, error) {
	if len(series) == 0 {
		return nil, ErrNoData
	}

	bars := make([]chart.Value, 0, len(series))
	top := 0.0
	for _, p := range series {
		v := p.Total.InexactFloat64()
		if v > top {
			top = v
		}
		color := expenseColor
		suffix := "G"
		if p.Type == core.Income {
			color, suffix = incomeColor, "I"
		}
		bars = append(bars, chart.Value{
			Label: p.Label + " " + suffix,
			Value: v,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
	}
	if top <= 0 {
		return nil, ErrNoData
	}

	graph := chart.BarChart{
		Title:      "Evolución",
		Width:      max(800, 90*len(bars)),
		Height:     500,
		BarWidth:   40,
		Background: background,
		YAxis: chart.YAxis{
			ValueFormatter: euros,
			Range:          &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render evolution chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// Trend draws income, expense and their difference as lines over time.
// It needs at least two months.
func Trend(series []ledger.SeriesPoint) ([]byte, error) {
	type month struct{ income, expense float64 }
	byMonth := map[core.MonthKey]*month{}
	var keys []core.MonthKey
	for _, p := range series {
		m, ok := byMonth[p.Month]
		if !ok {
			m = &month{}
			byMonth[p.Month] = m
			keys = append(keys, p.Month)
		}
		if p.Type == core.Income {
			m.income += p.Total.InexactFloat64()
		} else {
			m.expense += p.Total.InexactFloat64()
		}
	}
	if len(keys) < 2 {
		return nil, ErrNoData
	}

	// series is already chronological.
	xs := make([]time.Time, len(keys))
	income := make([]float64, len(keys))
	expense := make([]float64, len(keys))
	savings := make([]float64, len(keys))
	for i, k := range keys {
		xs[i] = time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
		income[i] = byMonth[k].income
		expense[i] = byMonth[k].expense
		savings[i] = income[i] - expense[i]
	}

	graph := chart.Chart{
		Title:      "Tendencia",
		Width:      1000,
		Height:     500,
		Background: background,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("01/2006"),
		},
		YAxis: chart.YAxis{
			ValueFormatter: euros,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Ingresos",
				XValues: xs,
				YValues: income,
				Style:   chart.Style{StrokeColor: incomeColor, StrokeWidth: 2},
			},
			chart.TimeSeries{
				Name:    "Gastos",
				XValues: xs,
				YValues: expense,
				Style:   chart.Style{StrokeColor: expenseColor, StrokeWidth: 2},
			},
			chart.TimeSeries{
				Name:    "Ahorro",
				XValues: xs,
				YValues: savings,
				Style: chart.Style{
					StrokeColor:     savingsColor,
					StrokeWidth:     2,
					StrokeDashArray: []float64{5.0, 5.0},
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render trend chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// Categories draws a pie of category totals. Slices under one percent are
// folded into "Otros".
func Categories(totals []ledger.CategoryTotal, title string) ([]byte, error) {
	values := make([]chart.Value, 0, len(totals))
	rest := 0.0
	for _, ct := range totals {
		v := ct.Total.InexactFloat64()
		if v <= 0 {
			continue
		}
		if ct.Share.InexactFloat64() < 1 {
			rest += v
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %.0f € (%s%%)", ct.Category, v, ct.Share.StringFixed(1)),
			Value: v,
		})
	}
	if rest > 0 {
		values = append(values, chart.Value{Label: fmt.Sprintf("Otros: %.0f €", rest), Value: rest})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	pie := chart.PieChart{
		Title:      title,
		Width:      800,
		Height:     800,
		Values:     values,
		Background: background,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render category chart: %w", err)
	}
	return buffer.Bytes(), nil
}
