package cli

import (
	"fmt"
	"strconv"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/importer"
	"finanzas/internal/ledger"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorText).Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(ColorText).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorTextMuted)
	dimStyle    = lipgloss.NewStyle().Foreground(ColorTextDim)
	goodStyle   = lipgloss.NewStyle().Foreground(ColorGreen)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorOrange)
	badStyle    = lipgloss.NewStyle().Foreground(ColorRed)
)

// Table is a bordered text table. The first column is left aligned, the
// rest are right aligned.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)
	return border.Render(titleStyle.Render(title))
}

func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return cellStyle
			}
			return cellStyle.Align(lipgloss.Right)
		})

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}
	b.WriteString(tbl.String())
	b.WriteString("\n")
	return b.String()
}

// RenderWarnings lists warnings in orange, one per line.
func RenderWarnings(warnings []string) string {
	var b strings.Builder
	for _, w := range warnings {
		b.WriteString(warnStyle.Render("  ! " + w))
		b.WriteString("\n")
	}
	return b.String()
}

func severityStyle(s ledger.Severity) lipgloss.Style {
	switch s {
	case ledger.SeverityExceeded:
		return badStyle
	case ledger.SeverityWarning:
		return warnStyle
	}
	return goodStyle
}

func classificationStyle(c ledger.Classification) lipgloss.Style {
	switch c {
	case ledger.Deficit:
		return badStyle
	case ledger.SharplyReduced, ledger.Reduced:
		return warnStyle
	}
	return goodStyle
}

func metricsRows(a ledger.Aggregates) [][]string {
	return [][]string{
		{"Ingresos del mes", core.FormatEuro(a.CurrentMonthIncome)},
		{"Gastos reales del mes", core.FormatEuro(a.CurrentMonthExpenseActual)},
		{"Gasto mensual prorrateado", core.FormatEuro(a.ProratedMonthlyExpense)},
		{"Capacidad de ahorro", core.FormatEuro(a.SavingsCapacity)},
		{"Hucha anual", core.FormatEuro(a.AnnualProvision)},
		{"Acumulado conjunto", core.FormatEuro(a.JointExpenseTotal)},
		{"Meses registrados", strconv.Itoa(a.DistinctMonths)},
	}
}

// RenderReport renders the dashboard for one month.
func RenderReport(r ledger.Report, names ledger.MonthNames) string {
	var b strings.Builder
	a := r.Aggregates

	b.WriteString(RenderTitle(fmt.Sprintf("FINANZAS  %s %d", strings.ToUpper(names.Name(a.Month.Month)), a.Month.Year)))
	b.WriteString("\n\n")
	b.WriteString(RenderTable(Table{Headers: []string{"Métrica", "Valor"}, Rows: metricsRows(a)}))

	if len(r.TopCategories) > 0 {
		rows := make([][]string, 0, len(r.TopCategories))
		for _, c := range r.TopCategories {
			rows = append(rows, []string{c.Category, core.FormatEuro(c.Total), c.Share.StringFixed(1) + "%"})
		}
		b.WriteString("\n")
		b.WriteString(RenderTable(Table{Title: "Top categorías del mes", Headers: []string{"Categoría", "Gasto", "Peso"}, Rows: rows}))
	}

	if len(r.Budgets) > 0 {
		b.WriteString("\n")
		b.WriteString(RenderBudgets(r.Budgets))
	}
	if r.Projection != nil {
		b.WriteString("\n")
		b.WriteString(RenderProjection(*r.Projection))
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(RenderWarnings(r.Warnings))
	}
	return b.String()
}

func RenderBudgets(statuses []ledger.BudgetStatus) string {
	if len(statuses) == 0 {
		return mutedStyle.Render("  Sin presupuestos activos.") + "\n"
	}
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{
			s.Category,
			core.FormatEuro(s.Spend),
			core.FormatEuro(s.Limit),
			core.FormatEuro(s.Remaining),
			s.Percent.StringFixed(1) + "%",
			severityStyle(s.Severity).Render(ledger.SeverityLabel(s.Severity)),
		})
	}
	return RenderTable(Table{
		Title:   "Presupuestos",
		Headers: []string{"Categoría", "Gastado", "Límite", "Restante", "Consumo", "Estado"},
		Rows:    rows,
	})
}

func RenderProjection(p ledger.Projection) string {
	rows := [][]string{
		{"Ingresos simulados", core.FormatEuro(p.SimIncome)},
		{"Gastos simulados (impacto)", core.FormatEuro(p.SimExpense)},
		{"Ingresos proyectados", core.FormatEuro(p.ProjectedIncome)},
		{"Gastos proyectados", core.FormatEuro(p.ProjectedExpense)},
		{"Ahorro proyectado", core.FormatEuro(p.ProjectedSavings)},
		{"Capacidad actual", core.FormatEuro(p.SavingsCapacity)},
		{"Diferencia", core.FormatEuro(p.Delta)},
		{"Resultado", classificationStyle(p.Classification).Render(ledger.ClassificationLabel(p.Classification))},
	}
	return RenderTable(Table{
		Title:   fmt.Sprintf("Simulación (%d movimientos)", p.Items),
		Headers: []string{"Concepto", "Valor"},
		Rows:    rows,
	})
}

// RenderTransactions lists entries as stored, joint ones marked.
func RenderTransactions(title string, txs []core.Transaction) string {
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		concept := tx.Concept
		if tx.IsJoint {
			concept += " (conjunto)"
		}
		rows = append(rows, []string{
			tx.Date.String(), tx.Type.Label(), tx.Category, concept,
			core.FormatEuro(tx.Amount), tx.Frequency.Label(), core.FormatEuro(tx.MonthlyImpact),
		})
	}
	return RenderTable(Table{
		Title:   title,
		Headers: []string{"Fecha", "Tipo", "Categoría", "Concepto", "Importe", "Frecuencia", "Impacto"},
		Rows:    rows,
	})
}

func RenderImport(r importer.Report, dryRun bool) string {
	var b strings.Builder
	verb := "Importados"
	if dryRun {
		verb = "Válidos (simulacro)"
	}
	rows := [][]string{
		{"Filas leídas", strconv.Itoa(r.Rows)},
		{verb, strconv.Itoa(r.Imported)},
		{"Rechazados", strconv.Itoa(len(r.Rejected))},
	}
	if len(r.NewCategories) > 0 {
		rows = append(rows, []string{"Categorías nuevas", strings.Join(r.NewCategories, ", ")})
	}
	if r.SignInferred {
		rows = append(rows, []string{"Tipo", "deducido del signo"})
	}
	b.WriteString(RenderTable(Table{Title: "Importación", Headers: []string{"Resultado", ""}, Rows: rows}))
	if msgs := r.Messages(); len(msgs) > 0 {
		b.WriteString(RenderWarnings(msgs))
	}
	return b.String()
}

// RenderCategories renders the active set as a single column.
func RenderCategories(cats []string) string {
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, []string{c})
	}
	return RenderTable(Table{Headers: []string{"Categorías"}, Rows: rows})
}
