package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useCSVLedger points the commands at a fresh CSV ledger.
func useCSVLedger(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_BACKEND", "csv")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("SETTINGS_FILE", filepath.Join(dir, "finanzas.toml"))
	t.Setenv("AMQP_URL", "")
	t.Setenv("PORT", "8081")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "finanzas %v", args)
	return out
}

const mayExport = "Fecha;Tipo;Categoría;Concepto;Importe;Frecuencia;Conjunto\n" +
	"01/05/2024;Ingreso;Nómina;Sueldo;2.100,00 €;Mensual;\n" +
	"03/05/2024;Gasto;Vivienda;Alquiler;800;Mensual;sí\n" +
	"20/05/2024;Gasto;Seguros;Coche;600,00;Anual;no\n"

func importMay(t *testing.T, dir string) {
	t.Helper()
	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(mayExport), 0o644))
	out := mustRun(t, "import", path, "--create-categories")
	assert.Contains(t, out, "Importados")
	assert.Contains(t, out, "Seguros")
}

func TestSummaryAfterImport(t *testing.T) {
	dir := useCSVLedger(t)
	importMay(t, dir)

	// Income 2100; the joint rent counts 400 and the annual insurance 50.
	out := mustRun(t, "summary", "--month", "2024-05", "--text")
	assert.Contains(t, out, "Resumen financiero de Mayo 2024")
	assert.Contains(t, out, "Gasto mensual prorrateado: 450,00 €")
	assert.Contains(t, out, "Capacidad de ahorro: 1.650,00 €")

	out = mustRun(t, "--month", "2024-05", "summary", "--entries")
	assert.Contains(t, out, "MAYO 2024")
	assert.Contains(t, out, "Alquiler (conjunto)")
	assert.Contains(t, out, "1.650,00 €")

	out = mustRun(t, "summary", "--month", "2024-05", "--json")
	assert.Contains(t, out, `"savings_capacity": "1650"`)
}

func TestImportDryRunSavesNothing(t *testing.T) {
	dir := useCSVLedger(t)
	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(mayExport), 0o644))

	out := mustRun(t, "import", path, "--dry-run", "--create-categories")
	assert.Contains(t, out, "simulacro")

	out = mustRun(t, "summary", "--month", "2024-05", "--text")
	assert.Contains(t, out, "Ingresos del mes: 0,00 €")
}

func TestImportRejectsUnknownDelimiter(t *testing.T) {
	useCSVLedger(t)
	_, err := run(t, "import", "-", "--delimiter", "|")
	assert.ErrorContains(t, err, "delimiter")
	_, err = run(t, "import", "-", "--locale", "fr")
	assert.ErrorContains(t, err, "locale")
}

func TestImportSpanishLocale(t *testing.T) {
	dir := useCSVLedger(t)
	path := filepath.Join(dir, "banco.csv")
	require.NoError(t, os.WriteFile(path, []byte("Fecha;Tipo;Categoría;Concepto;Importe\n"+
		"01/05/2024;Ingreso;Nómina;Sueldo;2.100\n"), 0o644))

	mustRun(t, "import", path, "--locale", "es")
	out := mustRun(t, "summary", "--month", "2024-05", "--text")
	assert.Contains(t, out, "Ingresos del mes: 2.100,00 €")
}

func TestBudgets(t *testing.T) {
	dir := useCSVLedger(t)
	importMay(t, dir)

	out := mustRun(t, "budgets", "set", "Vivienda", "500")
	assert.Contains(t, out, "500,00 €/mes")

	out = mustRun(t, "budgets", "--month", "2024-05")
	assert.Contains(t, out, "Vivienda")
	assert.Contains(t, out, "80.0%")
	assert.Contains(t, out, "100,00 €")

	_, err := run(t, "budgets", "set", "Vivienda", "abc")
	assert.True(t, core.IsValidation(err))

	mustRun(t, "budgets", "rm", "Vivienda")
	out = mustRun(t, "budgets", "--month", "2024-05")
	assert.Contains(t, out, "Sin presupuestos")
}

func TestCategories(t *testing.T) {
	useCSVLedger(t)

	out := mustRun(t, "categories")
	assert.Contains(t, out, "Vivienda")

	out = mustRun(t, "categories", "add", "Viajes")
	assert.Contains(t, out, "Viajes")

	out = mustRun(t, "categories", "rm", "Viajes")
	assert.NotContains(t, out, "Viajes")

	_, err := run(t, "categories", "rm", "Viajes")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSimulateDoesNotSave(t *testing.T) {
	dir := useCSVLedger(t)
	importMay(t, dir)

	// Projected expense 450 + 100, savings 1550 against a capacity of 1650.
	out := mustRun(t, "simulate", "--month", "2024-05", "--item", "gasto;Ocio;Cena;100")
	assert.Contains(t, out, "1.550,00 €")
	assert.Contains(t, out, "ahorro reducido")

	out = mustRun(t, "simulate", "--month", "2024-05", "--text",
		"--item", "ingreso;Nómina;Extra;300;mensual")
	assert.Contains(t, out, "ahorro proyectado 1.950,00 €, ahorro mejorado")

	out = mustRun(t, "summary", "--month", "2024-05", "--text")
	assert.Contains(t, out, "Capacidad de ahorro: 1.650,00 €")

	_, err := run(t, "simulate", "--item", "gasto;Ocio;Cena")
	assert.ErrorContains(t, err, "item 1")
	_, err = run(t, "simulate")
	assert.ErrorContains(t, err, "--item")
}

func TestMaterializeWithoutTemplates(t *testing.T) {
	useCSVLedger(t)
	out := mustRun(t, "materialize", "--date", "01/06/2024")
	assert.Contains(t, out, "No hay plantillas")

	_, err := run(t, "materialize", "--date", "junio")
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestChart(t *testing.T) {
	dir := useCSVLedger(t)
	importMay(t, dir)

	png := filepath.Join(dir, "cats.png")
	out := mustRun(t, "chart", "categories", "--month", "2024-05", "--metric", "impact", "-o", png)
	assert.Contains(t, out, png)
	img, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))

	_, err = run(t, "chart", "pie")
	assert.Error(t, err)
	_, err = run(t, "chart", "categories", "--metric", "both")
	assert.ErrorContains(t, err, "metric")
}

func TestBadMonthAndBackend(t *testing.T) {
	useCSVLedger(t)
	_, err := run(t, "summary", "--month", "mayo")
	assert.ErrorIs(t, err, core.ErrInvalidMonth)

	_, err = run(t, "summary", "--backend", "excel")
	assert.ErrorContains(t, err, "invalid data backend")
}

func TestParseItem(t *testing.T) {
	core.Today = func() core.Date { return core.NewDate(2024, 5, 15) }
	t.Cleanup(func() { core.Today = defaultToday })

	tests := []struct {
		raw     string
		want    core.EntryInput
		wantErr string
	}{
		{
			raw: "gasto;Ocio;Cena;45,50",
			want: core.EntryInput{Date: core.NewDate(2024, 5, 15), Type: core.Expense, Category: "Ocio",
				Concept: "Cena", Amount: decimal.RequireFromString("45.5"), Frequency: core.OneTime},
		},
		{
			raw: " ingreso ; Nómina ; Subida ; 150 ; mensual ",
			want: core.EntryInput{Date: core.NewDate(2024, 5, 15), Type: core.Income, Category: "Nómina",
				Concept: "Subida", Amount: decimal.RequireFromString("150"), Frequency: core.Monthly},
		},
		{
			raw: "gasto;Ocio;Viaje;1200;anual;sí",
			want: core.EntryInput{Date: core.NewDate(2024, 5, 15), Type: core.Expense, Category: "Ocio",
				Concept: "Viaje", Amount: decimal.RequireFromString("1200"), Frequency: core.Annual, IsJoint: true},
		},
		{raw: "gasto;Ocio;Cena", wantErr: "want tipo"},
		{raw: "regalo;Ocio;Cena;10", wantErr: "type"},
		{raw: "gasto;Ocio;Cena;diez", wantErr: "amount"},
		{raw: "gasto;Ocio;Cena;10;semanal", wantErr: "frequency"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseItem(tt.raw)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Type, got.Type)
			assert.Equal(t, tt.want.Category, got.Category)
			assert.Equal(t, tt.want.Concept, got.Concept)
			assert.True(t, tt.want.Amount.Equal(got.Amount), "amount %s", got.Amount)
			assert.Equal(t, tt.want.Frequency, got.Frequency)
			assert.Equal(t, tt.want.IsJoint, got.IsJoint)
			assert.Equal(t, tt.want.Date, got.Date)
		})
	}
}

var defaultToday = core.Today
