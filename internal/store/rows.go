package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/ledger"

	"github.com/google/uuid"
)

// Column keys. Header cells are matched after folding case and accents,
// so "Categoría", "categoria" and "CATEGORIA" all map to ColCategory.
const (
	ColID            = "id"
	ColDate          = "fecha"
	ColType          = "tipo"
	ColCategory      = "categoria"
	ColConcept       = "concepto"
	ColAmount        = "importe"
	ColFrequency     = "frecuencia"
	ColMonthlyImpact = "impacto_mensual"
	ColJoint         = "conjunto"
	ColLimit         = "limite_mensual"
)

var (
	// TransactionHeader is the default layout for the ledger sheet/file.
	TransactionHeader = []string{"ID", "Fecha", "Tipo", "Categoría", "Concepto", "Importe", "Frecuencia", "Impacto_Mensual", "Conjunto"}
	// LegacyTransactionHeader is the layout of files written before IDs
	// and the joint flag existed.
	LegacyTransactionHeader = []string{"Fecha", "Tipo", "Categoría", "Concepto", "Importe", "Frecuencia", "Impacto_Mensual"}
	TemplateHeader          = []string{"ID", "Tipo", "Categoría", "Concepto", "Importe", "Frecuencia", "Conjunto"}
	CategoryHeader          = []string{"Categoría"}
	BudgetHeader            = []string{"Categoría", "Límite_Mensual"}
)

var aliases = map[string]string{
	"date":           ColDate,
	"type":           ColType,
	"category":       ColCategory,
	"concept":        ColConcept,
	"descripcion":    ColConcept,
	"description":    ColConcept,
	"amount":         ColAmount,
	"cantidad":       ColAmount,
	"frequency":      ColFrequency,
	"monthly_impact": ColMonthlyImpact,
	"joint":          ColJoint,
	"es_conjunto":    ColJoint,
	"limite":         ColLimit,
	"limit":          ColLimit,
	"monthly_limit":  ColLimit,
}

var foldAccents = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	" ", "_", "-", "_",
)

// NormalizeHeader maps a header cell to its column key.
func NormalizeHeader(cell string) string {
	k := foldAccents.Replace(strings.ToLower(strings.TrimSpace(cell)))
	if a, ok := aliases[k]; ok {
		return a
	}
	return k
}

// Schema maps column keys to positions in a row.
type Schema map[string]int

// SchemaFor builds a positional schema from a known header.
func SchemaFor(header []string) Schema {
	s := make(Schema, len(header))
	for i, h := range header {
		s[NormalizeHeader(h)] = i
	}
	return s
}

// DetectSchema reads a header row. It reports false when the row does not
// look like a header (no recognised column for required keys).
func DetectSchema(header []string, required ...string) (Schema, bool) {
	s := SchemaFor(header)
	for _, r := range required {
		if _, ok := s[r]; !ok {
			return nil, false
		}
	}
	return s, true
}

func (s Schema) Has(col string) bool {
	_, ok := s[col]
	return ok
}

func (s Schema) get(row []string, col string) string {
	i, ok := s[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "si", "sí", "yes", "x", "verdadero":
		return true
	}
	return false
}

// rowID derives a stable ID for rows stored without one, so the same file
// yields the same IDs on every load.
func rowID(i int, row []string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%d|%s", i, strings.Join(row, "|")))).String()
}

// EncodeTransaction renders tx in TransactionHeader order. Amounts keep
// full precision so a joint half of an odd cent survives a round trip.
func EncodeTransaction(tx core.Transaction) []string {
	return []string{
		tx.ID,
		tx.Date.String(),
		tx.Type.Label(),
		tx.Category,
		tx.Concept,
		tx.Amount.String(),
		tx.Frequency.Label(),
		tx.MonthlyImpact.Round(2).String(),
		formatBool(tx.IsJoint),
	}
}

// DecodeTransactions parses data rows with the given schema. The monthly
// impact column is ignored and recomputed from amount and frequency.
// firstRow is the 1-based row number of rows[0], used in errors.
func DecodeTransactions(rows [][]string, schema Schema, firstRow int) ([]core.Transaction, []error) {
	var (
		out  []core.Transaction
		errs []error
	)
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		n := firstRow + i

		rawDate := schema.get(row, ColDate)
		date, err := core.ParseDate(rawDate)
		if err != nil {
			errs = append(errs, &core.ParseError{Row: n, Column: ColDate, Value: rawDate, Err: err})
			continue
		}
		rawAmount := schema.get(row, ColAmount)
		amount, err := core.ParseAmount(rawAmount)
		if err == nil && amount.IsNegative() {
			err = core.ErrInvalidAmount
		}
		if err != nil {
			errs = append(errs, &core.ParseError{Row: n, Column: ColAmount, Value: rawAmount, Err: err})
			continue
		}

		typ, _ := core.ParseTxType(schema.get(row, ColType))
		freq, _ := core.ParseFrequency(schema.get(row, ColFrequency))
		id := schema.get(row, ColID)
		if id == "" {
			id = rowID(n, row)
		}

		out = append(out, ledger.Renormalize(core.Transaction{
			ID:        id,
			Date:      date,
			Type:      typ,
			Category:  schema.get(row, ColCategory),
			Concept:   schema.get(row, ColConcept),
			Amount:    amount,
			Frequency: freq,
			IsJoint:   parseBool(schema.get(row, ColJoint)),
		}))
	}
	return out, errs
}

func EncodeTemplate(t core.RecurringTemplate) []string {
	return []string{
		t.ID,
		t.Type.Label(),
		t.Category,
		t.Concept,
		t.Amount.String(),
		t.Frequency.Label(),
		formatBool(t.IsJoint),
	}
}

// DecodeTemplates requires a positive amount; a template with nothing to
// post is useless.
func DecodeTemplates(rows [][]string, schema Schema, firstRow int) ([]core.RecurringTemplate, []error) {
	var (
		out  []core.RecurringTemplate
		errs []error
	)
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		n := firstRow + i
		rawAmount := schema.get(row, ColAmount)
		amount, err := core.ParsePositiveAmount(rawAmount)
		if err != nil {
			errs = append(errs, &core.ParseError{Row: n, Column: ColAmount, Value: rawAmount, Err: err})
			continue
		}
		typ, _ := core.ParseTxType(schema.get(row, ColType))
		freq, _ := core.ParseFrequency(schema.get(row, ColFrequency))
		id := schema.get(row, ColID)
		if id == "" {
			id = rowID(n, row)
		}
		out = append(out, core.RecurringTemplate{
			ID:        id,
			Type:      typ,
			Category:  schema.get(row, ColCategory),
			Concept:   schema.get(row, ColConcept),
			Amount:    amount,
			Frequency: freq,
			IsJoint:   parseBool(schema.get(row, ColJoint)),
		})
	}
	return out, errs
}

func EncodeBudget(b core.Budget) []string {
	return []string{b.Category, b.MonthlyLimit.String()}
}

func DecodeBudgets(rows [][]string, schema Schema, firstRow int) ([]core.Budget, []error) {
	var (
		out  []core.Budget
		errs []error
	)
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		n := firstRow + i
		cat := schema.get(row, ColCategory)
		raw := schema.get(row, ColLimit)
		limit, err := core.ParseAmount(raw)
		if err == nil && limit.IsNegative() {
			err = core.ErrInvalidAmount
		}
		if err != nil {
			errs = append(errs, &core.ParseError{Row: n, Column: ColLimit, Value: raw, Err: err})
			continue
		}
		if cat == "" {
			errs = append(errs, &core.ParseError{Row: n, Column: ColCategory, Err: core.ErrEmptyCategory})
			continue
		}
		out = append(out, core.Budget{Category: cat, MonthlyLimit: limit})
	}
	return out, errs
}

// DecodeCategories reads the first column of every row, deduplicated.
func DecodeCategories(rows [][]string) []string {
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			names = append(names, row[0])
		}
	}
	return core.NormalizeCategories(names)
}

// LogDropped reports rows that were skipped during a load.
func LogDropped(ctx context.Context, logger *slog.Logger, resource string, errs []error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, err := range errs {
		logger.WarnContext(ctx, "Dropping unparseable row", "resource", resource, "error", err)
	}
}

// ToCells converts string rows into the []interface{} shape used by
// spreadsheet APIs.
func ToCells(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		out[i] = cells
	}
	return out
}

// FromCells converts spreadsheet cells back to strings.
func FromCells(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = strings.TrimSpace(fmt.Sprint(c))
		}
		out[i] = cells
	}
	return out
}
