// Package importer reads bank or spreadsheet CSV exports into the ledger.
//
// Headers are matched the same way stores match them, so Spanish and
// English column names both work. Amounts go through core.ParseAmountIn and
// accept either decimal separator, thousands grouping and a currency mark.
package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/store"
)

var ErrNoHeader = errors.New("import file has no recognisable header (need at least fecha and importe)")

// Ledger is the part of the ledger service the importer writes through.
type Ledger interface {
	Categories(ctx context.Context) []string
	EnsureCategories(ctx context.Context, names []string) ([]string, error)
	AppendTransactions(ctx context.Context, batch []core.Transaction) error
}

type Options struct {
	// Comma forces the field separator. Zero sniffs ';' or ',' from the
	// header line.
	Comma rune
	// AllowNewCategories adds unknown categories to the active set instead
	// of rejecting their rows.
	AllowNewCategories bool
	// DryRun parses and validates without saving.
	DryRun bool
	// Locale decides how a lone point in an amount is read.
	Locale core.Locale
}

// Report summarises one import.
type Report struct {
	Rows          int                `json:"rows"`
	Imported      int                `json:"imported"`
	Rejected      []error            `json:"-"`
	NewCategories []string           `json:"new_categories,omitempty"`
	SignInferred  bool               `json:"sign_inferred"`
	Transactions  []core.Transaction `json:"transactions,omitempty"`
}

// Messages renders Rejected for JSON and terminal output.
func (r Report) Messages() []string {
	out := make([]string, 0, len(r.Rejected))
	for _, err := range r.Rejected {
		out = append(out, err.Error())
	}
	return out
}

type Importer struct {
	ledger Ledger
	opts   Options
	logger *slog.Logger
}

func New(l Ledger, opts Options, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{ledger: l, opts: opts, logger: logger.With("component", "import")}
}

// Import parses r, validates every row and appends the good ones in one
// save. Bad rows are reported, not fatal.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Report, error) {
	inputs, rep, err := parse(r, im.opts.Comma, im.opts.Locale)
	if err != nil {
		return rep, err
	}

	active := im.ledger.Categories(ctx)
	var missing []string
	for _, p := range inputs {
		c := p.in.Category
		if c != "" && !core.HasCategory(active, c) && !core.HasCategory(missing, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 && im.opts.AllowNewCategories {
		rep.NewCategories = missing
		if !im.opts.DryRun {
			if active, err = im.ledger.EnsureCategories(ctx, missing); err != nil {
				return rep, err
			}
		}
	}

	batch := make([]core.Transaction, 0, len(inputs))
	for _, p := range inputs {
		if err := p.in.Validate(); err != nil {
			rep.Rejected = append(rep.Rejected, fmt.Errorf("row %d: %w", p.row, err))
			continue
		}
		if !core.HasCategory(active, p.in.Category) && !(im.opts.DryRun && im.opts.AllowNewCategories) {
			rep.Rejected = append(rep.Rejected, fmt.Errorf("row %d: %w", p.row,
				&core.ValidationError{Field: "category", Err: core.ErrUnknownCategory}))
			continue
		}
		tx, err := ledger.NewTransaction(p.in)
		if err != nil {
			rep.Rejected = append(rep.Rejected, fmt.Errorf("row %d: %w", p.row, err))
			continue
		}
		batch = append(batch, tx)
	}

	rep.Imported = len(batch)
	rep.Transactions = batch
	if !im.opts.DryRun {
		if err := im.ledger.AppendTransactions(ctx, batch); err != nil {
			return rep, fmt.Errorf("save import: %w", err)
		}
	}
	for _, err := range rep.Rejected {
		im.logger.WarnContext(ctx, "Import row rejected", "error", err)
	}
	im.logger.InfoContext(ctx, "Import complete",
		"operation", "import", "rows", rep.Rows, "imported", rep.Imported,
		"rejected", len(rep.Rejected), "dry_run", im.opts.DryRun)
	return rep, nil
}

type parsed struct {
	row int
	in  core.EntryInput
}

// parse reads the CSV into raw inputs. Rows whose date or amount cannot
// be read come back in the report as ParseErrors.
//
// When the file has no type column the sign decides: positive amounts
// are income and negative ones expenses. With a type column the sign is
// ignored.
func parse(r io.Reader, comma rune, loc core.Locale) ([]parsed, Report, error) {
	var rep Report
	br := bufio.NewReader(r)
	if comma == 0 {
		comma = sniffComma(br)
	}
	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, rep, ErrNoHeader
	}
	if err != nil {
		return nil, rep, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	schema, ok := store.DetectSchema(header, store.ColDate, store.ColAmount)
	if !ok {
		return nil, rep, ErrNoHeader
	}
	rep.SignInferred = !schema.Has(store.ColType)

	var out []parsed
	for n := 2; ; n++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rep, fmt.Errorf("read row %d: %w", n, err)
		}
		if blank(rec) {
			continue
		}
		rep.Rows++
		in, err := decodeRow(rec, schema, n, loc)
		if err != nil {
			rep.Rejected = append(rep.Rejected, err)
			continue
		}
		out = append(out, parsed{row: n, in: in})
	}
	return out, rep, nil
}

func decodeRow(rec []string, schema store.Schema, n int, loc core.Locale) (core.EntryInput, error) {
	cell := func(col string) string {
		i, ok := schema[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rawDate := cell(store.ColDate)
	date, err := core.ParseDate(rawDate)
	if err != nil {
		return core.EntryInput{}, &core.ParseError{Row: n, Column: store.ColDate, Value: rawDate, Err: err}
	}
	rawAmount := cell(store.ColAmount)
	amount, err := core.ParseAmountIn(rawAmount, loc)
	if err != nil {
		return core.EntryInput{}, &core.ParseError{Row: n, Column: store.ColAmount, Value: rawAmount, Err: err}
	}

	var typ core.TxType
	if schema.Has(store.ColType) {
		raw := cell(store.ColType)
		t, ok := core.ParseTxType(raw)
		if !ok {
			return core.EntryInput{}, &core.ParseError{Row: n, Column: store.ColType, Value: raw, Err: core.ErrInvalidType}
		}
		typ = t
		amount = amount.Abs()
	} else {
		typ = core.Income
		if amount.IsNegative() {
			typ = core.Expense
			amount = amount.Neg()
		}
	}

	freq := core.OneTime
	if raw := cell(store.ColFrequency); raw != "" {
		f, ok := core.ParseFrequency(raw)
		if !ok {
			return core.EntryInput{}, &core.ParseError{Row: n, Column: store.ColFrequency, Value: raw, Err: core.ErrInvalidFrequency}
		}
		freq = f
	}

	category := cell(store.ColCategory)
	concept := cell(store.ColConcept)
	if concept == "" {
		concept = category
	}
	return core.EntryInput{
		Date:      date,
		Type:      typ,
		Category:  category,
		Concept:   concept,
		Amount:    amount,
		Frequency: freq,
		IsJoint:   isTrue(cell(store.ColJoint)),
	}, nil
}

func sniffComma(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	first := string(line)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isTrue(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "si", "sí", "yes", "x", "verdadero":
		return true
	}
	return false
}
