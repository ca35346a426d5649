package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	Monthly Frequency = "monthly"
	Annual  Frequency = "annual"
	OneTime Frequency = "one_time"
)

type (
	TxType    string
	Frequency string

	// Transaction is a persisted ledger entry. Amount is the stored amount:
	// for joint expenses it is already the user's half. MonthlyImpact is
	// derived from Amount and Frequency and is never edited on its own.
	Transaction struct {
		ID            string          `json:"id"`
		Date          Date            `json:"date"`
		Type          TxType          `json:"type"`
		Category      string          `json:"category"`
		Concept       string          `json:"concept"`
		Amount        decimal.Decimal `json:"amount"`
		Frequency     Frequency       `json:"frequency"`
		MonthlyImpact decimal.Decimal `json:"monthly_impact"`
		IsJoint       bool            `json:"is_joint"`
	}

	// EntryInput is raw user input before normalization. Amount is the
	// total paid, before any joint split.
	EntryInput struct {
		Date      Date            `json:"date"`
		Type      TxType          `json:"type"`
		Category  string          `json:"category"`
		Concept   string          `json:"concept"`
		Amount    decimal.Decimal `json:"amount"`
		Frequency Frequency       `json:"frequency"`
		IsJoint   bool            `json:"is_joint"`
	}

	// RecurringTemplate is a reusable entry with no date. Amount is the
	// entered total.
	RecurringTemplate struct {
		ID        string          `json:"id"`
		Type      TxType          `json:"type"`
		Category  string          `json:"category"`
		Concept   string          `json:"concept"`
		Amount    decimal.Decimal `json:"amount"`
		Frequency Frequency       `json:"frequency"`
		IsJoint   bool            `json:"is_joint"`
	}

	Budget struct {
		Category     string          `json:"category"`
		MonthlyLimit decimal.Decimal `json:"monthly_limit"`
	}

	// SimulationItem has the shape of a Transaction but only ever lives in
	// a session. Keeping it a separate type stops it from reaching a store.
	SimulationItem struct {
		Date          Date            `json:"date"`
		Type          TxType          `json:"type"`
		Category      string          `json:"category"`
		Concept       string          `json:"concept"`
		Amount        decimal.Decimal `json:"amount"`
		Frequency     Frequency       `json:"frequency"`
		MonthlyImpact decimal.Decimal `json:"monthly_impact"`
		IsJoint       bool            `json:"is_joint"`
	}
)

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// Label returns the Spanish label used in sheets and CSV files.
func (t TxType) Label() string {
	if t == Income {
		return "Ingreso"
	}
	return "Gasto"
}

// ParseTxType accepts the canonical names and the Spanish labels.
// Anything unrecognised falls back to Expense.
func ParseTxType(s string) (TxType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "ingreso", "ingresos":
		return Income, true
	case "expense", "gasto", "gastos":
		return Expense, true
	}
	return Expense, false
}

func (f Frequency) Valid() bool {
	return f == Monthly || f == Annual || f == OneTime
}

func (f Frequency) Label() string {
	switch f {
	case Monthly:
		return "Mensual"
	case Annual:
		return "Anual"
	}
	return "Puntual"
}

// ParseFrequency falls back to OneTime for unknown values.
func ParseFrequency(s string) (Frequency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "mensual":
		return Monthly, true
	case "annual", "yearly", "anual":
		return Annual, true
	case "one_time", "onetime", "once", "puntual":
		return OneTime, true
	}
	return OneTime, false
}

func (in EntryInput) Validate() error {
	if !in.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if !in.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Err: ErrInvalidFrequency}
	}
	if !in.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if strings.TrimSpace(in.Concept) == "" {
		return &ValidationError{Field: "concept", Err: ErrEmptyConcept}
	}
	if strings.TrimSpace(in.Category) == "" {
		return &ValidationError{Field: "category", Err: ErrEmptyCategory}
	}
	if err := in.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	return nil
}

// Input returns the template as an entry dated d.
func (t RecurringTemplate) Input(d Date) EntryInput {
	return EntryInput{
		Date:      d,
		Type:      t.Type,
		Category:  t.Category,
		Concept:   t.Concept,
		Amount:    t.Amount,
		Frequency: t.Frequency,
		IsJoint:   t.IsJoint,
	}
}

func (t RecurringTemplate) Validate() error {
	return t.Input(Today()).Validate()
}

// Total returns the pre-split amount the user originally entered.
func (tx Transaction) Total() decimal.Decimal {
	if tx.IsJoint && tx.Type == Expense {
		return tx.Amount.Mul(decimal.NewFromInt(2))
	}
	return tx.Amount
}

// Input reconstructs the raw input that would normalize back to tx.
func (tx Transaction) Input() EntryInput {
	return EntryInput{
		Date:      tx.Date,
		Type:      tx.Type,
		Category:  tx.Category,
		Concept:   tx.Concept,
		Amount:    tx.Total(),
		Frequency: tx.Frequency,
		IsJoint:   tx.IsJoint,
	}
}

// NormalizeCategories trims, drops blanks and removes duplicates while
// preserving the first-seen order.
func NormalizeCategories(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func HasCategory(cats []string, name string) bool {
	for _, c := range cats {
		if c == name {
			return true
		}
	}
	return false
}

// DefaultCategories seeds a fresh ledger.
var DefaultCategories = []string{
	"Vivienda", "Alimentación", "Transporte", "Ocio", "Salud", "Suscripciones", "Nómina", "Otros",
}

// Today is replaceable in tests.
var Today = func() Date {
	n := time.Now()
	return NewDate(n.Year(), int(n.Month()), n.Day())
}
