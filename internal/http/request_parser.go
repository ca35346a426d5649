// Package http serves the ledger as a JSON API.
//
// This file implements decoding and validation of request data: month
// parameters, entry bodies and the amount formats users actually type.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/services"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// ParseMonthParam reads the reference month from the query. It accepts
// month=yyyy-mm, or month=m with an optional year=yyyy, and defaults to
// the current month.
func ParseMonthParam(query url.Values) (core.MonthKey, error) {
	current := core.Today().MonthKey()

	m := strings.TrimSpace(query.Get("month"))
	if m == "" {
		return current, nil
	}
	if strings.Contains(m, "-") {
		return core.ParseMonthKey(m)
	}

	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return core.MonthKey{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, m)
	}
	key := core.MonthKey{Year: current.Year, Month: time.Month(month)}
	if y := strings.TrimSpace(query.Get("year")); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil || year < 1900 || year > 9999 {
			return core.MonthKey{}, fmt.Errorf("%w: year %q", core.ErrInvalidMonth, y)
		}
		key.Year = year
	}
	return key, nil
}

// Amount accepts a JSON number or a string in any format ParseAmount
// understands, such as "1.234,56 €".
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
		}
		d, err := core.ParseAmount(s)
		if err != nil {
			return &core.ValidationError{Field: "amount", Err: err}
		}
		a.Decimal = d
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
	}
	a.Decimal = d
	return nil
}

// entryRequest is the body of every endpoint that takes an entry. Type and
// frequency accept the canonical names and the Spanish labels.
type entryRequest struct {
	Date      core.Date `json:"date"`
	Type      string    `json:"type"`
	Category  string    `json:"category"`
	Concept   string    `json:"concept"`
	Amount    Amount    `json:"amount"`
	Frequency string    `json:"frequency"`
	IsJoint   bool      `json:"is_joint"`
}

// input converts the request, defaulting the date to today and the
// frequency to one-time.
func (e entryRequest) input() (core.EntryInput, error) {
	typ, ok := core.ParseTxType(e.Type)
	if !ok {
		return core.EntryInput{}, &core.ValidationError{Field: "type", Err: core.ErrInvalidType}
	}
	freq := core.OneTime
	if strings.TrimSpace(e.Frequency) != "" {
		if freq, ok = core.ParseFrequency(e.Frequency); !ok {
			return core.EntryInput{}, &core.ValidationError{Field: "frequency", Err: core.ErrInvalidFrequency}
		}
	}
	date := e.Date
	if date.IsZero() {
		date = core.Today()
	}
	return core.EntryInput{
		Date:      date,
		Type:      typ,
		Category:  sanitizeInput(e.Category),
		Concept:   sanitizeInput(e.Concept),
		Amount:    e.Amount.Decimal,
		Frequency: freq,
		IsJoint:   e.IsJoint,
	}, nil
}

func (e entryRequest) template() (core.RecurringTemplate, error) {
	in, err := e.input()
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	return core.RecurringTemplate{
		Type:      in.Type,
		Category:  in.Category,
		Concept:   in.Concept,
		Amount:    in.Amount,
		Frequency: in.Frequency,
		IsJoint:   in.IsJoint,
	}, nil
}

// bulkRowRequest is one line of a bulk replace. An empty id creates a new
// entry.
type bulkRowRequest struct {
	ID string `json:"id"`
	entryRequest
}

func bulkRows(reqs []bulkRowRequest) ([]services.BulkRow, error) {
	rows := make([]services.BulkRow, 0, len(reqs))
	for i, req := range reqs {
		in, err := req.input()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		rows = append(rows, services.BulkRow{ID: strings.TrimSpace(req.ID), Input: in})
	}
	return rows, nil
}

type categoryRequest struct {
	Name string `json:"name"`
}

type budgetRequest struct {
	MonthlyLimit Amount `json:"monthly_limit"`
}

type materializeRequest struct {
	Date core.Date `json:"date"`
}

// decodeJSON reads a bounded JSON body into v. Malformed bodies come back
// as validation errors so they map to 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return err
		}
		if errors.Is(err, core.ErrInvalidDate) {
			return &core.ValidationError{Field: "date", Err: err}
		}
		return &core.ValidationError{Field: "body", Err: err}
	}
	return nil
}

// queryBool reads 1/true/yes/sí flags.
func queryBool(query url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(query.Get(key))) {
	case "1", "true", "yes", "si", "sí":
		return true
	}
	return false
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
