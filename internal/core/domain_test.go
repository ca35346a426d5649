package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validInput() EntryInput {
	return EntryInput{
		Date:      NewDate(2024, 3, 15),
		Type:      Expense,
		Category:  "Vivienda",
		Concept:   "Alquiler",
		Amount:    decimal.NewFromInt(800),
		Frequency: Monthly,
	}
}

func TestEntryInputValidate(t *testing.T) {
	if err := validInput().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*EntryInput)
		want   error
	}{
		{"zero amount", func(in *EntryInput) { in.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(in *EntryInput) { in.Amount = decimal.NewFromInt(-1) }, ErrInvalidAmount},
		{"blank concept", func(in *EntryInput) { in.Concept = "  " }, ErrEmptyConcept},
		{"blank category", func(in *EntryInput) { in.Category = "" }, ErrEmptyCategory},
		{"zero date", func(in *EntryInput) { in.Date = Date{} }, ErrInvalidDate},
		{"bad type", func(in *EntryInput) { in.Type = "transfer" }, ErrInvalidType},
		{"bad frequency", func(in *EntryInput) { in.Frequency = "weekly" }, ErrInvalidFrequency},
	}
	for _, tc := range cases {
		in := validInput()
		tc.mutate(&in)
		err := in.Validate()
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if !IsValidation(err) {
			t.Fatalf("%s: expected ValidationError, got %T", tc.name, err)
		}
	}
}

func TestParseTxTypeAndFrequency(t *testing.T) {
	if ty, ok := ParseTxType("Ingreso"); !ok || ty != Income {
		t.Fatalf("Ingreso -> %v %v", ty, ok)
	}
	if ty, ok := ParseTxType("whatever"); ok || ty != Expense {
		t.Fatalf("unknown type should fall back to expense, got %v %v", ty, ok)
	}
	if f, ok := ParseFrequency("Anual"); !ok || f != Annual {
		t.Fatalf("Anual -> %v %v", f, ok)
	}
	if f, ok := ParseFrequency(""); ok || f != OneTime {
		t.Fatalf("blank frequency should fall back to one-time, got %v %v", f, ok)
	}
	if Monthly.Label() != "Mensual" || Income.Label() != "Ingreso" || OneTime.Label() != "Puntual" {
		t.Fatalf("unexpected labels")
	}
}

func TestTransactionTotal(t *testing.T) {
	tx := Transaction{Type: Expense, IsJoint: true, Amount: decimal.NewFromInt(50)}
	if !tx.Total().Equal(decimal.NewFromInt(100)) {
		t.Fatalf("joint expense total should double stored amount, got %s", tx.Total())
	}
	tx.Type = Income
	if !tx.Total().Equal(decimal.NewFromInt(50)) {
		t.Fatalf("joint income is never split, got %s", tx.Total())
	}
}

func TestNormalizeCategories(t *testing.T) {
	got := NormalizeCategories([]string{"Ocio", " Salud ", "", "Ocio", "Casa"})
	want := []string{"Ocio", "Salud", "Casa"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"05/03/2024", NewDate(2024, 3, 5), true},
		{"5/3/2024", NewDate(2024, 3, 5), true},
		{"05-03-2024", NewDate(2024, 3, 5), true},
		{"05.03.2024", NewDate(2024, 3, 5), true},
		{"2024-03-05", NewDate(2024, 3, 5), true},
		{"05/03/2024 00:00:00", NewDate(2024, 3, 5), true},
		{"31/02/2024", Date{}, false},
		{"", Date{}, false},
		{"March 5", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok && (err != nil || !got.Equal(tc.want.Time)) {
			t.Fatalf("%q: expected %v, got %v (%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
	}
	if s := NewDate(2024, 1, 2).String(); s != "02/01/2024" {
		t.Fatalf("unexpected store format %q", s)
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 12, 1))
	if err != nil || string(b) != `"2024-12-01"` {
		t.Fatalf("marshal: %s %v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"01/12/2024"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.MonthKey() != (MonthKey{Year: 2024, Month: time.December}) {
		t.Fatalf("unexpected month key %v", d.MonthKey())
	}
}

func TestMonthKey(t *testing.T) {
	a := MonthKey{Year: 2023, Month: time.December}
	b := MonthKey{Year: 2024, Month: time.January}
	if !a.Before(b) || b.Before(a) {
		t.Fatalf("ordering broken")
	}
	k, err := ParseMonthKey("2024-07")
	if err != nil || k.String() != "2024-07" {
		t.Fatalf("parse month key: %v %v", k, err)
	}
	if _, err := ParseMonthKey("07/2024"); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}
