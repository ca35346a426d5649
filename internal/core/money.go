// Package core provides the ledger domain types and money parsing.
//
// This file contains the locale-aware amount parser used by stores and
// the bulk importer, plus display formatting.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var currencyMarks = []string{"EUR", "USD", "GBP", "€", "$", "£"}

// Locale selects how a lone separator in an amount is read.
type Locale string

const (
	// LocaleAuto reads a lone comma or point as the decimal separator.
	LocaleAuto Locale = ""
	// LocaleES reads a lone point followed by exactly three digits as
	// thousands grouping, the way Spanish bank exports write 1.234.
	LocaleES Locale = "es"
)

// ParseLocale accepts "", "auto" and "es".
func ParseLocale(s string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return LocaleAuto, nil
	case "es":
		return LocaleES, nil
	}
	return LocaleAuto, fmt.Errorf("unsupported amount locale %q (want auto or es)", s)
}

// ParseAmount converts a human written amount into a signed decimal.
//
// Both comma and point are accepted as decimal separator. When both
// appear, the last one is the decimal separator and the other groups
// thousands. A separator that repeats is a thousands separator. A single
// separator is decimal; use ParseAmountIn with LocaleES to read "1.234"
// as grouping. Currency symbols, spaces and a leading or trailing sign are
// accepted; parentheses mean negative.
//
// Examples:
//
//	ParseAmount("1.234,56 €") -> 1234.56
//	ParseAmount("-12,5")      -> -12.5
//	ParseAmount("$1,234.56")  -> 1234.56
//	ParseAmount("1.234.567")  -> 1234567
//	ParseAmount("1.234")      -> 1.234
//	ParseAmountIn("1.234", LocaleES) -> 1234
//	ParseAmountIn("1.5", LocaleES)   -> 1.5
func ParseAmount(s string) (decimal.Decimal, error) {
	return ParseAmountIn(s, LocaleAuto)
}

// ParseAmountIn is ParseAmount with an explicit locale.
func ParseAmountIn(s string, loc Locale) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	for _, m := range currencyMarks {
		s = strings.ReplaceAll(s, m, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	neg := false
	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		neg, s = true, s[1:len(s)-1]
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		neg, s = true, s[:len(s)-1]
	}
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	normalized, ok := normalizeSeparators(s, loc)
	if !ok {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParsePositiveAmount rejects zero and negative values.
func ParsePositiveAmount(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func normalizeSeparators(s string, loc Locale) (string, bool) {
	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	var decSep, groupSep string
	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			decSep, groupSep = ",", "."
		} else {
			decSep, groupSep = ".", ","
		}
		if strings.Count(s, decSep) > 1 {
			return "", false
		}
	case commas > 1:
		groupSep = ","
	case dots > 1:
		groupSep = "."
	case commas == 1:
		decSep = ","
	case dots == 1 && loc == LocaleES && len(s)-strings.Index(s, ".")-1 == 3 && !strings.HasPrefix(s, "."):
		groupSep = "."
	case dots == 1:
		decSep = "."
	}

	if groupSep != "" {
		s = strings.ReplaceAll(s, groupSep, "")
	}
	if decSep == "," {
		s = strings.Replace(s, ",", ".", 1)
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s = strings.TrimSuffix(s, ".")
	}
	return s, s != ""
}

// FormatEuro renders an amount as "1.234,56 €".
func FormatEuro(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "," + frac + " €"
}
