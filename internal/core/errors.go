package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid type")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrEmptyConcept     = errors.New("empty concept")
	ErrEmptyCategory    = errors.New("empty category")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrNotFound         = errors.New("not found")
)

// ValidationError rejects input before any normalization happens.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ParseError describes a stored or imported row that could not be read.
// Rows that fail are dropped, never half-loaded.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d column %s value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigurationError reports a budget or template that points at a
// category missing from the active set.
type ConfigurationError struct {
	Kind     string
	Category string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s references unknown category %q", e.Kind, e.Category)
}

func (e *ConfigurationError) Unwrap() error { return ErrUnknownCategory }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
