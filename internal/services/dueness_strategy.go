// Package services orchestrates the ledger engine over a store: loading
// collections, applying mutations, posting recurring templates and
// publishing change notifications.
//
// This file holds the dueness strategies used by the recurring worker.
// Each template frequency has a checker that decides, from the last run
// and the configured anchor date, whether its templates should post now.
package services

import (
	"fmt"
	"time"

	"finanzas/internal/core"
)

// DuenessChecker is the strategy interface for recurring posting.
type DuenessChecker interface {
	// IsDue reports whether a batch anchored at anchor should post at now
	// given the last time it ran.
	IsDue(lastRun, now time.Time, anchor core.Date) bool
}

// MonthlyChecker posts once per calendar month, on or after the anchor day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastRun, now time.Time, anchor core.Date) bool {
	if !lastRun.IsZero() && lastRun.Year() == now.Year() && lastRun.Month() == now.Month() {
		return false
	}
	return now.Day() >= clampDay(now.Year(), now.Month(), anchor.Day())
}

// YearlyChecker posts once per calendar year, on or after the anchor
// month and day.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(lastRun, now time.Time, anchor core.Date) bool {
	if !lastRun.IsZero() && lastRun.Year() == now.Year() {
		return false
	}
	switch {
	case now.Month() < anchor.Month():
		return false
	case now.Month() == anchor.Month():
		return now.Day() >= clampDay(now.Year(), now.Month(), anchor.Day())
	default:
		return true
	}
}

// clampDay maps day 31 to the last day of shorter months.
func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

// One-time templates are never posted by the worker, only by an explicit
// materialize call.
var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Monthly: MonthlyChecker{},
	core.Annual:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a template frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("no recurring schedule for frequency %q", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker installs or replaces the checker for a frequency.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}
