package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/ledger"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// Settings is the engine configuration kept in a TOML file next to the
// data. Environment variables pick where things live; settings tune how
// the numbers are presented and classified.
type Settings struct {
	Engine    EngineSettings    `toml:"engine"`
	Recurring RecurringSettings `toml:"recurring"`
}

type EngineSettings struct {
	MonthNames            []string `toml:"month_names,omitempty"`
	SharpReductionRatio   float64  `toml:"sharp_reduction_ratio"`
	ClearSimulationOnSave bool     `toml:"clear_simulation_on_save"`
	DefaultCategories     []string `toml:"default_categories,omitempty"`
}

// RecurringSettings picks when templates are posted: monthly templates on
// DayOfMonth, annual ones on DayOfMonth of AnnualMonth.
type RecurringSettings struct {
	DayOfMonth  int `toml:"day_of_month"`
	AnnualMonth int `toml:"annual_month"`
}

func DefaultSettings() Settings {
	return Settings{
		Engine: EngineSettings{
			DefaultCategories: append([]string(nil), core.DefaultCategories...),
		},
		Recurring: RecurringSettings{
			DayOfMonth:  1,
			AnnualMonth: 1,
		},
	}
}

// LoadSettings reads path, returning defaults if it doesn't exist.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("reading settings: %w", err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// SaveSettings writes s to path, creating its directory.
func SaveSettings(path string, s Settings) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating settings dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating settings file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(s)
}

func (s Settings) Validate() error {
	var errors []string
	if n := len(s.Engine.MonthNames); n != 0 && n != 12 {
		errors = append(errors, fmt.Sprintf("month_names must list 12 months, got %d", n))
	}
	if r := s.Engine.SharpReductionRatio; r < 0 || r >= 1 {
		errors = append(errors, fmt.Sprintf("sharp_reduction_ratio %v must be in [0, 1)", r))
	}
	if d := s.Recurring.DayOfMonth; d < 1 || d > 28 {
		errors = append(errors, fmt.Sprintf("day_of_month %d must be between 1 and 28", d))
	}
	if m := s.Recurring.AnnualMonth; m < 1 || m > 12 {
		errors = append(errors, fmt.Sprintf("annual_month %d must be between 1 and 12", m))
	}
	if len(errors) > 0 {
		return fmt.Errorf("settings validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Months returns the label table, falling back to Spanish.
func (s Settings) Months() ledger.MonthNames {
	if len(s.Engine.MonthNames) != 12 {
		return ledger.SpanishMonths
	}
	var names ledger.MonthNames
	copy(names[:], s.Engine.MonthNames)
	return names
}

func (s Settings) Policy() ledger.ClassificationPolicy {
	return ledger.ClassificationPolicy{SharpReductionRatio: decimal.NewFromFloat(s.Engine.SharpReductionRatio)}
}

// Categories returns the seed list used when the store has none.
func (s Settings) Categories() []string {
	if len(s.Engine.DefaultCategories) == 0 {
		return core.NormalizeCategories(core.DefaultCategories)
	}
	return core.NormalizeCategories(s.Engine.DefaultCategories)
}
