package cli

import (
	"context"
	"fmt"
	"os"

	"finanzas/internal/config"
	"finanzas/internal/core"
	applog "finanzas/internal/log"

	"github.com/spf13/cobra"
)

// app carries the persistent flags and what PersistentPreRunE loaded.
type app struct {
	month        string
	backend      string
	dataDir      string
	settingsFile string

	cfg      *config.Config
	settings config.Settings
	logger   *applog.Logger
}

// NewRootCommand builds the finanzas command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "finanzas",
		Short:         "Personal finance ledger",
		Long:          "Record income and expenses, project savings and check budgets.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSummary(cmd, summaryFlags{})
		},
	}

	root.PersistentFlags().StringVarP(&a.month, "month", "m", "", "Reference month as yyyy-mm (default: current month)")
	root.PersistentFlags().StringVarP(&a.backend, "backend", "b", "", "Data backend: memory, csv, sqlite or sheets (default: $DATA_BACKEND)")
	root.PersistentFlags().StringVarP(&a.dataDir, "data-dir", "d", "", "Data directory (default: $DATA_DIR)")
	root.PersistentFlags().StringVar(&a.settingsFile, "settings", "", "TOML settings file (default: $SETTINGS_FILE)")

	root.AddCommand(
		a.newServeCommand(),
		a.newSummaryCommand(),
		a.newImportCommand(),
		a.newMaterializeCommand(),
		a.newSimulateCommand(),
		a.newBudgetsCommand(),
		a.newCategoriesCommand(),
		a.newChartCommand(),
	)
	return root
}

// Execute is the entry point called from cmd/finanzas.
func Execute() {
	LoadEnvFile()
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, badStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	a.logger = SetupLogger(applog.ComponentCLI, cmd.ErrOrStderr())

	cfg, settings, err := LoadConfig(a.settingsFile)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.DataBackend = a.backend
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	a.cfg, a.settings = cfg, settings
	return nil
}

func (a *app) open(ctx context.Context) (*Runtime, error) {
	return Open(ctx, a.cfg, a.settings, a.logger)
}

// ref is the month picked with --month, or the current one.
func (a *app) ref() (core.MonthKey, error) {
	if a.month == "" {
		return core.Today().MonthKey(), nil
	}
	return core.ParseMonthKey(a.month)
}
