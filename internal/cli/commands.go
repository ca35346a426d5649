package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/importer"
	"finanzas/internal/ledger"
	applog "finanzas/internal/log"

	"github.com/spf13/cobra"
)

type summaryFlags struct {
	text    bool
	asJSON  bool
	entries bool
}

func (a *app) newSummaryCommand() *cobra.Command {
	var f summaryFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Monthly figures, top categories and budgets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSummary(cmd, f)
		},
	}
	cmd.Flags().BoolVar(&f.text, "text", false, "Plain-text digest for the assistant")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&f.entries, "entries", false, "Also list the month's entries")
	return cmd
}

func (a *app) runSummary(cmd *cobra.Command, f summaryFlags) error {
	ref, err := a.ref()
	if err != nil {
		return err
	}
	rt, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if f.text {
		_, err := io.WriteString(out, rt.Ledger.Summary(cmd.Context(), ref, nil))
		return err
	}
	report := rt.Ledger.Report(cmd.Context(), ref)
	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprint(out, RenderReport(report, rt.Ledger.MonthNames()))
	if f.entries {
		txs := ledger.InMonth(rt.Ledger.Transactions(cmd.Context()), ref)
		fmt.Fprintln(out)
		fmt.Fprint(out, RenderTransactions("Movimientos", txs))
	}
	return nil
}

func (a *app) newImportCommand() *cobra.Command {
	var (
		opts      importer.Options
		delimiter string
		locale    string
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import entries from a bank or spreadsheet CSV export (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch delimiter {
			case "":
			case ",", ";", "\t":
				opts.Comma = rune(delimiter[0])
			case "tab":
				opts.Comma = '\t'
			default:
				return fmt.Errorf("unsupported delimiter %q", delimiter)
			}
			loc, err := core.ParseLocale(locale)
			if err != nil {
				return err
			}
			opts.Locale = loc

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			im := importer.New(rt.Ledger, opts, a.logger.WithComponent(applog.ComponentImport).Slog())
			rep, err := im.Import(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderImport(rep, opts.DryRun))
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.AllowNewCategories, "create-categories", false, "Add unknown categories instead of rejecting their rows")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Validate without saving")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "Field separator: , ; or tab (default: detect)")
	cmd.Flags().StringVar(&locale, "locale", "auto", "Amount locale: auto, or es to read 1.234 as one thousand")
	return cmd
}

func (a *app) newMaterializeCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Post every recurring template as an entry",
		Long: "Post every recurring template as an entry dated --date. Nothing stops\n" +
			"the same templates from being posted twice for one month.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := core.Today()
			if date != "" {
				var err error
				if d, err = core.ParseDate(date); err != nil {
					return err
				}
			}

			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			posted, warnings, err := rt.Ledger.Materialize(cmd.Context(), d)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(posted) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("  No hay plantillas que registrar."))
				return nil
			}
			fmt.Fprint(out, RenderTransactions(fmt.Sprintf("Registrados %d movimientos", len(posted)), posted))
			msgs := make([]string, 0, len(warnings))
			for _, w := range warnings {
				msgs = append(msgs, w.Error())
			}
			fmt.Fprint(out, RenderWarnings(msgs))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Posting date as dd/mm/yyyy (default: today)")
	return cmd
}

func (a *app) newSimulateCommand() *cobra.Command {
	var (
		items []string
		text  bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Project savings with hypothetical entries, nothing is saved",
		Example: `  finanzas simulate --item "gasto;Transporte;Coche nuevo;300;mensual"
  finanzas simulate --item "ingreso;Nómina;Subida;150;mensual" --item "gasto;Ocio;Viaje;1200;anual;si"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(items) == 0 {
				return fmt.Errorf("at least one --item is required")
			}
			ref, err := a.ref()
			if err != nil {
				return err
			}
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			sim := rt.Ledger.NewSimulator()
			for i, raw := range items {
				in, err := parseItem(raw)
				if err != nil {
					return fmt.Errorf("item %d: %w", i+1, err)
				}
				if _, err := sim.Add(in); err != nil {
					return fmt.Errorf("item %d: %w", i+1, err)
				}
			}

			out := cmd.OutOrStdout()
			if text {
				_, err := io.WriteString(out, rt.Ledger.Summary(cmd.Context(), ref, sim))
				return err
			}
			report := rt.Ledger.ReportWithProjection(cmd.Context(), ref, sim)
			fmt.Fprint(out, RenderTable(Table{Headers: []string{"Métrica", "Valor"}, Rows: metricsRows(report.Aggregates)}))
			fmt.Fprintln(out)
			fmt.Fprint(out, RenderProjection(*report.Projection))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", nil, "Hypothetical entry as tipo;categoría;concepto;importe[;frecuencia[;conjunto]]")
	cmd.Flags().BoolVar(&text, "text", false, "Plain-text digest for the assistant")
	return cmd
}

// parseItem reads "tipo;categoría;concepto;importe[;frecuencia[;conjunto]]".
// Frequency defaults to one-time; the entry is dated today.
func parseItem(raw string) (core.EntryInput, error) {
	parts := strings.Split(raw, ";")
	if len(parts) < 4 || len(parts) > 6 {
		return core.EntryInput{}, fmt.Errorf("want tipo;categoría;concepto;importe[;frecuencia[;conjunto]], got %q", raw)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	typ, ok := core.ParseTxType(parts[0])
	if !ok {
		return core.EntryInput{}, &core.ValidationError{Field: "type", Err: fmt.Errorf("%w: %q", core.ErrInvalidType, parts[0])}
	}
	amount, err := core.ParseAmount(parts[3])
	if err != nil {
		return core.EntryInput{}, &core.ValidationError{Field: "amount", Err: err}
	}
	in := core.EntryInput{
		Date:      core.Today(),
		Type:      typ,
		Category:  parts[1],
		Concept:   parts[2],
		Amount:    amount,
		Frequency: core.OneTime,
	}
	if len(parts) > 4 && parts[4] != "" {
		freq, ok := core.ParseFrequency(parts[4])
		if !ok {
			return core.EntryInput{}, &core.ValidationError{Field: "frequency", Err: fmt.Errorf("%w: %q", core.ErrInvalidFrequency, parts[4])}
		}
		in.Frequency = freq
	}
	if len(parts) > 5 {
		in.IsJoint = isYes(parts[5])
	}
	return in, nil
}

func isYes(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "si", "sí", "x", "conjunto":
		return true
	}
	return false
}
