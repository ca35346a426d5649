package cli

import (
	"fmt"
	"os"
	"strconv"

	"finanzas/internal/charts"
	"finanzas/internal/ledger"

	"github.com/spf13/cobra"
)

func (a *app) newChartCommand() *cobra.Command {
	var (
		outPath string
		metric  string
	)
	cmd := &cobra.Command{
		Use:       "chart evolution|trend|categories",
		Short:     "Render a PNG chart",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"evolution", "trend", "categories"},
		RunE: func(cmd *cobra.Command, args []string) error {
			m := ledger.Metric(metric)
			if !m.Valid() {
				return fmt.Errorf("metric must be cash or impact, got %q", metric)
			}
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			txs := rt.Ledger.Transactions(cmd.Context())
			names := rt.Ledger.MonthNames()

			var img []byte
			switch args[0] {
			case "evolution":
				img, err = charts.Evolution(ledger.MonthlySeries(txs, names))
			case "trend":
				img, err = charts.Trend(ledger.MonthlySeries(txs, names))
			case "categories":
				title := "Gasto por categoría"
				if m == ledger.MetricImpact {
					title = "Impacto mensual por categoría"
				}
				if a.month != "" {
					ref, err := a.ref()
					if err != nil {
						return err
					}
					txs = ledger.InMonth(txs, ref)
					title += " " + names.Name(ref.Month) + " " + strconv.Itoa(ref.Year)
				}
				img, err = charts.Categories(ledger.CategoryTotals(txs, m), title)
			}
			if err != nil {
				return err
			}

			path := outPath
			if path == "" {
				path = args[0] + ".png"
			}
			if err := os.WriteFile(path, img, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: <kind>.png)")
	cmd.Flags().StringVar(&metric, "metric", string(ledger.MetricCash), "Category chart metric: cash or impact")
	return cmd
}
