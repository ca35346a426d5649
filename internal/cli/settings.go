package cli

import (
	"fmt"

	"finanzas/internal/core"

	"github.com/spf13/cobra"
)

func (a *app) newBudgetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Budget consumption for the month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := a.ref()
			if err != nil {
				return err
			}
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			report := rt.Ledger.Report(cmd.Context(), ref)
			out := cmd.OutOrStdout()
			fmt.Fprint(out, RenderBudgets(report.Budgets))
			fmt.Fprint(out, RenderWarnings(report.Warnings))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set CATEGORY AMOUNT",
		Short: "Set a category's monthly limit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := core.ParseAmount(args[1])
			if err != nil {
				return &core.ValidationError{Field: "monthly_limit", Err: err}
			}
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			b, err := rt.Ledger.SetBudget(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s/mes\n", b.Category, core.FormatEuro(b.MonthlyLimit))
			return nil
		},
	}, &cobra.Command{
		Use:     "rm CATEGORY",
		Aliases: []string{"remove"},
		Short:   "Remove a category's budget",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.Ledger.RemoveBudget(cmd.Context(), args[0])
		},
	})
	return cmd
}

func (a *app) newCategoriesCommand() *cobra.Command {
	list := func(cmd *cobra.Command, cats []string) {
		fmt.Fprint(cmd.OutOrStdout(), RenderCategories(cats))
	}

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the active categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			list(cmd, rt.Ledger.Categories(cmd.Context()))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			cats, err := rt.Ledger.AddCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			list(cmd, cats)
			return nil
		},
	}, &cobra.Command{
		Use:     "rm NAME",
		Aliases: []string{"remove"},
		Short:   "Remove a category; existing entries keep it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			cats, err := rt.Ledger.RemoveCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			list(cmd, cats)
			return nil
		},
	})
	return cmd
}
