package cli

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/reagent"
)

// NewReagentCommand creates the reagent price table command group.
func NewReagentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reagent",
		Short: "Manage reagent prices used for cost estimates",
		Long: `Manage reagent prices used for cost estimates.

Prices are per uL or per mL. Calculators that consume a reagent (serial
dilution diluent, DNA normalization TE buffer, culture media) price the
volume they use when the reagent is in the table.

Examples:
  labcalc reagent set "TE Buffer" 0.05 --unit mL
  labcalc reagent cost "TE Buffer" 450
  labcalc reagent seed`,
	}

	cmd.AddCommand(newReagentListCommand(rootOpts))
	cmd.AddCommand(newReagentGetCommand(rootOpts))
	cmd.AddCommand(newReagentSetCommand(rootOpts))
	cmd.AddCommand(newReagentCostCommand(rootOpts))
	cmd.AddCommand(newReagentSeedCommand(rootOpts))

	return cmd
}

// reagentTable opens only the price table; reagent commands never touch
// the history.
func reagentTable(opts *RootOptions) (*reagent.Table, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	return reagent.NewTable(cfg.Reagents.Path), nil
}

func writePrices(w io.Writer, prices []reagent.Price) {
	fmt.Fprintf(w, "%-30s  %12s  %s\n", "Reagent", "Price", "Per")
	for _, p := range prices {
		fmt.Fprintf(w, "%-30s  %12s  %s\n", p.Name, "$"+p.PricePerUnit.String(), p.Unit)
	}
}

func newReagentListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List reagent prices",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			table, err := reagentTable(rootOpts)
			if err != nil {
				return formatter.Fail(err)
			}
			prices, err := table.List()
			if err != nil {
				return formatter.Fail(err)
			}
			if rootOpts.Format == "json" {
				return formatter.Success(prices)
			}
			if len(prices) == 0 {
				fmt.Fprintf(formatter.Writer, "No reagent prices in %s. Add one with 'labcalc reagent set' or run 'labcalc reagent seed'.\n", table.Path())
				return nil
			}
			writePrices(formatter.Writer, prices)
			return nil
		},
	}
}

func newReagentGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <name>",
		Short:         "Show one reagent price",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			table, err := reagentTable(rootOpts)
			if err != nil {
				return formatter.Fail(err)
			}
			p, ok, err := table.Get(args[0])
			if err != nil {
				return formatter.Fail(err)
			}
			if !ok {
				_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no price for %q", args[0]), nil)
				return WrapExitError(ExitFailure, ErrCodeNotFound, fmt.Errorf("no price for %q", args[0]))
			}
			if rootOpts.Format == "json" {
				return formatter.Success(p)
			}
			writePrices(formatter.Writer, []reagent.Price{p})
			return nil
		},
	}
}

func newReagentSetCommand(rootOpts *RootOptions) *cobra.Command {
	var unit string
	cmd := &cobra.Command{
		Use:   "set <name> <price>",
		Short: "Add or update a reagent price",
		Long: `Add or update a reagent price.

Examples:
  labcalc reagent set "Taq Polymerase" 0.5
  labcalc reagent set FBS 0.85 --unit mL`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			price, err := decimal.NewFromString(args[1])
			if err != nil {
				return formatter.Fail(&calc.Error{Kind: calc.KindInvalidInput, Field: "price", Message: "invalid input: please enter a valid number", Err: err})
			}
			u, err := reagent.ParseUnit(unit)
			if err != nil {
				return formatter.Fail(&calc.Error{Kind: calc.KindInvalidUnit, Field: "unit", Message: err.Error(), Err: err})
			}

			table, err := reagentTable(rootOpts)
			if err != nil {
				return formatter.Fail(err)
			}
			p, err := table.Set(args[0], price, u)
			if err != nil {
				return formatter.Fail(err)
			}
			formatter.VerboseLog("Wrote %s", table.Path())
			if rootOpts.Format == "json" {
				return formatter.Success(p)
			}
			fmt.Fprintf(formatter.Writer, "Set %s to $%s per %s\n", p.Name, p.PricePerUnit.String(), p.Unit)
			return nil
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "uL", "volume the price refers to (uL|mL)")
	return cmd
}

// ReagentCost is the JSON payload of the cost command.
type ReagentCost struct {
	Reagent  string          `json:"reagent"`
	VolumeUL float64         `json:"volume_ul"`
	Cost     decimal.Decimal `json:"cost"`
}

func newReagentCostCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cost <name> <volume-uL>",
		Short:         "Price a volume of a reagent",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			volume, err := calc.ParseNumber(args[1])
			if err != nil {
				return formatter.Fail(fmt.Errorf("volume: %w", err))
			}
			table, err := reagentTable(rootOpts)
			if err != nil {
				return formatter.Fail(err)
			}
			cost, ok, err := table.Cost(args[0], volume)
			if err != nil {
				return formatter.Fail(err)
			}
			if !ok {
				_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no price for %q", args[0]), nil)
				return WrapExitError(ExitFailure, ErrCodeNotFound, fmt.Errorf("no price for %q", args[0]))
			}
			if rootOpts.Format == "json" {
				return formatter.Success(ReagentCost{Reagent: args[0], VolumeUL: volume, Cost: cost.Round(4)})
			}
			fmt.Fprintf(formatter.Writer, "%g µL of %s: $%s\n", volume, args[0], cost.StringFixed(2))
			return nil
		},
	}
}

func newReagentSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "seed",
		Short:         "Add starter prices for common reagents",
		Long:          "Add starter prices for common reagents. Existing prices are kept.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			table, err := reagentTable(rootOpts)
			if err != nil {
				return formatter.Fail(err)
			}
			added, err := table.Seed()
			if err != nil {
				return formatter.Fail(err)
			}
			if rootOpts.Format == "json" {
				if added == nil {
					added = []string{}
				}
				return formatter.Success(map[string]interface{}{"added": added})
			}
			if len(added) == 0 {
				fmt.Fprintln(formatter.Writer, "All starter prices already present.")
				return nil
			}
			fmt.Fprintf(formatter.Writer, "Added %d prices:\n", len(added))
			for _, name := range added {
				fmt.Fprintf(formatter.Writer, "  %s\n", name)
			}
			return nil
		},
	}
}
