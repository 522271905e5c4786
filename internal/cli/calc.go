package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/labcalc/internal/calculator"
	"github.com/roach88/labcalc/internal/history"
	"github.com/roach88/labcalc/internal/session"
)

// CalculateOptions holds flags for a calculator command.
type CalculateOptions struct {
	*RootOptions
	Save   bool
	Inputs map[string]*string // field name -> flag value
}

// CalculateResult is the JSON payload of a calculator command.
type CalculateResult struct {
	calculator.Outcome
	SavedID string `json:"saved_id,omitempty"`
}

// flagName turns a field name into a flag name: c1_unit -> c1-unit,
// N0 -> n0.
func flagName(field string) string {
	return strings.ReplaceAll(strings.ToLower(field), "_", "-")
}

// NewCalculatorCommand creates the command for one calculator. Its flags
// are generated from the calculator fields.
func NewCalculatorCommand(rootOpts *RootOptions, c *calculator.Calculator) *cobra.Command {
	opts := &CalculateOptions{RootOptions: rootOpts, Inputs: map[string]*string{}}

	var long strings.Builder
	fmt.Fprintf(&long, "%s (%s).\n\nInputs:\n", c.Title, c.Group)
	for _, f := range c.Fields {
		fmt.Fprintf(&long, "  --%-20s %s", flagName(f.Name), f.Label)
		if f.Default != "" {
			fmt.Fprintf(&long, " [default %s]", f.Default)
		}
		long.WriteString("\n")
	}

	cmd := &cobra.Command{
		Use:           c.Name,
		Short:         c.Title,
		Long:          long.String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalculator(opts, c, cmd)
		},
	}

	for _, f := range c.Fields {
		opts.Inputs[f.Name] = cmd.Flags().String(flagName(f.Name), f.Default, f.Label)
	}
	cmd.Flags().BoolVar(&opts.Save, "save", false, "append the result to the lab history")

	return cmd
}

func runCalculator(opts *CalculateOptions, c *calculator.Calculator, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sess, err := opts.openSession(cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	defer sess.Close()

	in := calculator.Inputs{}
	for name, v := range opts.Inputs {
		if *v != "" {
			in[name] = *v
		}
	}

	r, err := sess.Calculate(c.Name, in)
	if err != nil {
		return formatter.Fail(err)
	}

	result := CalculateResult{Outcome: r.Outcome}
	if opts.Save {
		rec, err := sess.Save(cmd.Context(), r)
		if err != nil {
			return formatter.Fail(err)
		}
		result.SavedID = rec.ID
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	writeOutcome(formatter, r, result.SavedID)
	return nil
}

func writeOutcome(formatter *OutputFormatter, r *session.Result, savedID string) {
	fmt.Fprint(formatter.Writer, r.Outcome.Text())
	if savedID == "" {
		return
	}
	if r.Outcome.Status == history.StatusPending {
		fmt.Fprintf(formatter.Writer, "Saved to lab history as %s (pending; finalize with 'labcalc history finalize')\n", savedID)
		return
	}
	fmt.Fprintf(formatter.Writer, "Saved to lab history as %s\n", savedID)
}
