package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/labcalc/internal/protocol"
)

// NewProtocolCommand creates the protocol command group.
func NewProtocolCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protocol",
		Short: "Run batches of calculations from YAML files",
	}
	cmd.AddCommand(newProtocolRunCommand(rootOpts))
	return cmd
}

func newProtocolRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file.yaml>",
		Short: "Run every step of a protocol",
		Long: `Run every step of a protocol file in order.

A failing step is reported and the run continues; steps marked
"save: true" are appended to the lab history. The command exits with
status 1 when any step failed.

Example protocol:
  name: Plate prep
  steps:
    - calculator: dilute
      inputs: {c1: 1, c2: 0.1, v2: 50}
    - calculator: growth
      inputs: {N0: 1000, time_elapsed: 120}
      save: true`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			p, err := protocol.Load(args[0])
			if err != nil {
				_ = formatter.Error(ErrCodeInvalidInput, err.Error(), map[string]string{"file": args[0]})
				return WrapExitError(ExitCommandError, ErrCodeInvalidInput, err)
			}

			sess, err := rootOpts.openSession(cmd)
			if err != nil {
				return formatter.Fail(err)
			}
			defer sess.Close()

			report, err := protocol.Run(cmd.Context(), sess, p)
			if err != nil {
				return formatter.Fail(err)
			}

			if rootOpts.Format == "json" {
				if err := formatter.Success(report); err != nil {
					return err
				}
			} else if err := report.WriteText(formatter.Writer); err != nil {
				return err
			}
			if n := report.Failed(); n > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d steps failed", n, len(report.Steps)))
			}
			return nil
		},
	}
}
