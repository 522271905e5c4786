package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/labcalc/internal/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculator forms and JSON API",
		Long: `Serve an HTML form per calculator, the lab history and a JSON API.

Metrics are exposed at /metrics and a health check at /healthz.

Examples:
  labcalc serve
  labcalc serve --addr 0.0.0.0:8080 --backend sqlite --history lab_history.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			sess, err := rootOpts.openSession(cmd)
			if err != nil {
				return formatter.Fail(err)
			}
			defer sess.Close()

			if addr == "" {
				addr = sess.Config.Serve.Addr
			}

			// Use command's context if available (for testing)
			parentCtx := cmd.Context()
			if parentCtx == nil {
				parentCtx = context.Background()
			}
			ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", addr)
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
			if err := web.New(sess).Run(ctx, addr); err != nil {
				return WrapExitError(ExitCommandError, "server error", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: serve.addr)")
	return cmd
}
