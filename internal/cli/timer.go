package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/labcalc/internal/calc"
)

// Countdown prints the remaining time once per tick and returns when d has
// elapsed. Cancelling ctx stops it early and returns ctx.Err().
func Countdown(ctx context.Context, w io.Writer, d, tick time.Duration) error {
	if tick <= 0 {
		tick = time.Second
	}
	for remaining := d; remaining > 0; remaining -= tick {
		fmt.Fprintf(w, "Time remaining: %s\n", remaining)
		wait := min(tick, remaining)
		select {
		case <-ctx.Done():
			fmt.Fprintln(w, "Timer stopped.")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	fmt.Fprintln(w, "Time's up!")
	return nil
}

// maxTimerSeconds is the longest countdown a time.Duration can hold.
const maxTimerSeconds = float64(math.MaxInt64 / int64(time.Second))

// ParseDuration accepts Go durations ("90s", "5m") and plain seconds
// ("30").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		switch {
		case math.IsNaN(secs):
			return 0, &calc.Error{Kind: calc.KindInvalidInput, Field: "duration", Message: "invalid input: please enter a valid number"}
		case secs < 0:
			return 0, &calc.Error{Kind: calc.KindInvalidInput, Field: "duration", Message: "values must be non-negative"}
		case secs > maxTimerSeconds:
			return 0, &calc.Error{Kind: calc.KindInvalidInput, Field: "duration", Message: fmt.Sprintf("must be at most %.0f seconds", maxTimerSeconds)}
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &calc.Error{Kind: calc.KindInvalidInput, Field: "duration", Message: fmt.Sprintf("invalid duration %q (try 30s or 5m)", s), Err: err}
	}
	if d < 0 {
		return 0, &calc.Error{Kind: calc.KindInvalidInput, Field: "duration", Message: "values must be non-negative"}
	}
	return d, nil
}

// NewTimerCommand creates the timer command.
func NewTimerCommand(rootOpts *RootOptions) *cobra.Command {
	var tick time.Duration

	cmd := &cobra.Command{
		Use:   "timer <duration>",
		Short: "Run a bench countdown",
		Long: `Count down for the given duration, printing the time left once per tick.

Ctrl-C stops the countdown early.

Examples:
  labcalc timer 30
  labcalc timer 5m --tick 30s`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			d, err := ParseDuration(args[0])
			if err != nil {
				return formatter.Fail(err)
			}
			if !cmd.Flags().Changed("tick") {
				cfg, err := rootOpts.loadConfig()
				if err != nil {
					return formatter.Fail(err)
				}
				tick = cfg.Timer.Tick
			}

			// Use command's context if available (for testing)
			parentCtx := cmd.Context()
			if parentCtx == nil {
				parentCtx = context.Background()
			}
			ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = Countdown(ctx, cmd.OutOrStdout(), d, tick)
			if errors.Is(err, context.Canceled) {
				return NewExitError(ExitFailure, "timer interrupted")
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&tick, "tick", time.Second, "how often to print the remaining time (default: timer.tick)")
	return cmd
}
