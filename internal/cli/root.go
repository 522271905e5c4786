package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/labcalc/internal/calculator"
	"github.com/roach88/labcalc/internal/config"
	"github.com/roach88/labcalc/internal/session"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	ConfigFile string
	History    string // overrides history.path
	Backend    string // overrides history.backend
	Reagents   string // overrides reagents.path

	// Clock and IDs allow overriding the session clock and record id
	// generator (for testing). If nil, time.Now and UUIDv7 are used.
	Clock func() time.Time
	IDs   session.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the labcalc CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labcalc",
		Short: "labcalc - bench calculations with a lab history",
		Long: `Laboratory calculation helper.

Unit conversions, dilutions, serial dilutions, cell seeding, DNA
normalization, generation time and centrifuge speed, with results
optionally saved to a lab history and priced against a reagent table.

Run "labcalc menu" for the interactive menu or "labcalc serve" for the
form UI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default: ./labcalc.yaml or ~/.config/labcalc/labcalc.yaml)")
	cmd.PersistentFlags().StringVar(&opts.History, "history", "", "history file (overrides history.path)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "history backend: json or sqlite (overrides history.backend)")
	cmd.PersistentFlags().StringVar(&opts.Reagents, "reagents", "", "reagent price file (overrides reagents.path)")

	// Add subcommands
	for _, c := range calculator.All() {
		cmd.AddCommand(NewCalculatorCommand(opts, c))
	}
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewReagentCommand(opts))
	cmd.AddCommand(NewMenuCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTimerCommand(opts))
	cmd.AddCommand(NewProtocolCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// ErrConfig marks configuration errors.
var ErrConfig = errors.New("configuration error")

// loadConfig reads the configuration and applies the global flag
// overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if o.History != "" {
		cfg.History.Path = o.History
	}
	if o.Backend != "" {
		cfg.History.Backend = o.Backend
	}
	if o.Reagents != "" {
		cfg.Reagents.Path = o.Reagents
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return cfg, nil
}

// openSession loads the configuration and opens the history store. The
// caller closes the session.
func (o *RootOptions) openSession(cmd *cobra.Command) (*session.Session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	opts := []session.Option{session.WithLogger(session.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, o.Verbose))}
	if o.Clock != nil {
		opts = append(opts, session.WithClock(o.Clock))
	}
	if o.IDs != nil {
		opts = append(opts, session.WithIDs(o.IDs))
	}
	sess, err := session.Open(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		o.formatter(cmd).VerboseLog("Using config %s", cfg.File)
	}
	return sess, nil
}

// formatter builds the output formatter for cmd. Verbose logs go to stderr
// to avoid corrupting JSON.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
