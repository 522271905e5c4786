package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/history"
)

// HistoryOptions holds flags shared by the history subcommands.
type HistoryOptions struct {
	*RootOptions
	Module string
	Status string
}

func (o *HistoryOptions) filter() (history.Filter, error) {
	f := history.Filter{Module: o.Module}
	switch history.Status(o.Status) {
	case "":
	case history.StatusCompleted, history.StatusPending:
		f.Status = history.Status(o.Status)
	default:
		return f, &calc.Error{Kind: calc.KindInvalidInput, Field: "status", Message: fmt.Sprintf("must be %s or %s, got %q", history.StatusCompleted, history.StatusPending, o.Status)}
	}
	return f, nil
}

func (o *HistoryOptions) addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Module, "module", "", "only records whose module contains this text")
	cmd.Flags().StringVar(&o.Status, "status", "", "only records with this status (completed|pending)")
}

// NewHistoryCommand creates the history command group.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "View, finalize and export the lab history",
		Long: `View, finalize and export the lab history.

Records are numbered from 1 in the order they were saved. Pending
Microbiology experiments are completed with "history finalize".

Examples:
  labcalc history list --status pending
  labcalc history finalize 3 16000
  labcalc history export --as csv -o history.csv
  labcalc history summary --format json`,
	}

	cmd.AddCommand(newHistoryListCommand(rootOpts))
	cmd.AddCommand(newHistoryFinalizeCommand(rootOpts))
	cmd.AddCommand(newHistoryExportCommand(rootOpts))
	cmd.AddCommand(newHistorySummaryCommand(rootOpts))

	return cmd
}

func newHistoryListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List saved records",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(opts, cmd)
		},
	}
	opts.addFilterFlags(cmd)
	return cmd
}

func runHistoryList(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	entries, err := loadEntries(opts, cmd)
	if err != nil {
		return formatter.Fail(err)
	}

	if opts.Format == "json" {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No lab history found.")
		return nil
	}
	writeEntries(formatter.Writer, entries)
	return nil
}

func loadEntries(opts *HistoryOptions, cmd *cobra.Command) ([]history.Entry, error) {
	f, err := opts.filter()
	if err != nil {
		return nil, err
	}
	sess, err := opts.openSession(cmd)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	records, err := sess.History.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	return f.Apply(records), nil
}

// writeEntries renders entries as a table, one line per record.
func writeEntries(w io.Writer, entries []history.Entry) {
	fmt.Fprintf(w, "%4s  %-16s  %-9s  %-38s  %s\n", "#", "Date", "Status", "Module", "Summary")
	for _, e := range entries {
		fmt.Fprintf(w, "%4d  %-16s  %-9s  %-38s  %s\n",
			e.Index, e.Timestamp.Format("2006-01-02 15:04"), e.Status, e.Module, e.Summary)
	}
}

func newHistoryFinalizeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finalize <index> <final-count>",
		Short: "Complete a pending Microbiology experiment",
		Long: `Complete a pending Microbiology experiment with its final cell count.

Generations and doubling time are computed from the saved N0 and time
elapsed, the record is marked completed and stamped with the current time.

Example:
  labcalc history finalize 3 16000`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryFinalize(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runHistoryFinalize(opts *RootOptions, indexArg, countArg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	index, err := strconv.Atoi(indexArg)
	if err != nil || index < 1 {
		return formatter.Fail(&calc.Error{Kind: calc.KindInvalidInput, Field: "index", Message: fmt.Sprintf("must be a positive whole number, got %q", indexArg)})
	}
	finalCount, err := calc.ParseNumber(countArg)
	if err != nil {
		return formatter.Fail(fmt.Errorf("final count: %w", err))
	}

	sess, err := opts.openSession(cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	defer sess.Close()

	rec, err := sess.Finalize(cmd.Context(), index, finalCount)
	if err != nil {
		return formatter.Fail(err)
	}

	if opts.Format == "json" {
		return formatter.Success(history.Entry{Index: index, Record: rec})
	}
	generations, _ := rec.Number(history.DetailGenerations)
	doubling, _ := rec.Number(history.DetailDoublingTime)
	fmt.Fprintf(formatter.Writer, "Finalized record %d (%s)\n", index, rec.Module)
	fmt.Fprintf(formatter.Writer, "Generations: %.2f\n", generations)
	fmt.Fprintf(formatter.Writer, "Doubling time: %.2f\n", doubling)
	return nil
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	HistoryOptions
	As     string
	Output string
}

func newHistoryExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{HistoryOptions: HistoryOptions{RootOptions: rootOpts}}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the lab history as CSV, YAML or PDF",
		Long: `Export the lab history as CSV, YAML or PDF.

Writes to standard output unless --output is given.

Examples:
  labcalc history export --as csv -o lab_history.csv
  labcalc history export --as pdf --module microbiology -o growth.pdf`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryExport(opts, cmd)
		},
	}
	opts.addFilterFlags(cmd)
	cmd.Flags().StringVar(&opts.As, "as", "csv", "export format (csv|yaml|pdf)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func runHistoryExport(opts *ExportOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	switch opts.As {
	case "csv", "yaml", "pdf":
	default:
		return formatter.Fail(&calc.Error{Kind: calc.KindInvalidInput, Field: "as", Message: fmt.Sprintf("must be csv, yaml or pdf, got %q", opts.As)})
	}

	f, err := opts.filter()
	if err != nil {
		return formatter.Fail(err)
	}
	sess, err := opts.openSession(cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	defer sess.Close()

	records, err := sess.History.List(cmd.Context())
	if err != nil {
		return formatter.Fail(err)
	}
	entries := f.Apply(records)

	w := cmd.OutOrStdout()
	if opts.Output != "" {
		file, err := os.Create(opts.Output)
		if err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
		}
		defer file.Close()
		w = file
	}

	switch opts.As {
	case "csv":
		err = history.WriteCSV(w, entries)
	case "yaml":
		err = history.WriteYAML(w, entries)
	case "pdf":
		err = history.WritePDF(w, "Lab history", entries, sess.Now())
	}
	if err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
	}

	if opts.Output != "" {
		formatter.VerboseLog("Exported %d records to %s", len(entries), opts.Output)
		if opts.Format == "json" {
			return formatter.Success(map[string]interface{}{"path": opts.Output, "records": len(entries), "as": opts.As})
		}
		fmt.Fprintf(formatter.Writer, "Exported %d records to %s\n", len(entries), opts.Output)
	}
	return nil
}

func newHistorySummaryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "summary",
		Short:         "Count records and total the estimated spend",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistorySummary(opts, cmd)
		},
	}
	opts.addFilterFlags(cmd)
	return cmd
}

func runHistorySummary(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	entries, err := loadEntries(opts, cmd)
	if err != nil {
		return formatter.Fail(err)
	}
	records := make([]history.Record, len(entries))
	for i, e := range entries {
		records[i] = e.Record
	}
	s := history.Summarize(records)

	if opts.Format == "json" {
		return formatter.Success(s)
	}
	fmt.Fprintf(formatter.Writer, "Records: %d (%d completed, %d pending)\n", s.Total, s.Completed, s.Pending)
	fmt.Fprintf(formatter.Writer, "Estimated spend: $%s\n", s.Spend.StringFixed(2))
	if len(s.ByModule) == 0 {
		return nil
	}
	modules := make([]string, 0, len(s.ByModule))
	for m := range s.ByModule {
		modules = append(modules, m)
	}
	sort.Strings(modules)
	fmt.Fprintln(formatter.Writer, "\nBy module:")
	for _, m := range modules {
		fmt.Fprintf(formatter.Writer, "  %-40s %d\n", m, s.ByModule[m])
	}
	return nil
}
