package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/calculator"
	"github.com/roach88/labcalc/internal/history"
	"github.com/roach88/labcalc/internal/reagent"
	"github.com/roach88/labcalc/internal/session"
)

var rule = strings.Repeat("=", 60)

// Menu is the interactive text menu. Every prompt reads one line from In;
// end of input leaves the menu as if Exit had been chosen.
type Menu struct {
	Session *session.Session
	In      *bufio.Scanner
	Out     io.Writer

	// Tick is the countdown print interval.
	Tick time.Duration
}

// NewMenu creates a menu reading from r and writing to w.
func NewMenu(sess *session.Session, r io.Reader, w io.Writer) *Menu {
	return &Menu{
		Session: sess,
		In:      bufio.NewScanner(r),
		Out:     w,
		Tick:    sess.Config.Timer.Tick,
	}
}

// ask prints label and returns the trimmed answer. It returns io.EOF when
// the input is exhausted.
func (m *Menu) ask(label string) (string, error) {
	fmt.Fprint(m.Out, label)
	if !m.In.Scan() {
		fmt.Fprintln(m.Out)
		if err := m.In.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(m.In.Text()), nil
}

func (m *Menu) yes(label string) (bool, error) {
	answer, err := m.ask(label)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// Run shows the main menu until the user exits, the input ends or ctx is
// cancelled.
func (m *Menu) Run(ctx context.Context) error {
	groups := calculator.Groups()
	historyChoice := len(groups) + 1
	settingsChoice := historyChoice + 1
	timerChoice := settingsChoice + 1
	exitChoice := timerChoice + 1

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(m.Out, "\n%s\nlabcalc - Main Menu\n%s\n", rule, rule)
		for i, g := range groups {
			fmt.Fprintf(m.Out, "  %d. %s\n", i+1, g)
		}
		fmt.Fprintf(m.Out, "  %d. View Lab History\n", historyChoice)
		fmt.Fprintf(m.Out, "  %d. Settings\n", settingsChoice)
		fmt.Fprintf(m.Out, "  %d. Timer\n", timerChoice)
		fmt.Fprintf(m.Out, "  %d. Exit\n", exitChoice)

		answer, err := m.ask(fmt.Sprintf("Select 1-%d: ", exitChoice))
		if err != nil {
			return m.exit(ctx, err)
		}
		if strings.EqualFold(answer, "exit") || strings.EqualFold(answer, "q") {
			return m.exit(ctx, nil)
		}
		choice, convErr := strconv.Atoi(answer)
		switch {
		case convErr == nil && choice >= 1 && choice <= len(groups):
			err = m.group(ctx, groups[choice-1])
		case choice == historyChoice:
			err = m.history(ctx)
		case choice == settingsChoice:
			err = m.settings()
		case choice == timerChoice:
			err = m.timer(ctx)
		case choice == exitChoice:
			return m.exit(ctx, nil)
		default:
			fmt.Fprintf(m.Out, "Invalid choice - select 1-%d.\n", exitChoice)
		}
		if err != nil {
			return m.exit(ctx, err)
		}
	}
}

// exit offers to save the unsaved results of the session. cause is
// returned unless it is io.EOF.
func (m *Menu) exit(ctx context.Context, cause error) error {
	if cause != nil && !errors.Is(cause, io.EOF) {
		return cause
	}
	if unsaved := m.Session.Unsaved(); len(unsaved) > 0 && cause == nil {
		save, err := m.yes(fmt.Sprintf("You have %d unsaved result(s) from this session. Save them to lab history? (y/n): ", len(unsaved)))
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if save {
			n, err := m.Session.SaveUnsaved(ctx)
			if err != nil {
				fmt.Fprintf(m.Out, "✗ Error: %v\n", err)
				return err
			}
			fmt.Fprintf(m.Out, "✓ Saved %d result(s) to %s\n", n, m.Session.Config.History.Path)
		}
	}
	fmt.Fprintln(m.Out, "Goodbye!")
	return nil
}

func (m *Menu) group(ctx context.Context, group string) error {
	calcs := calculator.InGroup(group)
	if len(calcs) == 1 {
		return m.calculate(ctx, calcs[0])
	}
	back := len(calcs) + 1
	for {
		fmt.Fprintf(m.Out, "\n%s - choose an option:\n", group)
		for i, c := range calcs {
			fmt.Fprintf(m.Out, "  %d. %s\n", i+1, c.Title)
		}
		fmt.Fprintf(m.Out, "  %d. Back to main menu\n", back)

		answer, err := m.ask(fmt.Sprintf("Select 1-%d: ", back))
		if err != nil {
			return err
		}
		choice, convErr := strconv.Atoi(answer)
		switch {
		case convErr == nil && choice >= 1 && choice < back:
			if err := m.calculate(ctx, calcs[choice-1]); err != nil {
				return err
			}
		case choice == back:
			return nil
		default:
			fmt.Fprintf(m.Out, "Invalid choice - select 1-%d.\n", back)
		}
	}
}

// calculate prompts for every field of c, shows the result and offers to
// save it.
func (m *Menu) calculate(ctx context.Context, c *calculator.Calculator) error {
	fmt.Fprintf(m.Out, "\n%s\n%s\n%s\n", rule, strings.ToUpper(c.Title), rule)
	in := calculator.Inputs{}
	for _, f := range c.Fields {
		label := f.Label
		if f.Default != "" {
			label += " [" + f.Default + "]"
		}
		answer, err := m.ask(label + ": ")
		if err != nil {
			return err
		}
		if answer != "" {
			in[f.Name] = answer
		}
	}

	r, err := m.Session.Calculate(c.Name, in)
	if err != nil {
		fmt.Fprintf(m.Out, "✗ Error: %v\n", err)
		return nil
	}
	fmt.Fprintln(m.Out)
	fmt.Fprint(m.Out, r.Outcome.Text())
	return m.offerSave(ctx, r)
}

func (m *Menu) offerSave(ctx context.Context, r *session.Result) error {
	save, err := m.yes("Save to lab history? (y/n): ")
	if err != nil {
		return err
	}
	if !save {
		fmt.Fprintln(m.Out, "Not saved.")
		return nil
	}
	rec, err := m.Session.Save(ctx, r)
	if err != nil {
		fmt.Fprintf(m.Out, "✗ Error: %v\n", err)
		return nil
	}
	if rec.Status == history.StatusPending {
		fmt.Fprintf(m.Out, "✓ Saved to %s as pending. Finalize it from View Lab History once counted.\n", m.Session.Config.History.Path)
		return nil
	}
	fmt.Fprintf(m.Out, "✓ Saved to %s\n", m.Session.Config.History.Path)
	return nil
}

// history lists the records with their costs and offers to finalize a
// pending Microbiology experiment.
func (m *Menu) history(ctx context.Context) error {
	records, err := m.Session.History.List(ctx)
	if err != nil {
		fmt.Fprintf(m.Out, "✗ Error: %v\n", err)
		return nil
	}
	if len(records) == 0 {
		fmt.Fprintln(m.Out, "\nNo history found.")
		return nil
	}

	fmt.Fprintf(m.Out, "\n%s\nLAB HISTORY\n%s\n", strings.Repeat("=", 80), strings.Repeat("=", 80))
	for _, e := range (history.Filter{}).Apply(records) {
		fmt.Fprintf(m.Out, "%3d. [%s] %s | %s | %s\n", e.Index, e.Status, e.Timestamp.Format("2006-01-02 15:04"), e.Module, e.Summary)
		if cost, ok := e.Cost(); ok {
			fmt.Fprintf(m.Out, "       Estimated cost: $%s\n", cost.StringFixed(2))
		}
	}

	answer, err := m.ask("\nEnter number to finalize pending Microbiology experiment (or press Enter): ")
	if err != nil {
		return err
	}
	if answer == "" {
		fmt.Fprintf(m.Out, "\n%s\n", strings.Repeat("-", 40))
		fmt.Fprintf(m.Out, "Total Project Spend (from history): $%s\n", history.Summarize(records).Spend.StringFixed(2))
		return nil
	}
	index, err := strconv.Atoi(answer)
	if err != nil || index < 1 || index > len(records) {
		fmt.Fprintln(m.Out, "Invalid selection.")
		return nil
	}
	if !records[index-1].IsPendingGrowth() {
		fmt.Fprintln(m.Out, "Not a pending Microbiology experiment.")
		return nil
	}

	answer, err = m.ask("Enter final bacterial count (N): ")
	if err != nil {
		return err
	}
	finalCount, err := calc.ParseNumber(answer)
	if err != nil {
		fmt.Fprintf(m.Out, "Error: %v\n", err)
		return nil
	}
	rec, err := m.Session.Finalize(ctx, index, finalCount)
	if err != nil {
		fmt.Fprintf(m.Out, "Error: %v\n", err)
		return nil
	}
	generations, _ := rec.Number(history.DetailGenerations)
	doubling, _ := rec.Number(history.DetailDoublingTime)
	fmt.Fprintln(m.Out, "✓ Pending experiment finalized and saved.")
	fmt.Fprintf(m.Out, "  Generations (n): %.4f\n", generations)
	fmt.Fprintf(m.Out, "  Doubling time: %.4f (same time units as input)\n", doubling)
	return nil
}

// settings manages the reagent price table.
func (m *Menu) settings() error {
	for {
		fmt.Fprintln(m.Out, "\nSettings - Reagent Pricing")
		prices, err := m.Session.Reagents.List()
		switch {
		case err != nil:
			fmt.Fprintf(m.Out, "✗ Error: %v\n", err)
		case len(prices) == 0:
			fmt.Fprintln(m.Out, "No reagents configured yet.")
		default:
			fmt.Fprintln(m.Out, "Current reagents and prices:")
			for _, p := range prices {
				fmt.Fprintf(m.Out, "  - %s: $%s per %s\n", p.Name, p.PricePerUnit.String(), p.Unit)
			}
		}
		fmt.Fprintln(m.Out, "\n  1. Add / Update reagent price")
		fmt.Fprintln(m.Out, "  2. Add starter prices")
		fmt.Fprintln(m.Out, "  3. Back to main menu")

		answer, err := m.ask("Select 1-3: ")
		if err != nil {
			return err
		}
		switch answer {
		case "1":
			if err := m.setPrice(); err != nil {
				return err
			}
		case "2":
			added, err := m.Session.Reagents.Seed()
			if err != nil {
				fmt.Fprintf(m.Out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintf(m.Out, "✓ Added %d starter price(s).\n", len(added))
		case "3":
			return nil
		default:
			fmt.Fprintln(m.Out, "Invalid choice.")
		}
	}
}

func (m *Menu) setPrice() error {
	name, err := m.ask("Reagent name: ")
	if err != nil {
		return err
	}
	if name == "" {
		fmt.Fprintln(m.Out, "Name required.")
		return nil
	}
	priceText, err := m.ask("Price per unit (numeric): ")
	if err != nil {
		return err
	}
	unitText, err := m.ask("Unit ('uL' or 'mL') [uL]: ")
	if err != nil {
		return err
	}
	if unitText == "" {
		unitText = string(reagent.PerMicroliter)
	}

	price, err := decimal.NewFromString(priceText)
	if err != nil {
		fmt.Fprintln(m.Out, "Error: invalid input: please enter a valid number")
		return nil
	}
	unit, err := reagent.ParseUnit(unitText)
	if err != nil {
		fmt.Fprintf(m.Out, "Error: %v\n", err)
		return nil
	}
	if _, err := m.Session.Reagents.Set(name, price, unit); err != nil {
		fmt.Fprintf(m.Out, "Error: %v\n", err)
		return nil
	}
	fmt.Fprintf(m.Out, "✓ Saved price for %s.\n", name)
	return nil
}

func (m *Menu) timer(ctx context.Context) error {
	answer, err := m.ask("Countdown duration (e.g. 30s, 5m) [60s]: ")
	if err != nil {
		return err
	}
	if answer == "" {
		answer = "60s"
	}
	d, err := ParseDuration(answer)
	if err != nil {
		fmt.Fprintf(m.Out, "✗ Error: %v\n", err)
		return nil
	}
	return Countdown(ctx, m.Out, d, m.Tick)
}

// NewMenuCommand creates the menu command.
func NewMenuCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive text menu",
		Long: `Interactive text menu with every calculator, the lab history, reagent
settings and a countdown timer.

Each result can be saved to the lab history. On exit, results not yet
saved can be saved in one go.`,
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

			// Use command's context if available (for testing)
			parentCtx := cmd.Context()
			if parentCtx == nil {
				parentCtx = context.Background()
			}
			ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = NewMenu(sess, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
