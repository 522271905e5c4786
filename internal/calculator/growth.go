package calculator

import (
	"fmt"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/history"
)

func init() {
	register(&Calculator{
		Name:   "growth",
		Title:  "Generation time",
		Group:  GroupMicrobiology,
		Module: history.ModuleMicrobiology,
		Fields: []Field{
			{Name: history.DetailInitialCount, Label: "Starting number of cells (N0)"},
			{Name: history.DetailFinalCount, Label: "Final number of cells (N), blank to save as pending", Optional: true},
			{Name: history.DetailTimeElapsed, Label: "Total time elapsed"},
		},
		run: runGrowth,
	})
}

// runGrowth computes the doubling time, or returns a pending outcome when
// the final count is not known yet. Pending outcomes are finalized later
// from the history.
func runGrowth(_ Env, v values) (Outcome, error) {
	n0, t := v.num(history.DetailInitialCount), v.num(history.DetailTimeElapsed)

	if !v.has(history.DetailFinalCount) {
		if n0 <= 0 {
			return Outcome{}, &calc.Error{Kind: calc.KindInvalidInput, Field: history.DetailInitialCount, Message: "starting count must be greater than 0"}
		}
		return Outcome{
			Status:  history.StatusPending,
			Summary: fmt.Sprintf("Pending experiment: N0=%s, time=%s", num(n0), num(t)),
			Details: map[string]any{
				history.DetailInitialCount: n0,
				history.DetailTimeElapsed:  t,
			},
			Lines: []string{
				"Final count not given; save to history and finalize it once counted.",
			},
		}, nil
	}

	var in calc.GrowthInput
	if err := v.decode(&in); err != nil {
		return Outcome{}, err
	}
	res, err := calc.GenerationTime(in)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Summary: fmt.Sprintf("N0=%s -> N=%s in %s", num(in.InitialCount), num(in.FinalCount), num(in.Elapsed)),
		Details: map[string]any{
			history.DetailInitialCount: in.InitialCount,
			history.DetailFinalCount:   in.FinalCount,
			history.DetailTimeElapsed:  in.Elapsed,
			history.DetailGenerations:  res.Generations,
			history.DetailDoublingTime: res.DoublingTime,
		},
		Result: res,
		Lines: []string{
			fmt.Sprintf("Generations (n): %.4f", res.Generations),
			fmt.Sprintf("Doubling time:   %.4f (same time unit as input)", res.DoublingTime),
		},
	}, nil
}
