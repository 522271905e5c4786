package calculator

import (
	"fmt"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/history"
)

func init() {
	register(&Calculator{
		Name:   "culture",
		Title:  "Cell counting & seeding",
		Group:  GroupTissueCulture,
		Module: history.ModuleTissueCulture,
		Fields: []Field{
			{Name: "cells_counted", Label: "Number of cells counted (in 4 squares)"},
			{Name: "dilution_factor", Label: "Dilution factor (2 for 1:2 with Trypan Blue)", Default: "2"},
			{Name: "seeding_density", Label: "Desired seeding density (cells/mL)"},
			{Name: "total_volume_ml", Label: "Total volume of new media (mL)", Default: "10"},
			{Name: "media_reagent", Label: "Media reagent for cost estimate", Text: true, Optional: true},
		},
		run: runCulture,
	})
}

func runCulture(env Env, v values) (Outcome, error) {
	var in calc.SeedingInput
	if err := v.decode(&in); err != nil {
		return Outcome{}, err
	}
	res, err := calc.SeedCulture(in)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Summary: fmt.Sprintf("%.2e cells/mL, volume to pipet %.2f µL", res.CellsPerML, res.VolumeToPipetUL),
		Details: map[string]any{
			"cells_counted_4_squares": in.CellsCounted,
			"dilution_factor":         in.DilutionFactor,
			"cells_per_ml":            res.CellsPerML,
			"seeding_density_per_ml":  in.SeedingDensity,
			"total_volume_ml":         in.TotalVolumeML,
			"total_cells_in_flask":    res.TotalCellsInFlask,
			"volume_to_pipet_ul":      res.VolumeToPipetUL,
		},
		Result: res,
		Lines: []string{
			"Cell concentration (hemocytometer):",
			fmt.Sprintf("  Cells counted in 4 squares: %s", num(in.CellsCounted)),
			fmt.Sprintf("  Dilution factor:            1:%s", num(in.DilutionFactor)),
			fmt.Sprintf("  Cell concentration:         %.2e cells/mL (%s)", res.CellsPerML, grouped(res.CellsPerML)),
			"Seeding:",
			fmt.Sprintf("  Seeding density:            %.2e cells/mL", in.SeedingDensity),
			fmt.Sprintf("  Total media volume:         %s mL", num(in.TotalVolumeML)),
			fmt.Sprintf("  Total cells in flask:       %.2e (%s)", res.TotalCellsInFlask, grouped(res.TotalCellsInFlask)),
			fmt.Sprintf("Volume of cell suspension to pipet: %.2f µL", res.VolumeToPipetUL),
		},
	}

	switch res.Advice {
	case calc.PipetteTooSmall:
		out.Notes = append(out.Notes, "volume is less than 1 µL and very difficult to pipet accurately; use a lower dilution factor or seeding density")
	case calc.PipetteTooLarge:
		out.Notes = append(out.Notes, "volume is greater than 1000 µL (1 mL); use a smaller total volume or a higher seeding density")
	default:
		out.Lines = append(out.Lines, "Volume is within a reasonable pipetting range.")
	}

	if reagent := v.text("media_reagent"); reagent != "" {
		if cost, ok := estimate(env, reagent, in.TotalVolumeML*1000, &out.Notes); ok {
			out.Details[history.DetailEstimatedCost] = costDetail(cost)
			out.Details["media_reagent"] = reagent
			out.Lines = append(out.Lines, fmt.Sprintf("Estimated media cost (%s): $%s", reagent, cost.StringFixed(2)))
		} else {
			out.Notes = append(out.Notes, fmt.Sprintf("no price for %q; add it with 'labcalc reagent set'", reagent))
		}
	}
	return out, nil
}
