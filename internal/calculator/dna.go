package calculator

import (
	"fmt"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/history"
)

func init() {
	register(&Calculator{
		Name:   "dna",
		Title:  "DNA normalization",
		Group:  GroupMolecular,
		Module: history.ModuleDNA,
		Fields: []Field{
			{Name: "current_conc", Label: "Current concentration"},
			{Name: "current_volume_ul", Label: "Current volume (µL)"},
			{Name: "target_conc", Label: "Target concentration"},
			{Name: "unit", Label: "Concentration unit (ng/µL or nM)", Default: "ng/µL", Text: true},
			{Name: "fragment_bp", Label: "Fragment length in bp (required for nM)", Optional: true},
		},
		run: runDNA,
	})
	register(&Calculator{
		Name:   "forensic",
		Title:  "Forensic DNA normalization",
		Group:  GroupMolecular,
		Module: history.ModuleForensicDNA,
		Fields: []Field{
			{Name: "initial_conc", Label: "Initial DNA concentration (ng/µL)"},
			{Name: "target_conc", Label: "Target concentration (ng/µL)", Default: num(calc.DefaultForensicTarget)},
			{Name: "target_total_volume", Label: "Target total volume (µL)", Default: num(calc.DefaultForensicVolume)},
		},
		run: runForensic,
	})
}

func runDNA(env Env, v values) (Outcome, error) {
	var in calc.NormalizationInput
	if err := v.decode(&in); err != nil {
		return Outcome{}, err
	}
	res, err := calc.NormalizeDNA(in)
	if err != nil {
		return Outcome{}, err
	}

	unit := res.Unit.String()
	out := Outcome{
		Summary: fmt.Sprintf("Normalize to %.2f %s", in.TargetConc, unit),
		Details: map[string]any{
			"input_unit":          unit,
			"current_conc":        in.CurrentConc,
			"current_volume_ul":   in.CurrentVolumeUL,
			"target_conc":         in.TargetConc,
			"final_volume_ul":     res.FinalVolumeUL,
			"volume_TE_to_add_ul": res.VolumeTEToAddUL,
			"fragment_bp":         nil,
		},
		Result: res,
		Lines: []string{
			fmt.Sprintf("Current:            %.2f %s, %.1f µL", in.CurrentConc, unit, in.CurrentVolumeUL),
			fmt.Sprintf("Target:             %.2f %s", in.TargetConc, unit),
			fmt.Sprintf("Final total volume: %.2f µL", res.FinalVolumeUL),
			fmt.Sprintf("TE buffer to add:   %.2f µL", res.VolumeTEToAddUL),
		},
	}
	if v.has("fragment_bp") {
		out.Details["fragment_bp"] = in.FragmentBP
	}
	if res.SmallAddition {
		out.Notes = append(out.Notes, "TE volume is under 1 µL and may be difficult to pipet accurately")
	}
	priceTE(env, res.VolumeTEToAddUL, &out)
	return out, nil
}

func runForensic(env Env, v values) (Outcome, error) {
	var in calc.ForensicInput
	if err := v.decode(&in); err != nil {
		return Outcome{}, err
	}
	res, err := calc.NormalizeForensic(in)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Summary: fmt.Sprintf("%.3f µL DNA + %.3f µL TE", res.DNAVolumeUL, res.TEVolumeUL),
		Details: map[string]any{
			"initial_concentration_ng_ul": in.InitialConc,
			"target_concentration_ng_ul":  in.TargetConc,
			"target_total_volume_ul":      in.TotalVolumeUL,
			"dna_volume_ul":               res.DNAVolumeUL,
			"te_buffer_volume_ul":         res.TEVolumeUL,
			"needs_predilution":           res.NeedsPredilution,
		},
		Result: res,
		Lines: []string{
			fmt.Sprintf("DNA volume to use:  %.3f µL", res.DNAVolumeUL),
			fmt.Sprintf("TE buffer to add:   %.3f µL", res.TEVolumeUL),
			fmt.Sprintf("Total final volume: %.1f µL", in.TotalVolumeUL),
		},
	}
	if res.NeedsPredilution {
		out.Notes = append(out.Notes, res.Message)
	} else {
		out.Lines = append(out.Lines, "Volume is within the acceptable pipetting range (>= 1 µL).")
	}
	priceTE(env, res.TEVolumeUL, &out)
	return out, nil
}

// priceTE records the cost of the TE addition, or a null estimate when the
// reagent has no price.
func priceTE(env Env, volumeUL float64, out *Outcome) {
	reagent := env.diluent()
	cost, ok := estimate(env, reagent, volumeUL, &out.Notes)
	if !ok {
		out.Details[history.DetailEstimatedCost] = nil
		return
	}
	out.Details[history.DetailEstimatedCost] = costDetail(cost)
	out.Lines = append(out.Lines, fmt.Sprintf("Estimated cost (%s): $%s", reagent, cost.StringFixed(2)))
}
