package calculator

import (
	"fmt"
	"strings"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/history"
	"github.com/roach88/labcalc/internal/units"
)

func init() {
	register(&Calculator{
		Name:   "convert",
		Title:  "Unit conversion",
		Group:  GroupBiochemistry,
		Module: history.ModuleConversion,
		Fields: []Field{
			{Name: "kind", Label: "Quantity (molarity, mass, volume, concentration)", Default: "molarity", Text: true},
			{Name: "value", Label: "Value"},
			{Name: "from", Label: "From unit", Text: true},
			{Name: "to", Label: "To unit", Text: true},
		},
		run: runConvert,
	})
	register(&Calculator{
		Name:   "dilute",
		Title:  "Dilution (C1V1 = C2V2)",
		Group:  GroupBiochemistry,
		Module: history.ModuleDilution,
		Fields: []Field{
			{Name: "c1", Label: "Stock concentration (C1)"},
			{Name: "c1_unit", Label: "Stock concentration unit", Default: "M", Text: true},
			{Name: "c2", Label: "Target concentration (C2)"},
			{Name: "c2_unit", Label: "Target concentration unit (blank: same as stock)", Text: true, Optional: true},
			{Name: "v2", Label: "Final volume (V2)"},
			{Name: "volume_unit", Label: "Volume unit (" + strings.Join(units.Symbols(units.KindVolume), ", ") + ")", Default: "mL", Text: true},
		},
		run: runDilute,
	})
	register(&Calculator{
		Name:   "serial",
		Title:  "Serial dilution",
		Group:  GroupBiochemistry,
		Module: history.ModuleSerialDilution,
		Fields: []Field{
			{Name: "starting_conc", Label: "Starting concentration"},
			{Name: "conc_unit", Label: "Concentration unit (e.g. M, mM, ng/mL)", Default: "M", Text: true},
			{Name: "dilution_factor", Label: "Dilution factor (10 for 1:10)", Default: "10"},
			{Name: "num_steps", Label: "Number of dilution steps", Default: "5"},
			{Name: "final_volume", Label: "Final volume per tube", Default: "100"},
			{Name: "vol_unit", Label: "Volume unit (e.g. µL, mL, L)", Default: "µL", Text: true},
			{Name: "diluent_reagent", Label: "Diluent reagent for cost estimate", Text: true, Optional: true},
		},
		run: runSerial,
	})
}

func runConvert(_ Env, v values) (Outcome, error) {
	var in calc.ConversionInput
	if err := v.decode(&in); err != nil {
		return Outcome{}, err
	}
	res, err := calc.Convert(in)
	if err != nil {
		return Outcome{}, err
	}

	module := history.ModuleConversion
	if res.Kind == units.KindMolarity {
		module = history.ModuleMolarity
	}
	line := fmt.Sprintf("%s %s = %s %s", num(res.Value), res.From, fmt.Sprintf("%.6g", res.Result), res.To)
	return Outcome{
		Module:  module,
		Summary: line,
		Details: map[string]any{
			"kind":   res.Kind.String(),
			"value":  res.Value,
			"from":   res.From.String(),
			"to":     res.To.String(),
			"result": res.Result,
		},
		Result: res,
		Lines:  []string{"Result: " + line},
	}, nil
}

func runDilute(_ Env, v values) (Outcome, error) {
	var in calc.DilutionInput
	if err := v.decode(&in); err != nil {
		return Outcome{}, err
	}
	res, err := calc.Dilute(in)
	if err != nil {
		return Outcome{}, err
	}

	vol := res.VolumeUnit.String()
	return Outcome{
		Summary: fmt.Sprintf("%s %s to %s %s: %.4g %s stock + %.4g %s diluent",
			num(in.StockConc), res.StockUnit, num(in.TargetConc), res.TargetUnit,
			res.StockVolume, vol, res.DiluentVolume, vol),
		Details: map[string]any{
			"c1":             in.StockConc,
			"c1_unit":        res.StockUnit.String(),
			"c2":             in.TargetConc,
			"c2_unit":        res.TargetUnit.String(),
			"v2":             res.FinalVolume,
			"v1":             res.StockVolume,
			"diluent_volume": res.DiluentVolume,
			"volume_unit":    vol,
		},
		Result: res,
		Lines: []string{
			fmt.Sprintf("Stock volume (V1): %.4g %s", res.StockVolume, vol),
			fmt.Sprintf("Diluent volume:    %.4g %s", res.DiluentVolume, vol),
			fmt.Sprintf("Add %.4g %s of stock to %.4g %s of diluent for %.4g %s total.",
				res.StockVolume, vol, res.DiluentVolume, vol, res.FinalVolume, vol),
		},
	}, nil
}

func runSerial(env Env, v values) (Outcome, error) {
	var in calc.SerialInput
	if err := v.decode(&in); err != nil {
		return Outcome{}, err
	}
	res, err := calc.SerialDilution(in)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Summary: fmt.Sprintf("1:%s dilution, %d steps, %s%s/tube", num(res.Factor), len(res.Steps), num(res.FinalVolume), res.VolumeUnit),
		Details: map[string]any{
			"starting_concentration": res.StartConc,
			"concentration_unit":     res.ConcUnit.String(),
			"dilution_factor":        res.Factor,
			"num_steps":              float64(len(res.Steps)),
			"final_volume_per_tube":  res.FinalVolume,
			"volume_unit":            res.VolumeUnit.String(),
			"sample_volume":          res.SampleVolume,
			"diluent_volume":         res.DiluentVolume,
		},
		Result: res,
		Lines:  serialRecipe(res),
	}

	reagent := v.text("diluent_reagent")
	if reagent == "" {
		reagent = env.diluent()
	}
	totalUL, err := units.Convert(res.TotalDiluent(), res.VolumeUnit, units.Microliter)
	if err != nil {
		return Outcome{}, err
	}
	if cost, ok := estimate(env, reagent, totalUL, &out.Notes); ok {
		out.Details[history.DetailEstimatedCost] = costDetail(cost)
		out.Details["diluent_reagent"] = reagent
		out.Lines = append(out.Lines, "", fmt.Sprintf("Estimated diluent cost (%s): $%s", reagent, cost.StringFixed(2)))
	}
	return out, nil
}

// serialRecipe lays out the tube table and the pipetting instructions.
func serialRecipe(res calc.SerialResult) []string {
	conc, vol := res.ConcUnit.String(), res.VolumeUnit.String()
	lines := []string{
		"SERIAL DILUTION RECIPE",
		fmt.Sprintf("Starting concentration:  %s %s", num(res.StartConc), conc),
		fmt.Sprintf("Dilution factor:         1:%s", num(res.Factor)),
		fmt.Sprintf("Sample volume per tube:  %.4g %s", res.SampleVolume, vol),
		fmt.Sprintf("Diluent volume per tube: %.4g %s", res.DiluentVolume, vol),
		fmt.Sprintf("Total volume per tube:   %.4g %s", res.SampleVolume+res.DiluentVolume, vol),
		"",
		fmt.Sprintf("%-6s %-20s %-14s %-14s %s", "Step", "Conc ("+conc+")", "Sample ("+vol+")", "Diluent ("+vol+")", "From"),
	}
	for _, s := range res.Steps {
		lines = append(lines, fmt.Sprintf("%-6d %-20s %-14s %-14s %s",
			s.Step,
			fmt.Sprintf("%.6g", s.Concentration),
			fmt.Sprintf("%.4g", s.SampleVolume),
			fmt.Sprintf("%.4g", s.DiluentVolume),
			source(s.Source)))
	}
	lines = append(lines, "", "Instructions:")
	for _, s := range res.Steps {
		lines = append(lines, fmt.Sprintf("%d. Tube %d: mix %.4g %s of %s with %.4g %s of diluent",
			s.Step, s.Step, s.SampleVolume, vol, source(s.Source), s.DiluentVolume, vol))
	}
	return lines
}

func source(tube int) string {
	if tube == 0 {
		return "starting solution"
	}
	return fmt.Sprintf("tube %d", tube)
}
