package calculator

import (
	"fmt"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/history"
)

func init() {
	register(&Calculator{
		Name:   "rcf",
		Title:  "RCF / RPM",
		Group:  GroupCentrifugation,
		Module: history.ModuleCentrifugation,
		Fields: []Field{
			{Name: "radius_cm", Label: "Rotor radius (cm)"},
			{Name: "rpm", Label: "Speed (RPM), blank to solve for it", Optional: true},
			{Name: "rcf", Label: "Relative centrifugal force (x g), blank to solve for it", Optional: true},
		},
		run: runCentrifuge,
	})
}

func runCentrifuge(_ Env, v values) (Outcome, error) {
	var in calc.CentrifugeInput
	if err := v.decode(&in); err != nil {
		return Outcome{}, err
	}
	res, err := calc.Centrifuge(in)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Summary: fmt.Sprintf("%.0f rpm at r=%s cm = %.0f x g", res.RPM, num(res.RadiusCM), res.RCF),
		Details: map[string]any{
			"radius_cm": res.RadiusCM,
			"rpm":       res.RPM,
			"rcf":       res.RCF,
		},
		Result: res,
		Lines: []string{
			fmt.Sprintf("Rotor radius: %s cm", num(res.RadiusCM)),
			fmt.Sprintf("Speed:        %.0f rpm", res.RPM),
			fmt.Sprintf("RCF:          %.0f x g", res.RCF),
		},
	}, nil
}
