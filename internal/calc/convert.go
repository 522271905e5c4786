package calc

import (
	"github.com/roach88/labcalc/internal/units"
)

// ConversionInput converts a value between two units of one kind.
type ConversionInput struct {
	Kind  string  `json:"kind"`
	Value float64 `json:"value" validate:"finite,gte=0"`
	From  string  `json:"from"`
	To    string  `json:"to"`
}

// ConversionResult is the converted value with resolved units.
type ConversionResult struct {
	Kind   units.Kind `json:"-"`
	Value  float64    `json:"value"`
	From   units.Unit `json:"-"`
	To     units.Unit `json:"-"`
	Result float64    `json:"result"`
}

// Convert converts in.Value between the named units of in.Kind.
func Convert(in ConversionInput) (ConversionResult, error) {
	if err := check(in); err != nil {
		return ConversionResult{}, err
	}
	kind, err := units.ParseKind(in.Kind)
	if err != nil {
		return ConversionResult{}, invalidUnit("kind", err)
	}
	from, err := units.Parse(kind, in.From)
	if err != nil {
		return ConversionResult{}, invalidUnit("from", err)
	}
	to, err := units.Parse(kind, in.To)
	if err != nil {
		return ConversionResult{}, invalidUnit("to", err)
	}
	out, err := units.Convert(in.Value, from, to)
	if err != nil {
		return ConversionResult{}, invalidUnit("to", err)
	}
	if err := checkRange(out); err != nil {
		return ConversionResult{}, err
	}
	return ConversionResult{Kind: kind, Value: in.Value, From: from, To: to, Result: out}, nil
}

// ConvertMolarity converts between molar units (M, mM, µM, nM).
func ConvertMolarity(value float64, from, to string) (float64, error) {
	return convertKind("molarity", value, from, to)
}

// ConvertMass converts between mass units (g, mg, µg, ng).
func ConvertMass(value float64, from, to string) (float64, error) {
	return convertKind("mass", value, from, to)
}

// ConvertVolume converts between volume units (L, mL, µL).
func ConvertVolume(value float64, from, to string) (float64, error) {
	return convertKind("volume", value, from, to)
}

// ConvertConcentration converts between mass concentrations
// (ng/µL, ng/mL, pg/µL, µg/mL).
func ConvertConcentration(value float64, from, to string) (float64, error) {
	return convertKind("concentration", value, from, to)
}

func convertKind(kind string, value float64, from, to string) (float64, error) {
	res, err := Convert(ConversionInput{Kind: kind, Value: value, From: from, To: to})
	if err != nil {
		return 0, err
	}
	return res.Result, nil
}
