package calc

import (
	"math"

	"github.com/roach88/labcalc/internal/units"
)

// DilutionInput describes a C1V1 = C2V2 dilution.
// TargetUnit defaults to StockUnit; both must be concentrations of one kind.
type DilutionInput struct {
	StockConc   float64 `json:"c1" validate:"finite,gt=0"`
	TargetConc  float64 `json:"c2" validate:"finite,gte=0"`
	FinalVolume float64 `json:"v2" validate:"finite,gte=0"`
	StockUnit   string  `json:"c1_unit"`
	TargetUnit  string  `json:"c2_unit"`
	VolumeUnit  string  `json:"volume_unit"`
}

// DilutionResult holds the stock and diluent volumes, in VolumeUnit.
type DilutionResult struct {
	StockVolume   float64    `json:"v1"`
	DiluentVolume float64    `json:"diluent_volume"`
	FinalVolume   float64    `json:"v2"`
	StockUnit     units.Unit `json:"-"`
	TargetUnit    units.Unit `json:"-"`
	VolumeUnit    units.Unit `json:"-"`
}

// Dilute solves V1 = C2·V2/C1 and diluent = V2 − V1.
// A target above the stock concentration is a domain error: it needs
// concentrating, not dilution.
func Dilute(in DilutionInput) (DilutionResult, error) {
	if err := check(in); err != nil {
		return DilutionResult{}, err
	}
	stockUnit, err := units.ParseAny(orDefault(in.StockUnit, "M"), units.KindMolarity, units.KindMassConcentration)
	if err != nil {
		return DilutionResult{}, invalidUnit("c1_unit", err)
	}
	targetUnit := stockUnit
	if in.TargetUnit != "" {
		if targetUnit, err = units.Parse(stockUnit.Kind(), in.TargetUnit); err != nil {
			return DilutionResult{}, invalidUnit("c2_unit", err)
		}
	}
	volUnit, err := units.Parse(units.KindVolume, orDefault(in.VolumeUnit, "mL"))
	if err != nil {
		return DilutionResult{}, invalidUnit("volume_unit", err)
	}

	c2, err := units.Convert(in.TargetConc, targetUnit, stockUnit)
	if err != nil {
		return DilutionResult{}, invalidUnit("c2_unit", err)
	}
	if c2 > in.StockConc {
		return DilutionResult{}, domainError("target concentration exceeds stock concentration; this requires concentrating the stock, not diluting it")
	}

	v1 := c2 * in.FinalVolume / in.StockConc
	if err := checkRange(c2, v1, in.FinalVolume-v1); err != nil {
		return DilutionResult{}, err
	}
	return DilutionResult{
		StockVolume:   v1,
		DiluentVolume: in.FinalVolume - v1,
		FinalVolume:   in.FinalVolume,
		StockUnit:     stockUnit,
		TargetUnit:    targetUnit,
		VolumeUnit:    volUnit,
	}, nil
}

// SerialInput describes a serial dilution series.
// Steps is a float so that 2.5 is rejected rather than truncated; a
// series has at most 1000 tubes.
type SerialInput struct {
	StartConc   float64 `json:"starting_conc" validate:"finite,gte=0"`
	Factor      float64 `json:"dilution_factor" validate:"finite,gte=0"`
	Steps       float64 `json:"num_steps" validate:"finite,gte=0,lte=1000"`
	FinalVolume float64 `json:"final_volume" validate:"finite,gte=0"`
	ConcUnit    string  `json:"conc_unit"`
	VolumeUnit  string  `json:"vol_unit"`
}

// SerialStep is one tube of the series.
type SerialStep struct {
	Step          int     `json:"step"`
	Concentration float64 `json:"concentration"`
	SampleVolume  float64 `json:"sample_volume"`
	DiluentVolume float64 `json:"diluent_volume"`

	// Source is 0 for the starting solution, otherwise the tube number
	// the sample is drawn from.
	Source int `json:"source"`
}

// SerialResult is the full recipe.
type SerialResult struct {
	StartConc     float64      `json:"starting_conc"`
	Factor        float64      `json:"dilution_factor"`
	SampleVolume  float64      `json:"sample_volume"`
	DiluentVolume float64      `json:"diluent_volume"`
	FinalVolume   float64      `json:"final_volume"`
	ConcUnit      units.Unit   `json:"-"`
	VolumeUnit    units.Unit   `json:"-"`
	Steps         []SerialStep `json:"steps"`
}

// TotalDiluent is the diluent consumed across all tubes, in VolumeUnit.
func (r SerialResult) TotalDiluent() float64 {
	return r.DiluentVolume * float64(len(r.Steps))
}

// SerialDilution computes a serial dilution recipe: every tube takes
// final/factor of the previous tube and is topped up with diluent, so tube
// k holds start/factor^k.
func SerialDilution(in SerialInput) (SerialResult, error) {
	if err := check(in); err != nil {
		return SerialResult{}, err
	}
	if in.Factor <= 1 {
		return SerialResult{}, invalidInput("dilution_factor", "dilution factor must be greater than 1")
	}
	if in.Steps < 1 || math.Trunc(in.Steps) != in.Steps {
		return SerialResult{}, invalidInput("num_steps", "number of steps must be a positive integer")
	}
	concUnit, err := units.ParseAny(orDefault(in.ConcUnit, "M"), units.KindMolarity, units.KindMassConcentration)
	if err != nil {
		return SerialResult{}, invalidUnit("conc_unit", err)
	}
	volUnit, err := units.Parse(units.KindVolume, orDefault(in.VolumeUnit, "µL"))
	if err != nil {
		return SerialResult{}, invalidUnit("vol_unit", err)
	}

	sample := in.FinalVolume / in.Factor
	diluent := in.FinalVolume - sample
	n := int(in.Steps)
	if err := checkRange(sample, diluent, diluent*float64(n)); err != nil {
		return SerialResult{}, err
	}

	res := SerialResult{
		StartConc:     in.StartConc,
		Factor:        in.Factor,
		SampleVolume:  sample,
		DiluentVolume: diluent,
		FinalVolume:   in.FinalVolume,
		ConcUnit:      concUnit,
		VolumeUnit:    volUnit,
		Steps:         make([]SerialStep, 0, n),
	}
	for k := 1; k <= n; k++ {
		res.Steps = append(res.Steps, SerialStep{
			Step:          k,
			Concentration: in.StartConc / math.Pow(in.Factor, float64(k)),
			SampleVolume:  sample,
			DiluentVolume: diluent,
			Source:        k - 1,
		})
	}
	return res, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
