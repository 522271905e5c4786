package calc

import (
	"fmt"
	"strings"

	"github.com/roach88/labcalc/internal/units"
)

// dsDNABasePairMass is the average molecular weight of one base pair of
// double-stranded DNA, in g/mol.
const dsDNABasePairMass = 660.0

// Forensic defaults: 0.1 ng/µL in 15 µL, a typical PCR input.
const (
	DefaultForensicTarget = 0.1
	DefaultForensicVolume = 15.0
)

// NormalizationInput brings a DNA extract down to a target concentration
// by adding TE buffer. Unit is "ng/µL" (default) or "nM"; molar inputs
// need the fragment length.
type NormalizationInput struct {
	CurrentConc     float64 `json:"current_conc" validate:"finite,gte=0"`
	CurrentVolumeUL float64 `json:"current_volume_ul" validate:"finite,gte=0"`
	TargetConc      float64 `json:"target_conc" validate:"finite,gte=0"`
	Unit            string  `json:"unit"`
	FragmentBP      float64 `json:"fragment_bp,omitempty" validate:"finite,gte=0"`
}

// NormalizationResult holds the final volume and the TE to add, in µL.
type NormalizationResult struct {
	Unit            units.Unit `json:"-"`
	FinalVolumeUL   float64    `json:"final_volume_ul"`
	VolumeTEToAddUL float64    `json:"volume_te_to_add_ul"`

	// SmallAddition flags TE additions under 1 µL.
	SmallAddition bool `json:"small_addition"`
}

// NormalizeDNA computes final = current·volume/target and TE = final − volume.
func NormalizeDNA(in NormalizationInput) (NormalizationResult, error) {
	if err := check(in); err != nil {
		return NormalizationResult{}, err
	}
	unit, err := units.ParseAny(orDefault(in.Unit, "ng/µL"), units.KindMolarity, units.KindMassConcentration)
	if err != nil {
		return NormalizationResult{}, invalidUnit("unit", err)
	}

	current, target := in.CurrentConc, in.TargetConc
	switch unit {
	case units.NanogramPerMicroliter:
	case units.Nanomolar:
		if in.FragmentBP <= 0 {
			return NormalizationResult{}, invalidInput("fragment_bp", "fragment length (bp) is required to convert between nM and ng/µL")
		}
		mw := dsDNABasePairMass * in.FragmentBP
		current = nanomolarToNgPerUL(current, mw)
		target = nanomolarToNgPerUL(target, mw)
	default:
		return NormalizationResult{}, invalidUnit("unit", fmt.Errorf("%w: use ng/µL or nM", units.ErrUnknownUnit))
	}
	if target <= 0 {
		return NormalizationResult{}, invalidInput("target_conc", "target concentration must be greater than 0")
	}

	final := current * in.CurrentVolumeUL / target
	if err := checkRange(current, target, final); err != nil {
		return NormalizationResult{}, err
	}
	if final < in.CurrentVolumeUL-1e-9 {
		return NormalizationResult{}, domainError("target concentration is higher than current concentration; this requires evaporation or a concentration method, not addition of TE")
	}
	te := final - in.CurrentVolumeUL
	return NormalizationResult{
		Unit:            unit,
		FinalVolumeUL:   final,
		VolumeTEToAddUL: te,
		SmallAddition:   te < MinPipetteUL,
	}, nil
}

// nanomolarToNgPerUL converts nM to ng/µL for a molecule of mw g/mol.
func nanomolarToNgPerUL(nm, mw float64) float64 {
	return nm * mw * 1e-6
}

// ForensicInput is the fixed-volume forensic normalization.
type ForensicInput struct {
	InitialConc   float64 `json:"initial_conc" validate:"finite,gte=0"`
	TargetConc    float64 `json:"target_conc" validate:"finite,gte=0"`
	TotalVolumeUL float64 `json:"target_total_volume" validate:"finite,gte=0"`
}

// ForensicResult is the DNA/TE split of the reaction volume.
type ForensicResult struct {
	DNAVolumeUL      float64 `json:"dna_volume_ul"`
	TEVolumeUL       float64 `json:"te_volume_ul"`
	NeedsPredilution bool    `json:"needs_predilution"`
	Message          string  `json:"message,omitempty"`
}

// NormalizeForensic computes dna = target·total/initial and te = total − dna.
// DNA volumes under 1 µL are below pipette accuracy and flag a pre-dilution.
func NormalizeForensic(in ForensicInput) (ForensicResult, error) {
	if err := check(in); err != nil {
		return ForensicResult{}, err
	}
	if in.TargetConc <= 0 {
		return ForensicResult{}, invalidInput("target_conc", "target concentration must be greater than 0")
	}
	if in.InitialConc <= 0 {
		return ForensicResult{}, invalidInput("initial_conc", "initial concentration must be greater than 0")
	}

	dna := in.TargetConc * in.TotalVolumeUL / in.InitialConc
	if err := checkRange(dna); err != nil {
		return ForensicResult{}, err
	}
	if dna > in.TotalVolumeUL {
		return ForensicResult{}, domainError("extract is too dilute: %.3f µL of DNA exceeds the %.1f µL reaction volume", dna, in.TotalVolumeUL)
	}

	res := ForensicResult{
		DNAVolumeUL:      dna,
		TEVolumeUL:       in.TotalVolumeUL - dna,
		NeedsPredilution: dna < MinPipetteUL,
	}
	if res.NeedsPredilution {
		res.Message = predilutionMessage(dna)
	}
	return res, nil
}

func predilutionMessage(dna float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PRE-DILUTION RECOMMENDED: required DNA volume is %.3f µL (< 1 µL). ", dna)
	b.WriteString("This is below typical pipette accuracy. ")
	b.WriteString("Pre-dilute the DNA sample first (e.g. 1:10), then normalize.")
	return b.String()
}
