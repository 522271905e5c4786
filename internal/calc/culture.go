package calc

// hemocytometerFactor converts cells per large square to cells/mL
// (each square holds 0.1 µL).
const hemocytometerFactor = 10_000

// Pipetting range for the suspension volume, in µL.
const (
	MinPipetteUL = 1.0
	MaxPipetteUL = 1000.0
)

// PipetteAdvice classifies a volume against the practical pipetting range.
type PipetteAdvice string

const (
	PipetteOK       PipetteAdvice = "ok"
	PipetteTooSmall PipetteAdvice = "too_small"
	PipetteTooLarge PipetteAdvice = "too_large"
)

// AdviseVolume classifies a volume in µL.
func AdviseVolume(ul float64) PipetteAdvice {
	switch {
	case ul < MinPipetteUL:
		return PipetteTooSmall
	case ul > MaxPipetteUL:
		return PipetteTooLarge
	default:
		return PipetteOK
	}
}

// SeedingInput is a hemocytometer count (four squares) and the target
// seeding of a new flask.
type SeedingInput struct {
	CellsCounted   float64 `json:"cells_counted" validate:"finite,gte=0"`
	DilutionFactor float64 `json:"dilution_factor" validate:"finite,gte=0"`
	SeedingDensity float64 `json:"seeding_density" validate:"finite,gte=0"`
	TotalVolumeML  float64 `json:"total_volume_ml" validate:"finite,gte=0"`
}

// SeedingResult is the suspension concentration and the volume to pipet.
type SeedingResult struct {
	CellsPerML        float64       `json:"cells_per_ml"`
	TotalCellsInFlask float64       `json:"total_cells_in_flask"`
	VolumeToPipetUL   float64       `json:"volume_to_pipet_ul"`
	Advice            PipetteAdvice `json:"advice"`
}

// SeedCulture computes cells/mL = count/4 · dilution · 10⁴ and the volume
// of suspension that seeds density·volume cells.
func SeedCulture(in SeedingInput) (SeedingResult, error) {
	if err := check(in); err != nil {
		return SeedingResult{}, err
	}
	cellsPerML := in.CellsCounted / 4 * in.DilutionFactor * hemocytometerFactor
	if err := checkRange(cellsPerML); err != nil {
		return SeedingResult{}, err
	}
	if cellsPerML == 0 {
		return SeedingResult{}, domainError("cell concentration is zero; count cells and use a dilution factor above 0")
	}
	total := in.SeedingDensity * in.TotalVolumeML
	volumeUL := total / cellsPerML * 1000
	if err := checkRange(total, volumeUL, in.TotalVolumeML*1000); err != nil {
		return SeedingResult{}, err
	}

	return SeedingResult{
		CellsPerML:        cellsPerML,
		TotalCellsInFlask: total,
		VolumeToPipetUL:   volumeUL,
		Advice:            AdviseVolume(volumeUL),
	}, nil
}
