package calc

import "math"

// rcfConstant relates RPM and rotor radius (cm) to relative centrifugal force.
const rcfConstant = 1.118e-5

// CentrifugeInput holds the rotor radius in cm and either a speed in RPM or
// a target RCF (×g). Exactly one of RPM and RCF must be set.
type CentrifugeInput struct {
	RadiusCM float64 `json:"radius_cm" validate:"finite,gt=0"`
	RPM      float64 `json:"rpm" validate:"finite,gte=0"`
	RCF      float64 `json:"rcf" validate:"finite,gte=0"`
}

// CentrifugeResult carries both quantities.
type CentrifugeResult struct {
	RadiusCM float64 `json:"radius_cm"`
	RPM      float64 `json:"rpm"`
	RCF      float64 `json:"rcf"`
}

// RCF returns the relative centrifugal force, RCF = 1.118e-5 · r · rpm².
func RCF(radiusCM, rpm float64) float64 {
	return rcfConstant * radiusCM * rpm * rpm
}

// RPM returns the speed that produces rcf at radiusCM.
func RPM(radiusCM, rcf float64) float64 {
	return math.Sqrt(rcf / (rcfConstant * radiusCM))
}

// Centrifuge fills in whichever of RPM and RCF is missing.
func Centrifuge(in CentrifugeInput) (CentrifugeResult, error) {
	if err := check(in); err != nil {
		return CentrifugeResult{}, err
	}
	switch {
	case in.RPM > 0 && in.RCF > 0:
		return CentrifugeResult{}, invalidInput("rcf", "give either rpm or rcf, not both")
	case in.RPM > 0:
		rcf := RCF(in.RadiusCM, in.RPM)
		if err := checkRange(rcf); err != nil {
			return CentrifugeResult{}, err
		}
		return CentrifugeResult{RadiusCM: in.RadiusCM, RPM: in.RPM, RCF: rcf}, nil
	case in.RCF > 0:
		rpm := RPM(in.RadiusCM, in.RCF)
		if err := checkRange(rpm); err != nil {
			return CentrifugeResult{}, err
		}
		return CentrifugeResult{RadiusCM: in.RadiusCM, RPM: rpm, RCF: in.RCF}, nil
	default:
		return CentrifugeResult{}, invalidInput("rpm", "give rpm or rcf")
	}
}
