package calc

import "math"

// GrowthInput is a pair of counts taken Elapsed time units apart.
type GrowthInput struct {
	InitialCount float64 `json:"N0" validate:"finite,gte=0"`
	FinalCount   float64 `json:"N" validate:"finite,gte=0"`
	Elapsed      float64 `json:"time_elapsed" validate:"finite,gte=0"`
}

// GrowthResult is the number of generations and the doubling time, in the
// same time unit as Elapsed.
type GrowthResult struct {
	Generations  float64 `json:"generations"`
	DoublingTime float64 `json:"doubling_time"`
}

// GenerationTime computes generations = log2(N/N0) and doubling = t/generations.
// It fails when the population did not grow (N ≤ N0).
func GenerationTime(in GrowthInput) (GrowthResult, error) {
	if err := check(in); err != nil {
		return GrowthResult{}, err
	}
	if in.FinalCount <= in.InitialCount {
		return GrowthResult{}, domainError("final count must be greater than starting count")
	}
	if in.InitialCount == 0 {
		return GrowthResult{}, invalidInput("N0", "starting count must be greater than 0")
	}
	gens := math.Log2(in.FinalCount / in.InitialCount)
	if err := checkRange(gens); err != nil {
		return GrowthResult{}, err
	}
	return GrowthResult{Generations: gens, DoublingTime: in.Elapsed / gens}, nil
}
