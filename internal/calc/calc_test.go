package calc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labcalc/internal/units"
)

func TestParseNumber(t *testing.T) {
	f, err := ParseNumber(" 12.5 ")
	require.NoError(t, err)
	assert.Equal(t, 12.5, f)

	_, err = ParseNumber("abc")
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.Contains(t, err.Error(), "valid number")

	_, err = ParseNumber("-1")
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.Contains(t, err.Error(), "non-negative")

	_, err = ParseNumber("NaN")
	assert.True(t, IsInvalidInput(err))
}

func TestConvertHelpers(t *testing.T) {
	got, err := ConvertMolarity(250, "mM", "M")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 1e-12)

	got, err = ConvertMass(2, "g", "mg")
	require.NoError(t, err)
	assert.InDelta(t, 2000, got, 1e-9)

	got, err = ConvertVolume(5, "µL", "L")
	require.NoError(t, err)
	assert.InDelta(t, 5e-6, got, 1e-15)

	got, err = ConvertConcentration(3, "ng/uL", "ng/mL")
	require.NoError(t, err)
	assert.InDelta(t, 3000, got, 1e-9)
}

func TestConvert_Errors(t *testing.T) {
	_, err := ConvertMolarity(1, "M", "mg")
	assert.True(t, IsInvalidUnit(err))

	_, err = ConvertVolume(-2, "L", "mL")
	assert.True(t, IsInvalidInput(err))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "value", ce.Field)

	_, err = Convert(ConversionInput{Kind: "temperature", Value: 1, From: "C", To: "F"})
	assert.True(t, IsInvalidUnit(err))
}

func TestDilute_Property(t *testing.T) {
	cases := []struct{ c1, c2, v2 float64 }{
		{1, 0.1, 100},
		{10, 10, 5},
		{2.5, 0, 50},
		{0.3, 0.07, 12.5},
	}
	for _, c := range cases {
		res, err := Dilute(DilutionInput{StockConc: c.c1, TargetConc: c.c2, FinalVolume: c.v2})
		require.NoError(t, err)
		assert.InDelta(t, c.c2*c.v2/c.c1, res.StockVolume, 1e-12)
		assert.InDelta(t, c.v2-res.StockVolume, res.DiluentVolume, 1e-12)
		assert.InDelta(t, c.v2, res.StockVolume+res.DiluentVolume, 1e-12)
	}
}

func TestDilute_Units(t *testing.T) {
	res, err := Dilute(DilutionInput{StockConc: 1, StockUnit: "M", TargetConc: 100, TargetUnit: "mM", FinalVolume: 50})
	require.NoError(t, err)
	assert.InDelta(t, 5, res.StockVolume, 1e-12)
	assert.Equal(t, units.Milliliter, res.VolumeUnit)
	assert.Equal(t, units.Molar, res.StockUnit)

	_, err = Dilute(DilutionInput{StockConc: 1, StockUnit: "M", TargetConc: 1, TargetUnit: "ng/mL", FinalVolume: 50})
	assert.True(t, IsInvalidUnit(err))
}

func TestDilute_TargetAboveStock(t *testing.T) {
	_, err := Dilute(DilutionInput{StockConc: 1, TargetConc: 2, FinalVolume: 10})
	require.Error(t, err)
	assert.True(t, IsDomain(err))
}

func TestDilute_ZeroStock(t *testing.T) {
	_, err := Dilute(DilutionInput{StockConc: 0, TargetConc: 0, FinalVolume: 10})
	assert.True(t, IsInvalidInput(err))
}

func TestSerialDilution_Example(t *testing.T) {
	res, err := SerialDilution(SerialInput{StartConc: 1.0, Factor: 10, Steps: 3, FinalVolume: 100})
	require.NoError(t, err)
	require.Len(t, res.Steps, 3)

	want := []float64{0.1, 0.01, 0.001}
	for i, s := range res.Steps {
		assert.Equal(t, i+1, s.Step)
		assert.InDelta(t, want[i], s.Concentration, 1e-15)
		assert.InDelta(t, 10, s.SampleVolume, 1e-12)
		assert.InDelta(t, 90, s.DiluentVolume, 1e-12)
		assert.Equal(t, i, s.Source)
	}
	assert.Equal(t, units.Molar, res.ConcUnit)
	assert.Equal(t, units.Microliter, res.VolumeUnit)
	assert.InDelta(t, 270, res.TotalDiluent(), 1e-9)
}

func TestSerialDilution_StepConcentrations(t *testing.T) {
	for _, factor := range []float64{2, 3.5, 10} {
		res, err := SerialDilution(SerialInput{StartConc: 7, Factor: factor, Steps: 6, FinalVolume: 200, ConcUnit: "ng/mL", VolumeUnit: "mL"})
		require.NoError(t, err)
		for k, s := range res.Steps {
			assert.InDelta(t, 7/math.Pow(factor, float64(k+1)), s.Concentration, 1e-12)
		}
	}
}

func TestSerialDilution_Errors(t *testing.T) {
	tests := []struct {
		name  string
		in    SerialInput
		field string
	}{
		{"factor one", SerialInput{StartConc: 1, Factor: 1, Steps: 3, FinalVolume: 100}, "dilution_factor"},
		{"fractional steps", SerialInput{StartConc: 1, Factor: 10, Steps: 2.5, FinalVolume: 100}, "num_steps"},
		{"zero steps", SerialInput{StartConc: 1, Factor: 10, Steps: 0, FinalVolume: 100}, "num_steps"},
		{"negative start", SerialInput{StartConc: -1, Factor: 10, Steps: 3, FinalVolume: 100}, "starting_conc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SerialDilution(tt.in)
			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, KindInvalidInput, ce.Kind)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	_, err := SerialDilution(SerialInput{StartConc: 1, Factor: 10, Steps: 3, FinalVolume: 100, VolumeUnit: "gallons"})
	assert.True(t, IsInvalidUnit(err))
}

func TestSeedCulture(t *testing.T) {
	res, err := SeedCulture(SeedingInput{CellsCounted: 200, DilutionFactor: 2, SeedingDensity: 1e5, TotalVolumeML: 10})
	require.NoError(t, err)
	assert.InDelta(t, 1e6, res.CellsPerML, 1e-6)
	assert.InDelta(t, 1e6, res.TotalCellsInFlask, 1e-6)
	assert.InDelta(t, 1000, res.VolumeToPipetUL, 1e-9)
	assert.Equal(t, PipetteOK, res.Advice)

	res, err = SeedCulture(SeedingInput{CellsCounted: 200, DilutionFactor: 2, SeedingDensity: 1e2, TotalVolumeML: 1})
	require.NoError(t, err)
	assert.Equal(t, PipetteTooSmall, res.Advice)

	_, err = SeedCulture(SeedingInput{CellsCounted: 0, DilutionFactor: 2, SeedingDensity: 1e5, TotalVolumeML: 10})
	assert.True(t, IsDomain(err))
}

func TestAdviseVolume(t *testing.T) {
	assert.Equal(t, PipetteTooSmall, AdviseVolume(0.5))
	assert.Equal(t, PipetteOK, AdviseVolume(1))
	assert.Equal(t, PipetteOK, AdviseVolume(1000))
	assert.Equal(t, PipetteTooLarge, AdviseVolume(1000.1))
}

func TestNormalizeDNA_MassUnits(t *testing.T) {
	res, err := NormalizeDNA(NormalizationInput{CurrentConc: 50, CurrentVolumeUL: 20, TargetConc: 10})
	require.NoError(t, err)
	assert.InDelta(t, 100, res.FinalVolumeUL, 1e-9)
	assert.InDelta(t, 80, res.VolumeTEToAddUL, 1e-9)
	assert.False(t, res.SmallAddition)
	assert.Equal(t, units.NanogramPerMicroliter, res.Unit)
}

func TestNormalizeDNA_Molar(t *testing.T) {
	in := NormalizationInput{CurrentConc: 20, CurrentVolumeUL: 10, TargetConc: 4, Unit: "nM"}
	_, err := NormalizeDNA(in)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "fragment_bp", ce.Field)

	in.FragmentBP = 500
	res, err := NormalizeDNA(in)
	require.NoError(t, err)
	// molar ratio is unit-independent: 20/4 · 10 µL
	assert.InDelta(t, 50, res.FinalVolumeUL, 1e-9)
	assert.InDelta(t, 40, res.VolumeTEToAddUL, 1e-9)
}

func TestNormalizeDNA_Errors(t *testing.T) {
	_, err := NormalizeDNA(NormalizationInput{CurrentConc: 5, CurrentVolumeUL: 10, TargetConc: 10})
	assert.True(t, IsDomain(err))

	_, err = NormalizeDNA(NormalizationInput{CurrentConc: 5, CurrentVolumeUL: 10, TargetConc: 0})
	assert.True(t, IsInvalidInput(err))

	_, err = NormalizeDNA(NormalizationInput{CurrentConc: 5, CurrentVolumeUL: 10, TargetConc: 1, Unit: "mg"})
	assert.True(t, IsInvalidUnit(err))

	_, err = NormalizeDNA(NormalizationInput{CurrentConc: 5, CurrentVolumeUL: 10, TargetConc: 1, Unit: "mM"})
	assert.True(t, IsInvalidUnit(err))
}

func TestNormalizeDNA_SmallAddition(t *testing.T) {
	res, err := NormalizeDNA(NormalizationInput{CurrentConc: 10.5, CurrentVolumeUL: 10, TargetConc: 10})
	require.NoError(t, err)
	assert.True(t, res.SmallAddition)
}

func TestNormalizeForensic(t *testing.T) {
	res, err := NormalizeForensic(ForensicInput{InitialConc: 0.5, TargetConc: 0.1, TotalVolumeUL: 15})
	require.NoError(t, err)
	assert.InDelta(t, 3, res.DNAVolumeUL, 1e-12)
	assert.InDelta(t, 12, res.TEVolumeUL, 1e-12)
	assert.False(t, res.NeedsPredilution)
	assert.Empty(t, res.Message)

	res, err = NormalizeForensic(ForensicInput{InitialConc: 15, TargetConc: 0.1, TotalVolumeUL: 15})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, res.DNAVolumeUL, 1e-12)
	assert.True(t, res.NeedsPredilution)
	assert.Contains(t, res.Message, "PRE-DILUTION")

	_, err = NormalizeForensic(ForensicInput{InitialConc: 0.05, TargetConc: 0.1, TotalVolumeUL: 15})
	assert.True(t, IsDomain(err))
}

func TestGenerationTime(t *testing.T) {
	res, err := GenerationTime(GrowthInput{InitialCount: 1000, FinalCount: 8000, Elapsed: 3})
	require.NoError(t, err)
	assert.InDelta(t, 3, res.Generations, 1e-12)
	assert.InDelta(t, 1, res.DoublingTime, 1e-12)

	res, err = GenerationTime(GrowthInput{InitialCount: 1000, FinalCount: 100000, Elapsed: 120})
	require.NoError(t, err)
	assert.InDelta(t, math.Log2(100), res.Generations, 1e-12)
	assert.InDelta(t, 120/math.Log2(100), res.DoublingTime, 1e-9)
}

func TestGenerationTime_NoGrowth(t *testing.T) {
	for _, n := range []float64{1000, 999} {
		_, err := GenerationTime(GrowthInput{InitialCount: 1000, FinalCount: n, Elapsed: 2})
		require.Error(t, err)
		assert.True(t, IsDomain(err))
	}
}

func TestCentrifuge(t *testing.T) {
	res, err := Centrifuge(CentrifugeInput{RadiusCM: 10, RPM: 3000})
	require.NoError(t, err)
	assert.InDelta(t, 1006.2, res.RCF, 1e-9)

	back, err := Centrifuge(CentrifugeInput{RadiusCM: 10, RCF: res.RCF})
	require.NoError(t, err)
	assert.InDelta(t, 3000, back.RPM, 1e-6)

	_, err = Centrifuge(CentrifugeInput{RadiusCM: 10, RPM: 1, RCF: 1})
	assert.True(t, IsInvalidInput(err))

	_, err = Centrifuge(CentrifugeInput{RadiusCM: 0, RPM: 1000})
	assert.True(t, IsInvalidInput(err))
}

func TestSerialDilution_StepLimit(t *testing.T) {
	res, err := SerialDilution(SerialInput{StartConc: 1, Factor: 2, Steps: 1000, FinalVolume: 100})
	require.NoError(t, err)
	assert.Len(t, res.Steps, 1000)

	for _, steps := range []float64{1001, 1e15} {
		_, err := SerialDilution(SerialInput{StartConc: 1, Factor: 10, Steps: steps, FinalVolume: 100})
		var ce *Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, KindInvalidInput, ce.Kind)
		assert.Equal(t, "num_steps", ce.Field)
		assert.Equal(t, "must be at most 1000", ce.Message)
	}
}

func TestOverflowingResults(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{"dilute", func() error {
			_, err := Dilute(DilutionInput{StockConc: 1e300, TargetConc: 1e300, FinalVolume: 1e300})
			return err
		}},
		{"serial total diluent", func() error {
			_, err := SerialDilution(SerialInput{StartConc: 1, Factor: 10, Steps: 1000, FinalVolume: 1e306})
			return err
		}},
		{"culture cells per mL", func() error {
			_, err := SeedCulture(SeedingInput{CellsCounted: 1e308, DilutionFactor: 1e308, SeedingDensity: 1, TotalVolumeML: 1})
			return err
		}},
		{"culture media volume", func() error {
			_, err := SeedCulture(SeedingInput{CellsCounted: 200, DilutionFactor: 2, SeedingDensity: 1e-300, TotalVolumeML: 1e306})
			return err
		}},
		{"dna", func() error {
			_, err := NormalizeDNA(NormalizationInput{CurrentConc: 1e300, CurrentVolumeUL: 1e300, TargetConc: 1})
			return err
		}},
		{"forensic", func() error {
			_, err := NormalizeForensic(ForensicInput{InitialConc: 1e-300, TargetConc: 1e300, TotalVolumeUL: 1e300})
			return err
		}},
		{"growth", func() error {
			_, err := GenerationTime(GrowthInput{InitialCount: 1e-300, FinalCount: 1e300, Elapsed: 10})
			return err
		}},
		{"rcf", func() error {
			_, err := Centrifuge(CentrifugeInput{RadiusCM: 10, RPM: 1e200})
			return err
		}},
		{"convert", func() error {
			_, err := ConvertMolarity(1e308, "M", "nM")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { err = tt.run() })
			require.Error(t, err)
			assert.True(t, IsDomain(err), "got %v", err)
			assert.Contains(t, err.Error(), "out of range")
		})
	}
}
