// Package units provides the enumerated laboratory units and the factor
// tables used to convert between them.
//
// Every unit belongs to exactly one Kind and carries a factor to the base
// unit of that kind (M, g, L and ng/µL). Conversion is a single
// multiply/divide through the base unit; units of different kinds never
// convert.
//
// Unit strings are parsed after Unicode NFKC normalization so that the
// micro sign (U+00B5), the Greek mu (U+03BC) and a plain "u" all name the
// same prefix.
package units

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind groups units that measure the same quantity.
type Kind int

const (
	KindMolarity Kind = iota + 1
	KindMass
	KindVolume
	KindMassConcentration
)

var kindNames = map[Kind]string{
	KindMolarity:          "molarity",
	KindMass:              "mass",
	KindVolume:            "volume",
	KindMassConcentration: "concentration",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a kind by name ("molarity", "mass", "volume",
// "concentration").
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Unit is an enumerated laboratory unit.
type Unit int

const (
	Molar Unit = iota + 1
	Millimolar
	Micromolar
	Nanomolar

	Gram
	Milligram
	Microgram
	Nanogram

	Liter
	Milliliter
	Microliter

	NanogramPerMicroliter
	NanogramPerMilliliter
	PicogramPerMicroliter
	MicrogramPerMilliliter
)

// Errors returned by Parse and Convert.
var (
	ErrUnknownUnit  = errors.New("unknown unit")
	ErrUnknownKind  = errors.New("unknown unit kind")
	ErrKindMismatch = errors.New("units measure different quantities")
)

type info struct {
	symbol string
	kind   Kind
	factor float64 // multiples of the kind's base unit
}

var table = map[Unit]info{
	Molar:      {"M", KindMolarity, 1},
	Millimolar: {"mM", KindMolarity, 1e-3},
	Micromolar: {"µM", KindMolarity, 1e-6},
	Nanomolar:  {"nM", KindMolarity, 1e-9},

	Gram:      {"g", KindMass, 1},
	Milligram: {"mg", KindMass, 1e-3},
	Microgram: {"µg", KindMass, 1e-6},
	Nanogram:  {"ng", KindMass, 1e-9},

	Liter:      {"L", KindVolume, 1},
	Milliliter: {"mL", KindVolume, 1e-3},
	Microliter: {"µL", KindVolume, 1e-6},

	NanogramPerMicroliter:  {"ng/µL", KindMassConcentration, 1},
	NanogramPerMilliliter:  {"ng/mL", KindMassConcentration, 1e-3},
	PicogramPerMicroliter:  {"pg/µL", KindMassConcentration, 1e-3},
	MicrogramPerMilliliter: {"µg/mL", KindMassConcentration, 1},
}

// aliases maps folded spellings (micro prefix as "u") to units.
// Matching is case-sensitive: "mM" and "MM" are different strings.
var aliases = map[string]Unit{
	"M":  Molar,
	"mM": Millimolar,
	"uM": Micromolar,
	"nM": Nanomolar,

	"g":  Gram,
	"mg": Milligram,
	"ug": Microgram,
	"ng": Nanogram,

	"L":  Liter,
	"l":  Liter,
	"mL": Milliliter,
	"ml": Milliliter,
	"uL": Microliter,
	"ul": Microliter,

	"ng/uL": NanogramPerMicroliter,
	"ng/ul": NanogramPerMicroliter,
	"ng/mL": NanogramPerMilliliter,
	"ng/ml": NanogramPerMilliliter,
	"pg/uL": PicogramPerMicroliter,
	"pg/ul": PicogramPerMicroliter,
	"ug/mL": MicrogramPerMilliliter,
	"ug/ml": MicrogramPerMilliliter,
}

// String returns the display symbol, e.g. "µL".
func (u Unit) String() string {
	if i, ok := table[u]; ok {
		return i.symbol
	}
	return fmt.Sprintf("unit(%d)", int(u))
}

// Kind reports which quantity the unit measures.
func (u Unit) Kind() Kind {
	return table[u].kind
}

// Factor returns the multiple of the kind's base unit.
func (u Unit) Factor() float64 {
	return table[u].factor
}

// Valid reports whether u is one of the enumerated units.
func (u Unit) Valid() bool {
	_, ok := table[u]
	return ok
}

// Fold normalizes a unit string: NFKC, trimmed, micro prefix folded to "u".
// NFKC maps the micro sign U+00B5 onto Greek mu U+03BC.
func Fold(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "μ", "u")
}

// Lookup parses a unit string of any kind.
func Lookup(s string) (Unit, error) {
	if u, ok := aliases[Fold(s)]; ok {
		return u, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// Parse parses a unit string that must belong to kind.
func Parse(kind Kind, s string) (Unit, error) {
	u, err := Lookup(s)
	if err != nil {
		return 0, err
	}
	if u.Kind() != kind {
		return 0, fmt.Errorf("%w: %q is not a %s unit", ErrUnknownUnit, s, kind)
	}
	return u, nil
}

// ParseAny parses a unit string that must belong to one of kinds.
func ParseAny(s string, kinds ...Kind) (Unit, error) {
	u, err := Lookup(s)
	if err != nil {
		return 0, err
	}
	for _, k := range kinds {
		if u.Kind() == k {
			return u, nil
		}
	}
	return 0, fmt.Errorf("%w: %q is not a %s unit", ErrUnknownUnit, s, joinKinds(kinds))
}

// Convert converts value from one unit to another of the same kind.
func Convert(value float64, from, to Unit) (float64, error) {
	if !from.Valid() || !to.Valid() {
		return 0, ErrUnknownUnit
	}
	if from.Kind() != to.Kind() {
		return 0, fmt.Errorf("%w: %s and %s", ErrKindMismatch, from, to)
	}
	if from == to {
		return value, nil
	}
	return value * from.Factor() / to.Factor(), nil
}

// Of lists the units of a kind, smallest factor last.
func Of(kind Kind) []Unit {
	var out []Unit
	for u, i := range table {
		if i.kind == kind {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		fa, fb := out[a].Factor(), out[b].Factor()
		if fa != fb {
			return fa > fb
		}
		return out[a] < out[b]
	})
	return out
}

// Symbols lists the display symbols of a kind, for prompts and help text.
func Symbols(kind Kind) []string {
	us := Of(kind)
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = u.String()
	}
	return out
}

func joinKinds(kinds []Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, " or ")
}
