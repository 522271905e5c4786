// Package reagent manages the reagent price table used for cost estimates.
//
// The table is a flat JSON object persisted in a single file:
//
//	{
//	  "TE Buffer": {"price_per_unit": 0.05, "unit": "mL"},
//	  "Taq Polymerase": {"price_per_unit": 0.5, "unit": "uL"}
//	}
//
// The file is read in full on every access and rewritten in full on every
// update. A missing file is an empty table. Prices are decimals so that
// costs add up to the cent.
package reagent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/labcalc/internal/units"
)

// Unit is the volume a price refers to.
type Unit string

const (
	PerMicroliter Unit = "uL"
	PerMilliliter Unit = "mL"
)

// ParseUnit accepts µL/uL/μL and mL spellings.
func ParseUnit(s string) (Unit, error) {
	u, err := units.Parse(units.KindVolume, s)
	if err != nil {
		return "", err
	}
	switch u {
	case units.Microliter:
		return PerMicroliter, nil
	case units.Milliliter:
		return PerMilliliter, nil
	default:
		return "", fmt.Errorf("%w: prices are per uL or mL, not %s", units.ErrUnknownUnit, u)
	}
}

// Price is one row of the table. Name is the unique key.
type Price struct {
	Name         string          `json:"name"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Unit         Unit            `json:"unit"`
}

// Microliters returns how many µL one priced unit holds.
func (p Price) Microliters() decimal.Decimal {
	if p.Unit == PerMilliliter {
		return decimal.NewFromInt(1000)
	}
	return decimal.NewFromInt(1)
}

// Cost prices volumeUL µL of the reagent.
func (p Price) Cost(volumeUL float64) decimal.Decimal {
	return p.PricePerUnit.Mul(decimal.NewFromFloat(volumeUL)).Div(p.Microliters())
}

// ErrInvalidPrice is returned by Set for negative prices or empty names.
var ErrInvalidPrice = errors.New("invalid reagent price")

// ErrInvalidVolume is returned by Cost for volumes that are not finite.
var ErrInvalidVolume = errors.New("volume out of range")

// fileEntry is the on-disk shape. Prices stay json.Number so no precision
// is lost between the file and decimal.Decimal.
type fileEntry struct {
	PricePerUnit json.Number `json:"price_per_unit"`
	Unit         string      `json:"unit,omitempty"`
}

// Table is a file-backed reagent price table.
type Table struct {
	path string
}

// NewTable returns a table persisted at path. The file is not touched
// until the first access.
func NewTable(path string) *Table {
	return &Table{path: path}
}

// Path returns the backing file path.
func (t *Table) Path() string {
	return t.path
}

// Load reads the whole table. A missing or empty file is an empty table.
func (t *Table) Load() (map[string]Price, error) {
	raw, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Price{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reagent table: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]Price{}, nil
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var entries map[string]fileEntry
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode reagent table: %w", err)
	}

	out := make(map[string]Price, len(entries))
	for name, e := range entries {
		price, err := decimal.NewFromString(e.PricePerUnit.String())
		if err != nil {
			return nil, &SchemaError{Path: name + ".price_per_unit", Message: err.Error()}
		}
		unit := PerMicroliter
		if e.Unit != "" {
			if unit, err = ParseUnit(e.Unit); err != nil {
				return nil, &SchemaError{Path: name + ".unit", Message: err.Error()}
			}
		}
		out[name] = Price{Name: name, PricePerUnit: price, Unit: unit}
	}
	return out, nil
}

// Save rewrites the whole table.
func (t *Table) Save(prices map[string]Price) error {
	entries := make(map[string]fileEntry, len(prices))
	for name, p := range prices {
		entries[name] = fileEntry{PricePerUnit: json.Number(p.PricePerUnit.String()), Unit: string(p.Unit)}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode reagent table: %w", err)
	}

	if dir := filepath.Dir(t.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create reagent dir: %w", err)
		}
	}
	if err := os.WriteFile(t.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write reagent table: %w", err)
	}
	return nil
}

// Get returns the price of name; ok is false for unknown reagents.
func (t *Table) Get(name string) (Price, bool, error) {
	prices, err := t.Load()
	if err != nil {
		return Price{}, false, err
	}
	p, ok := prices[name]
	return p, ok, nil
}

// Set adds or replaces the price of name.
func (t *Table) Set(name string, price decimal.Decimal, unit Unit) (Price, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Price{}, fmt.Errorf("%w: name required", ErrInvalidPrice)
	}
	if price.IsNegative() {
		return Price{}, fmt.Errorf("%w: price must be non-negative", ErrInvalidPrice)
	}
	if unit != PerMicroliter && unit != PerMilliliter {
		return Price{}, fmt.Errorf("%w: unit must be uL or mL", ErrInvalidPrice)
	}

	prices, err := t.Load()
	if err != nil {
		return Price{}, err
	}
	p := Price{Name: name, PricePerUnit: price, Unit: unit}
	prices[name] = p
	if err := t.Save(prices); err != nil {
		return Price{}, err
	}
	return p, nil
}

// List returns all prices sorted by name.
func (t *Table) List() ([]Price, error) {
	prices, err := t.Load()
	if err != nil {
		return nil, err
	}
	out := make([]Price, 0, len(prices))
	for _, p := range prices {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Cost prices volumeUL µL of name. ok is false when the reagent is unknown.
func (t *Table) Cost(name string, volumeUL float64) (decimal.Decimal, bool, error) {
	if math.IsNaN(volumeUL) || math.IsInf(volumeUL, 0) {
		return decimal.Zero, false, fmt.Errorf("%w: %v", ErrInvalidVolume, volumeUL)
	}
	p, ok, err := t.Get(name)
	if err != nil || !ok {
		return decimal.Zero, false, err
	}
	return p.Cost(volumeUL), true, nil
}

// Defaults is the starter price list written by Seed.
func Defaults() []Price {
	return []Price{
		{Name: "FBS", PricePerUnit: decimal.RequireFromString("0.85"), Unit: PerMilliliter},
		{Name: "PBS", PricePerUnit: decimal.RequireFromString("0.02"), Unit: PerMilliliter},
		{Name: "TE Buffer", PricePerUnit: decimal.RequireFromString("0.05"), Unit: PerMilliliter},
		{Name: "Trypsin", PricePerUnit: decimal.RequireFromString("0.12"), Unit: PerMilliliter},
	}
}

// Seed adds the default prices for reagents not already in the table.
// Existing prices are kept. It returns the names that were added.
func (t *Table) Seed() ([]string, error) {
	prices, err := t.Load()
	if err != nil {
		return nil, err
	}
	var added []string
	for _, p := range Defaults() {
		if _, ok := prices[p.Name]; ok {
			continue
		}
		prices[p.Name] = p
		added = append(added, p.Name)
	}
	if len(added) == 0 {
		return nil, nil
	}
	return added, t.Save(prices)
}
