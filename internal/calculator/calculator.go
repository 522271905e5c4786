package calculator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/history"
)

// DefaultDiluent is the reagent priced for diluent and TE additions when
// none is configured.
const DefaultDiluent = "TE Buffer"

// Field describes one input of a calculator.
type Field struct {
	// Name is the flag, form and JSON key.
	Name string

	// Label is the prompt shown in the menu and the form.
	Label string

	// Default is used when the input is blank. An empty Default makes the
	// field required unless Optional is set.
	Default string

	// Text marks unit and reagent names; all other fields are numbers.
	Text bool

	Optional bool
}

// Inputs are raw user entries keyed by field name.
type Inputs map[string]string

// InputsFrom converts decoded JSON or YAML scalars (strings, numbers, null)
// to raw entries.
func InputsFrom(raw map[string]any) (Inputs, error) {
	in := make(Inputs, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case string:
			in[k] = x
		case int:
			in[k] = strconv.Itoa(x)
		case float64:
			in[k] = strconv.FormatFloat(x, 'g', -1, 64)
		case json.Number:
			in[k] = x.String()
		case nil:
			in[k] = ""
		default:
			return nil, &calc.Error{Kind: calc.KindInvalidInput, Field: k, Message: fmt.Sprintf("unsupported value %v", v)}
		}
	}
	return in, nil
}

// Pricer prices a volume of a named reagent.
type Pricer interface {
	Cost(name string, volumeUL float64) (decimal.Decimal, bool, error)
}

// Env carries what a calculation needs beyond its inputs.
type Env struct {
	// Prices is optional; without it no costs are estimated.
	Prices Pricer

	// Diluent is the reagent priced when the inputs name none.
	Diluent string
}

func (e Env) diluent() string {
	if e.Diluent != "" {
		return e.Diluent
	}
	return DefaultDiluent
}

// Outcome is a finished calculation, ready to print or save.
type Outcome struct {
	Calculator string         `json:"calculator"`
	Module     string         `json:"module"`
	Summary    string         `json:"summary"`
	Status     history.Status `json:"status"`
	Details    map[string]any `json:"details"`
	Result     any            `json:"result,omitempty"`

	// Notes are warnings worth showing next to the result.
	Notes []string `json:"notes,omitempty"`

	// Lines is the human-readable report.
	Lines []string `json:"-"`
}

// Record converts the outcome into a history record.
func (o Outcome) Record(id string, at time.Time) history.Record {
	details := make(map[string]any, len(o.Details))
	for k, v := range o.Details {
		details[k] = v
	}
	return history.Record{
		ID:        id,
		Timestamp: history.At(at),
		Module:    o.Module,
		Summary:   o.Summary,
		Details:   details,
		Status:    o.Status,
	}
}

// Text renders the report followed by the notes.
func (o Outcome) Text() string {
	var b strings.Builder
	for _, l := range o.Lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	for _, n := range o.Notes {
		b.WriteString("! ")
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return b.String()
}

// Calculator is one entry of the registry.
type Calculator struct {
	Name   string
	Title  string
	Group  string
	Module string
	Fields []Field

	run func(env Env, v values) (Outcome, error)
}

// Field returns the named field.
func (c *Calculator) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Run validates in against the fields and computes the outcome. Errors are
// *calc.Error values.
func (c *Calculator) Run(env Env, in Inputs) (Outcome, error) {
	v, err := c.resolve(in)
	if err != nil {
		return Outcome{}, err
	}
	out, err := c.run(env, v)
	if err != nil {
		return Outcome{}, err
	}
	out.Calculator = c.Name
	if out.Module == "" {
		out.Module = c.Module
	}
	if out.Status == "" {
		out.Status = history.StatusCompleted
	}
	return out, nil
}

func (c *Calculator) resolve(in Inputs) (values, error) {
	for name := range in {
		if _, ok := c.Field(name); !ok {
			return nil, &calc.Error{Kind: calc.KindInvalidInput, Field: name, Message: fmt.Sprintf("unknown input for %s", c.Name)}
		}
	}
	v := values{}
	for _, f := range c.Fields {
		raw := strings.TrimSpace(in[f.Name])
		if raw == "" {
			raw = f.Default
		}
		if raw == "" {
			if f.Optional {
				continue
			}
			return nil, &calc.Error{Kind: calc.KindInvalidInput, Field: f.Name, Message: "is required"}
		}
		if f.Text {
			v[f.Name] = raw
			continue
		}
		n, err := calc.ParseNumber(raw)
		if err != nil {
			var ce *calc.Error
			if errors.As(err, &ce) {
				ce.Field = f.Name
			}
			return nil, err
		}
		v[f.Name] = n
	}
	return v, nil
}

// values are resolved inputs: float64 for numbers, string for text.
type values map[string]any

func (v values) num(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

func (v values) text(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v values) has(name string) bool {
	_, ok := v[name]
	return ok
}

// decode fills a calc input struct whose JSON tags match the field names.
func (v values) decode(dst any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

var registry = map[string]*Calculator{}

func register(c *Calculator) {
	if _, dup := registry[c.Name]; dup {
		panic("calculator: duplicate " + c.Name)
	}
	registry[c.Name] = c
}

// Lookup returns the calculator registered under name.
func Lookup(name string) (*Calculator, bool) {
	c, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Groups in menu order.
const (
	GroupBiochemistry   = "Biochemistry"
	GroupTissueCulture  = "Tissue Culture"
	GroupMolecular      = "Molecular/Forensics"
	GroupMicrobiology   = "Microbiology"
	GroupCentrifugation = "Centrifugation"
)

var groupOrder = []string{GroupBiochemistry, GroupTissueCulture, GroupMolecular, GroupMicrobiology, GroupCentrifugation}

// All returns every calculator, ordered by group then registration name.
func All() []*Calculator {
	out := make([]*Calculator, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	rank := func(g string) int {
		for i, name := range groupOrder {
			if name == g {
				return i
			}
		}
		return len(groupOrder)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank(out[i].Group), rank(out[j].Group)
		if ri != rj {
			return ri < rj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Groups returns the group names in menu order.
func Groups() []string {
	return append([]string(nil), groupOrder...)
}

// InGroup returns the calculators of one group.
func InGroup(group string) []*Calculator {
	var out []*Calculator
	for _, c := range All() {
		if c.Group == group {
			out = append(out, c)
		}
	}
	return out
}

// estimate prices volumeUL of reagent. A missing pricer, an unknown
// reagent or a failing price table yield ok=false; the latter adds a note.
func estimate(env Env, reagent string, volumeUL float64, notes *[]string) (decimal.Decimal, bool) {
	if env.Prices == nil || reagent == "" {
		return decimal.Zero, false
	}
	if math.IsNaN(volumeUL) || math.IsInf(volumeUL, 0) {
		*notes = append(*notes, fmt.Sprintf("cost estimate unavailable: %s volume is out of range", reagent))
		return decimal.Zero, false
	}
	cost, ok, err := env.Prices.Cost(reagent, volumeUL)
	if err != nil {
		*notes = append(*notes, fmt.Sprintf("cost estimate unavailable: %v", err))
		return decimal.Zero, false
	}
	return cost, ok
}

// costDetail is the value stored under estimated_cost.
func costDetail(cost decimal.Decimal) float64 {
	return cost.Round(4).InexactFloat64()
}
