// Package protocol runs batches of calculations described in YAML files.
//
// A protocol is a bench recipe: an ordered list of calculator steps with
// their inputs, each optionally saved to the lab history.
//
//	name: Plate prep
//	description: Dilute stock and seed two flasks
//	steps:
//	  - calculator: dilute
//	    inputs: {c1: 1, c2: 0.1, v2: 50}
//	  - calculator: culture
//	    label: Flask A
//	    inputs: {cells_counted: 212, seeding_density: 1e5}
//	    save: true
//
// A failing step is reported and the run continues with the next one.
package protocol

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/calculator"
	"github.com/roach88/labcalc/internal/history"
	"github.com/roach88/labcalc/internal/session"
)

// Protocol is a named list of steps.
type Protocol struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Step is one calculation.
type Step struct {
	// Calculator is a registered calculator name (dilute, serial, ...).
	Calculator string `yaml:"calculator"`

	// Label is shown in the report instead of the calculator title.
	Label string `yaml:"label,omitempty"`

	// Inputs are keyed by field name. Numbers may be written as YAML
	// numbers or strings.
	Inputs map[string]any `yaml:"inputs"`

	// Save appends the result to the lab history.
	Save bool `yaml:"save,omitempty"`
}

// Load reads and validates a protocol file. Unknown keys are rejected so
// typos such as "input:" fail loudly.
func Load(path string) (*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protocol file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates protocol YAML.
func Parse(data []byte) (*Protocol, error) {
	var p Protocol
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid protocol: %w", err)
	}
	return &p, nil
}

func (p *Protocol) validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, s := range p.Steps {
		if s.Calculator == "" {
			return fmt.Errorf("step %d: calculator is required", i+1)
		}
		if _, ok := calculator.Lookup(s.Calculator); !ok {
			return fmt.Errorf("step %d: unknown calculator %q", i+1, s.Calculator)
		}
	}
	return nil
}

// inputs converts YAML scalars to the raw text the calculators parse.
func (s Step) inputs() (calculator.Inputs, error) {
	return calculator.InputsFrom(s.Inputs)
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index      int                 `json:"index"`
	Calculator string              `json:"calculator"`
	Label      string              `json:"label"`
	Outcome    *calculator.Outcome `json:"outcome,omitempty"`
	ErrorKind  calc.ErrorKind      `json:"error_kind,omitempty"`
	Error      string              `json:"error,omitempty"`
	SavedID    string              `json:"saved_id,omitempty"`
}

// OK reports whether the step produced a result.
func (r StepResult) OK() bool {
	return r.Error == ""
}

// Report collects the step results of one run.
type Report struct {
	Protocol    string       `json:"protocol"`
	Description string       `json:"description,omitempty"`
	Steps       []StepResult `json:"steps"`
}

// Failed counts steps that returned an error.
func (r Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.OK() {
			n++
		}
	}
	return n
}

// Saved counts steps appended to history.
func (r Report) Saved() int {
	n := 0
	for _, s := range r.Steps {
		if s.SavedID != "" {
			n++
		}
	}
	return n
}

// Run executes every step against the session. Calculation errors are
// recorded per step; only a history write failure aborts the run.
func Run(ctx context.Context, sess *session.Session, p *Protocol) (*Report, error) {
	report := &Report{Protocol: p.Name, Description: p.Description}
	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := StepResult{Index: i + 1, Calculator: step.Calculator, Label: step.Label}
		if c, ok := calculator.Lookup(step.Calculator); ok && res.Label == "" {
			res.Label = c.Title
		}

		in, err := step.inputs()
		var r *session.Result
		if err == nil {
			r, err = sess.Calculate(step.Calculator, in)
		}
		if err != nil {
			res.ErrorKind = calc.KindOf(err)
			res.Error = err.Error()
			sess.Log.Warn().Int("step", res.Index).Err(err).Msg("protocol step failed")
			report.Steps = append(report.Steps, res)
			continue
		}
		res.Outcome = &r.Outcome

		if step.Save {
			var rec history.Record
			rec, err = sess.Save(ctx, r)
			if err != nil {
				report.Steps = append(report.Steps, res)
				return report, fmt.Errorf("step %d: %w", res.Index, err)
			}
			res.SavedID = rec.ID
		}
		report.Steps = append(report.Steps, res)
	}
	return report, nil
}

// WriteText renders the report for the terminal.
func (r Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Protocol: %s\n", r.Protocol)
	if r.Description != "" {
		fmt.Fprintf(&b, "%s\n", r.Description)
	}
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "\n[%d] %s (%s)\n", s.Index, s.Label, s.Calculator)
		if !s.OK() {
			kind := s.ErrorKind
			if kind == "" {
				kind = "error"
			}
			fmt.Fprintf(&b, "    FAILED %s: %s\n", kind, s.Error)
			continue
		}
		for _, line := range s.Outcome.Lines {
			if line == "" {
				b.WriteString("\n")
				continue
			}
			fmt.Fprintf(&b, "    %s\n", line)
		}
		for _, note := range s.Outcome.Notes {
			fmt.Fprintf(&b, "    ! %s\n", note)
		}
		if s.SavedID != "" {
			fmt.Fprintf(&b, "    saved as %s (%s)\n", s.SavedID, s.Outcome.Status)
		}
	}
	fmt.Fprintf(&b, "\n%d steps: %d ok, %d failed, %d saved\n",
		len(r.Steps), len(r.Steps)-r.Failed(), r.Failed(), r.Saved())
	_, err := io.WriteString(w, b.String())
	return err
}
