package history

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a record.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
)

// Module names recorded by the calculators.
const (
	ModuleMolarity       = "Biochemistry - Molarity"
	ModuleDilution       = "Biochemistry - Dilution"
	ModuleSerialDilution = "Biochemistry - Serial Dilution"
	ModuleConversion     = "Biochemistry - Conversion"
	ModuleTissueCulture  = "Tissue Culture"
	ModuleDNA            = "Molecular - DNA Normalization"
	ModuleForensicDNA    = "Molecular - Forensic DNA Normalization"
	ModuleMicrobiology   = "Microbiology"
	ModuleCentrifugation = "Centrifugation"
)

// Detail keys shared between calculators, the finalize path and exports.
const (
	DetailInitialCount  = "N0"
	DetailFinalCount    = "N"
	DetailTimeElapsed   = "time_elapsed"
	DetailGenerations   = "generations"
	DetailDoublingTime  = "doubling_time"
	DetailEstimatedCost = "estimated_cost"
)

// Record is one saved calculation.
//
// Details values are numbers, strings, booleans or null; after a round
// trip through a store every number is a float64.
type Record struct {
	ID                 string         `json:"id,omitempty" yaml:"id,omitempty"`
	Timestamp          Timestamp      `json:"timestamp" yaml:"timestamp"`
	Module             string         `json:"module" yaml:"module"`
	Summary            string         `json:"summary" yaml:"summary"`
	Details            map[string]any `json:"details" yaml:"details"`
	Status             Status         `json:"status" yaml:"status"`
	CompletedTimestamp *Timestamp     `json:"completed_timestamp,omitempty" yaml:"completed_timestamp,omitempty"`
}

// IsPendingGrowth reports whether the record is a Microbiology experiment
// still waiting for its final count.
func (r Record) IsPendingGrowth() bool {
	return r.Module == ModuleMicrobiology && r.Status == StatusPending
}

// Number reads a numeric detail. Numbers may be float64 (decoded JSON),
// json.Number, any Go integer, or a numeric string (older files).
func (r Record) Number(key string) (float64, bool) {
	v, ok := r.Details[key]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// normalize fills defaults for records written by older versions.
func (r *Record) normalize() {
	if r.Status == "" {
		r.Status = StatusCompleted
	}
	if r.Details == nil {
		r.Details = map[string]any{}
	}
}

// Timestamp is a time that also reads the offset-less ISO-8601 form
// ("2024-03-01T14:22:05.123456") found in older history files.
type Timestamp struct {
	time.Time
}

// At wraps t.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses any of the accepted layouts. Offset-less values
// are read as local time.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalYAML() (any, error) {
	return t.String(), nil
}
