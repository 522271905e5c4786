package history

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Entry is a record with its 1-based position in the full history.
// Positions are what Finalize takes, so filtered views keep them.
type Entry struct {
	Index  int `json:"index" yaml:"index"`
	Record `yaml:",inline"`
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	// Module matches records whose module contains this text (case-insensitive).
	Module string
	Status Status
}

// Apply numbers records and keeps those matching f.
func (f Filter) Apply(records []Record) []Entry {
	module := strings.ToLower(f.Module)
	out := make([]Entry, 0, len(records))
	for i, r := range records {
		if module != "" && !strings.Contains(strings.ToLower(r.Module), module) {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, Entry{Index: i + 1, Record: r})
	}
	return out
}

// Summary aggregates a history.
type Summary struct {
	Total     int             `json:"total"`
	Completed int             `json:"completed"`
	Pending   int             `json:"pending"`
	Spend     decimal.Decimal `json:"spend"`
	ByModule  map[string]int  `json:"by_module"`
}

// Summarize counts records by status and module and totals their
// estimated costs.
func Summarize(records []Record) Summary {
	s := Summary{ByModule: map[string]int{}}
	for _, r := range records {
		s.Total++
		switch r.Status {
		case StatusPending:
			s.Pending++
		default:
			s.Completed++
		}
		s.ByModule[r.Module]++
		if cost, ok := r.Cost(); ok {
			s.Spend = s.Spend.Add(cost)
		}
	}
	return s
}

// Cost returns the estimated cost recorded in the details, if any.
func (r Record) Cost() (decimal.Decimal, bool) {
	v, ok := r.Details[DetailEstimatedCost]
	if !ok || v == nil {
		return decimal.Zero, false
	}
	switch c := v.(type) {
	case string:
		d, err := decimal.NewFromString(c)
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(c.String())
		return d, err == nil
	}
	f, ok := toFloat(v)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

var csvHeader = []string{"index", "id", "timestamp", "module", "status", "summary", "estimated_cost", "completed_timestamp", "details"}

// WriteCSV writes one row per entry. Details are embedded as a JSON object
// with sorted keys.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, e := range entries {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("write csv: record %d: %w", e.Index, err)
		}
		cost := ""
		if c, ok := e.Cost(); ok {
			cost = c.StringFixed(2)
		}
		completed := ""
		if e.CompletedTimestamp != nil {
			completed = e.CompletedTimestamp.String()
		}
		row := []string{
			strconv.Itoa(e.Index),
			e.ID,
			e.Timestamp.String(),
			e.Module,
			string(e.Status),
			e.Summary,
			cost,
			completed,
			string(details),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteYAML writes the entries as a YAML sequence.
func WriteYAML(w io.Writer, entries []Entry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	return enc.Close()
}
