package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// JSONStore keeps the history as one JSON array in a file. Every call
// reads the whole file; every write rewrites it. There is no locking: the
// store is meant for a single user in a single process.
type JSONStore struct {
	path string
}

// NewJSONStore returns a store backed by path. A missing file is an empty
// history; the file is created on the first Append.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Append adds rec at the end of the file. Existing entries are written
// back as they were read.
func (s *JSONStore) Append(_ context.Context, rec Record) error {
	_, raw, err := s.load()
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	rec.normalize()
	entry, err := encodeEntry(rec)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if err := s.write(append(raw, entry)); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List returns every record in file order.
func (s *JSONStore) List(_ context.Context) ([]Record, error) {
	records, _, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// Finalize completes the pending record at the 1-based index and rewrites
// the file. Only the keys finalization owns are replaced in that entry.
func (s *JSONStore) Finalize(_ context.Context, index int, finalCount float64, at time.Time) (Record, error) {
	records, raw, err := s.load()
	if err != nil {
		return Record{}, fmt.Errorf("finalize history: %w", err)
	}
	if err := checkIndex(index, len(records)); err != nil {
		return Record{}, err
	}
	rec := records[index-1]
	if err := finalize(&rec, finalCount, at); err != nil {
		return Record{}, err
	}
	entry, err := patchEntry(raw[index-1], map[string]any{
		"status":              rec.Status,
		"completed_timestamp": rec.CompletedTimestamp,
		"details":             rec.Details,
	})
	if err != nil {
		return Record{}, fmt.Errorf("finalize history: %w", err)
	}
	raw[index-1] = entry
	if err := s.write(raw); err != nil {
		return Record{}, fmt.Errorf("finalize history: %w", err)
	}
	return rec, nil
}

// Close is a no-op; the file is not held open.
func (s *JSONStore) Close() error {
	return nil
}

// load decodes the file and also returns each entry's original bytes, so
// rewrites keep unknown keys and the original timestamp text.
func (s *JSONStore) load() ([]Record, []json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	records := make([]Record, len(raw))
	for i, entry := range raw {
		if err := json.Unmarshal(entry, &records[i]); err != nil {
			return nil, nil, fmt.Errorf("decode %s: entry %d: %w", s.path, i+1, err)
		}
		records[i].normalize()
	}
	return records, raw, nil
}

// patchEntry replaces keys in one encoded entry and leaves the rest alone.
func patchEntry(entry json.RawMessage, set map[string]any) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return nil, err
	}
	for k, v := range set {
		b, err := encodeEntry(v)
		if err != nil {
			return nil, err
		}
		fields[k] = b
	}
	return encodeEntry(fields)
}

// encodeEntry marshals v without HTML escaping, matching write.
func encodeEntry(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (s *JSONStore) write(entries []json.RawMessage) error {
	if entries == nil {
		entries = []json.RawMessage{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, buf.Bytes(), 0o644)
}
