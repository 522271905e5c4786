// Package session holds the state one user works against: configuration,
// the history store, the reagent table and the results computed so far.
//
// A Session is created once per process (one command, one menu run or one
// web server) and passed explicitly to every handler.
package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roach88/labcalc/internal/calculator"
	"github.com/roach88/labcalc/internal/config"
	"github.com/roach88/labcalc/internal/history"
	"github.com/roach88/labcalc/internal/reagent"
)

// IDGenerator assigns record ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 record ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Result is one calculation of this session.
type Result struct {
	Outcome calculator.Outcome
	At      time.Time

	// Saved is the history record once the result has been saved.
	Saved *history.Record
}

// Session is the explicit context object passed to handlers.
type Session struct {
	Config   *config.Config
	History  history.Store
	Reagents *reagent.Table
	Log      zerolog.Logger
	Now      func() time.Time
	IDs      IDGenerator

	mu      sync.Mutex
	results []*Result
}

// Option customizes a Session.
type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.Now = now }
}

// WithIDs replaces the UUIDv7 generator.
func WithIDs(ids IDGenerator) Option {
	return func(s *Session) { s.IDs = ids }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.Log = log }
}

// WithHistory uses store instead of opening the configured one.
func WithHistory(store history.Store) Option {
	return func(s *Session) { s.History = store }
}

// Open builds a session from cfg, opening the configured history store.
func Open(cfg *config.Config, opts ...Option) (*Session, error) {
	s := &Session{
		Config:   cfg,
		Reagents: reagent.NewTable(cfg.Reagents.Path),
		Log:      zerolog.Nop(),
		Now:      time.Now,
		IDs:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.History == nil {
		store, err := history.Open(cfg.History.Backend, cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		s.History = store
	}
	s.Log.Debug().
		Str("history", cfg.History.Path).
		Str("backend", cfg.History.Backend).
		Str("reagents", cfg.Reagents.Path).
		Msg("session opened")
	return s, nil
}

// NewLogger returns the console logger used by the command line: human
// readable, written to w (stderr), at the configured level.
func NewLogger(w io.Writer, level string, verbose bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}

// Env is the calculation environment: reagent prices and the default
// diluent.
func (s *Session) Env() calculator.Env {
	return calculator.Env{Prices: s.Reagents, Diluent: s.Config.Defaults.DiluentReagent}
}

// Calculate runs the named calculator and remembers the outcome as an
// unsaved result of this session.
func (s *Session) Calculate(name string, in calculator.Inputs) (*Result, error) {
	c, ok := calculator.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown calculator %q", name)
	}
	out, err := c.Run(s.Env(), in)
	if err != nil {
		s.Log.Debug().Err(err).Str("calculator", name).Msg("calculation rejected")
		return nil, err
	}
	s.Log.Debug().Str("calculator", name).Str("summary", out.Summary).Msg("calculated")
	return s.Remember(out), nil
}

// Remember adds an outcome to the session log.
func (s *Session) Remember(out calculator.Outcome) *Result {
	r := &Result{Outcome: out, At: s.Now()}
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
	return r
}

// Unsaved returns the results not yet saved to history.
func (s *Session) Unsaved() []*Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Result
	for _, r := range s.results {
		if r.Saved == nil {
			out = append(out, r)
		}
	}
	return out
}

// Save appends r to the history. Saving a result twice is a no-op that
// returns the first record.
func (s *Session) Save(ctx context.Context, r *Result) (history.Record, error) {
	if r.Saved != nil {
		return *r.Saved, nil
	}
	rec := r.Outcome.Record(s.IDs.Generate(), r.At)
	if err := s.History.Append(ctx, rec); err != nil {
		return history.Record{}, err
	}
	s.mu.Lock()
	r.Saved = &rec
	s.mu.Unlock()
	s.Log.Info().Str("id", rec.ID).Str("module", rec.Module).Str("status", string(rec.Status)).Msg("saved to lab history")
	return rec, nil
}

// SaveUnsaved saves every unsaved result in order and returns how many
// were saved. It stops at the first failure.
func (s *Session) SaveUnsaved(ctx context.Context) (int, error) {
	n := 0
	for _, r := range s.Unsaved() {
		if _, err := s.Save(ctx, r); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Finalize completes the pending experiment at the 1-based index, stamped
// with the session clock.
func (s *Session) Finalize(ctx context.Context, index int, finalCount float64) (history.Record, error) {
	rec, err := s.History.Finalize(ctx, index, finalCount, s.Now())
	if err != nil {
		return history.Record{}, err
	}
	s.Log.Info().Int("index", index).Float64("N", finalCount).Msg("finalized experiment")
	return rec, nil
}

// Close releases the history store.
func (s *Session) Close() error {
	if s.History == nil {
		return nil
	}
	return s.History.Close()
}
