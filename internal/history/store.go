package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/labcalc/internal/calc"
)

// Errors returned by Finalize.
var (
	ErrNotFound   = errors.New("history record not found")
	ErrNotPending = errors.New("not a pending Microbiology experiment")
)

// Store is an append-only list of records with a single update path:
// finalizing a pending Microbiology experiment.
type Store interface {
	// Append adds rec at the end of the history.
	Append(ctx context.Context, rec Record) error

	// List returns every record in insertion order.
	List(ctx context.Context) ([]Record, error)

	// Finalize completes the pending Microbiology record at the 1-based
	// index with its final count, stamped at the given time. Every other
	// record is left unchanged.
	Finalize(ctx context.Context, index int, finalCount float64, at time.Time) (Record, error)

	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONStore(path), nil
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown history backend %q (want %s or %s)", backend, BackendJSON, BackendSQLite)
	}
}

// finalize applies the pending → completed transition to rec in place.
// Generations and doubling time are recomputed from the stored N0 and
// time_elapsed.
func finalize(rec *Record, finalCount float64, at time.Time) error {
	if !rec.IsPendingGrowth() {
		return ErrNotPending
	}
	n0, ok := rec.Number(DetailInitialCount)
	if !ok {
		return fmt.Errorf("pending record has no %s: %w", DetailInitialCount, ErrNotPending)
	}
	elapsed, ok := rec.Number(DetailTimeElapsed)
	if !ok {
		return fmt.Errorf("pending record has no %s: %w", DetailTimeElapsed, ErrNotPending)
	}

	res, err := calc.GenerationTime(calc.GrowthInput{InitialCount: n0, FinalCount: finalCount, Elapsed: elapsed})
	if err != nil {
		return err
	}

	details := make(map[string]any, len(rec.Details)+3)
	for k, v := range rec.Details {
		details[k] = v
	}
	details[DetailFinalCount] = finalCount
	details[DetailGenerations] = res.Generations
	details[DetailDoublingTime] = res.DoublingTime

	rec.Details = details
	rec.Status = StatusCompleted
	completed := At(at)
	rec.CompletedTimestamp = &completed
	return nil
}

func checkIndex(index, n int) error {
	if index < 1 || index > n {
		return fmt.Errorf("%w: index %d (history has %d records)", ErrNotFound, index, n)
	}
	return nil
}
