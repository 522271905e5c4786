package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labcalc/internal/calc"
)

var (
	testT0 = time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	testT1 = time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
)

// backends runs fn against a fresh store of each kind.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	for _, backend := range []string{BackendJSON, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			s := createTestStore(t, backend)
			fn(t, s)
		})
	}
}

func createTestStore(t *testing.T, backend string) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history."+backend)
	s, err := Open(backend, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dilutionRecord() Record {
	return Record{
		ID:        "rec-1",
		Timestamp: At(testT0),
		Module:    ModuleDilution,
		Summary:   "C1V1 = C2V2 -> V1: 10 mL",
		Details:   map[string]any{"c1": 1.0, "v1": 10.0, DetailEstimatedCost: 0.5},
		Status:    StatusCompleted,
	}
}

func pendingGrowth() Record {
	return Record{
		ID:        "rec-2",
		Timestamp: At(testT0),
		Module:    ModuleMicrobiology,
		Summary:   "Growth experiment started (N0: 1000)",
		Details:   map[string]any{DetailInitialCount: 1000.0, DetailTimeElapsed: 120.0},
		Status:    StatusPending,
	}
}

func TestStore_EmptyHistory(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		records, err := s.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestStore_AppendAndList(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Append(ctx, dilutionRecord()))
		require.NoError(t, s.Append(ctx, pendingGrowth()))

		records, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "rec-1", records[0].ID)
		assert.Equal(t, ModuleDilution, records[0].Module)
		assert.Equal(t, StatusCompleted, records[0].Status)
		assert.True(t, records[0].Timestamp.Equal(testT0))
		assert.Equal(t, 10.0, records[0].Details["v1"])
		assert.Nil(t, records[0].CompletedTimestamp)

		assert.True(t, records[1].IsPendingGrowth())
	})
}

func TestStore_AppendDefaultsStatus(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := dilutionRecord()
		rec.Status = ""
		rec.Details = nil
		require.NoError(t, s.Append(ctx, rec))

		records, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, StatusCompleted, records[0].Status)
		assert.NotNil(t, records[0].Details)
	})
}

func TestStore_Finalize(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Append(ctx, dilutionRecord()))
		require.NoError(t, s.Append(ctx, pendingGrowth()))

		got, err := s.Finalize(ctx, 2, 8000, testT1)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, got.Status)
		require.NotNil(t, got.CompletedTimestamp)
		assert.True(t, got.CompletedTimestamp.Equal(testT1))

		records, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, records, 2)

		fin := records[1]
		assert.Equal(t, StatusCompleted, fin.Status)
		assert.Equal(t, "rec-2", fin.ID)
		assert.True(t, fin.Timestamp.Equal(testT0), "original timestamp kept")
		require.NotNil(t, fin.CompletedTimestamp)
		assert.True(t, fin.CompletedTimestamp.Equal(testT1))

		n, _ := fin.Number(DetailFinalCount)
		gens, _ := fin.Number(DetailGenerations)
		doubling, _ := fin.Number(DetailDoublingTime)
		n0, _ := fin.Number(DetailInitialCount)
		assert.Equal(t, 8000.0, n)
		assert.Equal(t, 1000.0, n0)
		assert.InDelta(t, 3.0, gens, 1e-9)
		assert.InDelta(t, 40.0, doubling, 1e-9)

		// the other record is untouched
		assert.Equal(t, dilutionRecord().Details, records[0].Details)
		assert.Nil(t, records[0].CompletedTimestamp)
	})
}

func TestStore_FinalizeNotPending(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Append(ctx, dilutionRecord()))
		require.NoError(t, s.Append(ctx, pendingGrowth()))

		_, err := s.Finalize(ctx, 1, 8000, testT1)
		assert.ErrorIs(t, err, ErrNotPending)

		_, err = s.Finalize(ctx, 2, 8000, testT1)
		require.NoError(t, err)

		// a completed experiment cannot be finalized twice
		_, err = s.Finalize(ctx, 2, 9000, testT1)
		assert.ErrorIs(t, err, ErrNotPending)
	})
}

func TestStore_FinalizeNotFound(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Append(ctx, pendingGrowth()))

		for _, index := range []int{0, -1, 2, 99} {
			_, err := s.Finalize(ctx, index, 8000, testT1)
			assert.ErrorIs(t, err, ErrNotFound, "index %d", index)
		}
	})
}

func TestStore_FinalizeNoGrowthLeavesPending(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Append(ctx, pendingGrowth()))

		_, err := s.Finalize(ctx, 1, 500, testT1)
		require.Error(t, err)
		assert.True(t, calc.IsDomain(err))

		records, err := s.List(ctx)
		require.NoError(t, err)
		assert.True(t, records[0].IsPendingGrowth())
	})
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("postgres", "x")
	assert.Error(t, err)
}

func TestOpenSQLite_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	for i := 0; i < 3; i++ {
		s, err := OpenSQLite(path)
		require.NoError(t, err, "OpenSQLite() iteration %d", i)
		require.NoError(t, s.Append(context.Background(), dilutionRecord()))
		require.NoError(t, s.Close())
	}

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	records, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestJSONStore_ReadsLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab_history.json")
	legacy := `[
  {
    "timestamp": "2024-03-01T14:22:05.123456",
    "module": "Microbiology",
    "summary": "Growth experiment started (N0: 1000)",
    "details": {"N0": 1000, "time_elapsed": 120},
    "status": "pending"
  },
  {
    "timestamp": "2024-03-01T15:00:00",
    "module": "Biochemistry - Molarity",
    "summary": "Molarity",
    "details": {"mass": "5.0"},
    "extra": {"instrument": "balance-2"}
  }
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s := NewJSONStore(path)
	records, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 2024, records[0].Timestamp.Year())
	assert.Equal(t, 123456000, records[0].Timestamp.Nanosecond())
	assert.True(t, records[0].IsPendingGrowth())
	assert.Equal(t, StatusCompleted, records[1].Status, "missing status reads as completed")

	mass, ok := records[1].Number("mass")
	assert.True(t, ok)
	assert.Equal(t, 5.0, mass)

	rec, err := s.Finalize(context.Background(), 1, 4000, testT1)
	require.NoError(t, err)
	gens, _ := rec.Number(DetailGenerations)
	assert.InDelta(t, 2.0, gens, 1e-9)

	require.NoError(t, s.Append(context.Background(), dilutionRecord()))

	var before, after []map[string]any
	require.NoError(t, json.Unmarshal([]byte(legacy), &before))
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(onDisk, &after))
	require.Len(t, after, 3)

	// the untouched record is written back as it was read
	assert.Equal(t, before[1], after[1])
	assert.NotContains(t, after[1], "status")

	// the finalized record keeps its original timestamp text
	assert.Equal(t, "2024-03-01T14:22:05.123456", after[0]["timestamp"])
	assert.Equal(t, "completed", after[0]["status"])
	assert.Contains(t, after[0], "completed_timestamp")
}

func TestJSONStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab_history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewJSONStore(path)
	_, err := s.List(context.Background())
	assert.Error(t, err)

	// the file is not overwritten
	assert.Error(t, s.Append(context.Background(), dilutionRecord()))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw))
}

func TestJSONStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab_history.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	records, err := NewJSONStore(path).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJSONStore_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "history.json")
	s := NewJSONStore(path)
	require.NoError(t, s.Append(context.Background(), dilutionRecord()))
	assert.FileExists(t, path)
	assert.Equal(t, path, s.Path())
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2024-03-01T14:22:05Z", false},
		{"2024-03-01T14:22:05.5+02:00", false},
		{"2024-03-01T14:22:05.123456", false},
		{"2024-03-01T14:22:05", false},
		{"2024-03-01 14:22:05", false},
		{"yesterday", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2024, ts.Year())
			assert.Equal(t, 22, ts.Minute())
		})
	}

	ts, err := ParseTimestamp("")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
	assert.Equal(t, "", ts.String())
}
