package protocol

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labcalc/internal/calc"
	"github.com/roach88/labcalc/internal/config"
	"github.com/roach88/labcalc/internal/history"
	"github.com/roach88/labcalc/internal/session"
	"github.com/roach88/labcalc/internal/testutil"
)

func createTestSession(t *testing.T) *session.Session {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		History:  config.HistoryConfig{Path: filepath.Join(dir, "lab_history.json"), Backend: history.BackendJSON},
		Reagents: config.ReagentsConfig{Path: filepath.Join(dir, "reagents.json")},
		Timer:    config.TimerConfig{Tick: time.Second},
		Defaults: config.DefaultsConfig{DiluentReagent: "TE Buffer"},
	}
	s, err := session.Open(cfg,
		session.WithClock(testutil.NewStepClock(testutil.Epoch, time.Minute).Now),
		session.WithIDs(testutil.NewSequentialIDs("")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRun_Golden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	p, err := Load(filepath.Join("testdata", "bench_day.yaml"))
	require.NoError(t, err)

	sess := createTestSession(t)
	report, err := Run(context.Background(), sess, p)
	require.NoError(t, err)

	assert.Len(t, report.Steps, 5)
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 1, report.Saved())
	assert.Equal(t, calc.KindDomain, report.Steps[3].ErrorKind)

	var buf bytes.Buffer
	require.NoError(t, report.WriteText(&buf))
	g.Assert(t, "bench_day", buf.Bytes())

	records, err := sess.History.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsPendingGrowth())
	assert.Len(t, sess.Unsaved(), 3, "unsaved results stay in the session log")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "steps:\n  - calculator: dilute\n", "name is required"},
		{"no steps", "name: x\n", "steps list is required"},
		{"unknown calculator", "name: x\nsteps:\n  - calculator: titrate\n", `unknown calculator "titrate"`},
		{"missing calculator", "name: x\nsteps:\n  - inputs: {c1: 1}\n", "step 1: calculator is required"},
		{"typo in key", "name: x\nsteps:\n  - calculator: dilute\n    input: {c1: 1}\n", "failed to parse YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestStep_Inputs(t *testing.T) {
	s := Step{Inputs: map[string]any{"a": 3, "b": 0.25, "c": "ng/uL", "d": nil}}
	in, err := s.inputs()
	require.NoError(t, err)
	assert.Equal(t, "3", in["a"])
	assert.Equal(t, "0.25", in["b"])
	assert.Equal(t, "ng/uL", in["c"])
	assert.Equal(t, "", in["d"])

	_, err = Step{Inputs: map[string]any{"a": true}}.inputs()
	assert.True(t, calc.IsInvalidInput(err))
}

func TestRun_BadInputDoesNotStopRun(t *testing.T) {
	p, err := Parse([]byte(`
name: typos
steps:
  - calculator: rcf
    inputs: {radius_cm: 10, speed: 3000}
  - calculator: rcf
    inputs: {radius_cm: 10, rpm: 3000}
    save: true
`))
	require.NoError(t, err)

	sess := createTestSession(t)
	report, err := Run(context.Background(), sess, p)
	require.NoError(t, err)

	require.Len(t, report.Steps, 2)
	assert.False(t, report.Steps[0].OK())
	assert.Equal(t, calc.KindInvalidInput, report.Steps[0].ErrorKind)
	assert.True(t, report.Steps[1].OK())
	assert.Equal(t, "rec-0001", report.Steps[1].SavedID)
}

func TestRun_CanceledContext(t *testing.T) {
	p, err := Parse([]byte("name: x\nsteps:\n  - calculator: rcf\n    inputs: {radius_cm: 10, rpm: 3000}\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := Run(ctx, createTestSession(t), p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Steps)
}
