package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labcalc/internal/config"
	"github.com/roach88/labcalc/internal/history"
	"github.com/roach88/labcalc/internal/session"
	"github.com/roach88/labcalc/internal/testutil"
)

func createMenuSession(t *testing.T) *session.Session {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		History:  config.HistoryConfig{Path: filepath.Join(dir, "lab_history.json"), Backend: history.BackendJSON},
		Reagents: config.ReagentsConfig{Path: filepath.Join(dir, "reagents.json")},
		Timer:    config.TimerConfig{Tick: 10 * time.Millisecond},
		Log:      config.LogConfig{Level: "info"},
	}
	sess, err := session.Open(cfg,
		session.WithClock(testutil.NewStepClock(testutil.Epoch, time.Minute).Now),
		session.WithIDs(testutil.NewSequentialIDs("")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

// runMenu feeds script to a menu, one answer per line.
func runMenu(t *testing.T, sess *session.Session, script ...string) string {
	t.Helper()
	out := &bytes.Buffer{}
	in := strings.NewReader(strings.Join(script, "\n") + "\n")
	require.NoError(t, NewMenu(sess, in, out).Run(context.Background()))
	return out.String()
}

func listHistory(t *testing.T, sess *session.Session) []history.Record {
	t.Helper()
	records, err := sess.History.List(context.Background())
	require.NoError(t, err)
	return records
}

func TestMenu_MainMenu(t *testing.T) {
	sess := createMenuSession(t)
	out := runMenu(t, sess, "9")

	assert.Contains(t, out, "labcalc - Main Menu")
	for _, item := range []string{"1. Biochemistry", "5. Centrifugation", "6. View Lab History", "7. Settings", "8. Timer", "9. Exit"} {
		assert.Contains(t, out, item)
	}
	assert.Contains(t, out, "Goodbye!")
}

func TestMenu_InvalidChoiceThenEOF(t *testing.T) {
	sess := createMenuSession(t)
	out := runMenu(t, sess, "42")

	assert.Contains(t, out, "Invalid choice - select 1-9.")
	assert.Contains(t, out, "Goodbye!")
}

func TestMenu_CalculateAndSave(t *testing.T) {
	sess := createMenuSession(t)
	out := runMenu(t, sess,
		"5",
		"10", "3000", "", // radius, rpm, blank rcf
		"y",
		"9",
	)

	assert.Contains(t, out, "RCF / RPM")
	assert.Contains(t, out, "✓ Saved to "+sess.Config.History.Path)
	assert.NotContains(t, out, "unsaved result")

	records := listHistory(t, sess)
	require.Len(t, records, 1)
	assert.Equal(t, history.ModuleCentrifugation, records[0].Module)
}

func TestMenu_ErrorKeepsMenuRunning(t *testing.T) {
	sess := createMenuSession(t)
	out := runMenu(t, sess, "5", "-1", "3000", "", "9")

	assert.Contains(t, out, "✗ Error: radius_cm: values must be non-negative")
	assert.Contains(t, out, "Goodbye!")
	assert.Empty(t, listHistory(t, sess))
}

func TestMenu_SaveUnsavedOnExit(t *testing.T) {
	sess := createMenuSession(t)
	out := runMenu(t, sess,
		"1", "2",
		"1", "", "0.1", "", "50", "",
		"n",
		"4",
		"9",
		"y",
	)

	assert.Contains(t, out, "Not saved.")
	assert.Contains(t, out, "You have 1 unsaved result(s) from this session.")
	assert.Contains(t, out, "✓ Saved 1 result(s)")

	records := listHistory(t, sess)
	require.Len(t, records, 1)
	assert.Equal(t, history.ModuleDilution, records[0].Module)
}

func TestMenu_DeclineSaveOnExit(t *testing.T) {
	sess := createMenuSession(t)
	runMenu(t, sess, "5", "10", "3000", "", "n", "9", "n")
	assert.Empty(t, listHistory(t, sess))
}

func TestMenu_FinalizePendingGrowth(t *testing.T) {
	sess := createMenuSession(t)
	out := runMenu(t, sess,
		"4", // Microbiology has a single calculator
		"1000", "", "120",
		"y",
		"6", "1", "16000",
		"9",
	)

	assert.Contains(t, out, "as pending. Finalize it from View Lab History once counted.")
	assert.Contains(t, out, "LAB HISTORY")
	assert.Contains(t, out, "[pending]")
	assert.Contains(t, out, "✓ Pending experiment finalized and saved.")
	assert.Contains(t, out, "Generations (n): 4.0000")
	assert.Contains(t, out, "Doubling time: 30.0000")

	records := listHistory(t, sess)
	require.Len(t, records, 1)
	assert.Equal(t, history.StatusCompleted, records[0].Status)
}

func TestMenu_FinalizeRejectsBadCount(t *testing.T) {
	sess := createMenuSession(t)
	out := runMenu(t, sess,
		"4", "1000", "", "120", "y",
		"6", "1", "NaN",
		"6", "1", "-5",
		"9",
	)

	assert.Contains(t, out, "Error: invalid input: please enter a valid number")
	assert.Contains(t, out, "Error: values must be non-negative")
	assert.NotContains(t, out, "Pending experiment finalized")

	records := listHistory(t, sess)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsPendingGrowth())
}

func TestMenu_HistoryChoices(t *testing.T) {
	sess := createMenuSession(t)
	out := runMenu(t, sess, "6", "9")
	assert.Contains(t, out, "No history found.")

	runMenu(t, sess, "5", "10", "3000", "", "y", "9")

	out = runMenu(t, sess, "6", "", "6", "7", "6", "1", "9")
	assert.Contains(t, out, "Total Project Spend (from history): $0.00")
	assert.Contains(t, out, "Invalid selection.")
	assert.Contains(t, out, "Not a pending Microbiology experiment.")
}

func TestMenu_Settings(t *testing.T) {
	sess := createMenuSession(t)
	out := runMenu(t, sess,
		"7",
		"1", "TE Buffer", "0.05", "mL",
		"1", "Bad", "cheap", "",
		"3",
		"9",
	)

	assert.Contains(t, out, "No reagents configured yet.")
	assert.Contains(t, out, "✓ Saved price for TE Buffer.")
	assert.Contains(t, out, "  - TE Buffer: $0.05 per mL")
	assert.Contains(t, out, "Error: invalid input: please enter a valid number")

	_, ok, err := sess.Reagents.Get("TE Buffer")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMenu_Timer(t *testing.T) {
	sess := createMenuSession(t)
	out := runMenu(t, sess, "8", "30ms", "9")

	assert.Contains(t, out, "Time remaining: 30ms")
	assert.Contains(t, out, "Time's up!")
}

func TestMenuCommand(t *testing.T) {
	opts := testOptions(t)
	cmd := NewMenuCommand(opts)
	cmd.SetIn(strings.NewReader("5\n10\n3000\n\ny\n9\n"))

	out, _, err := execute(cmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Goodbye!")
	assert.Len(t, historyRecords(t, opts), 1)
}
