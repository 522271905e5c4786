package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the developer's own labcalc.yaml out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "lab_history.json", cfg.History.Path)
	assert.Equal(t, "json", cfg.History.Backend)
	assert.Equal(t, "reagents.json", cfg.Reagents.Path)
	assert.Equal(t, "127.0.0.1:8080", cfg.Serve.Addr)
	assert.Equal(t, time.Second, cfg.Timer.Tick)
	assert.Equal(t, "TE Buffer", cfg.Defaults.DiluentReagent)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.File)
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("LABCALC_HISTORY_PATH", "/data/history.db")
	t.Setenv("LABCALC_HISTORY_BACKEND", "sqlite")
	t.Setenv("LABCALC_TIMER_TICK", "250ms")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/data/history.db", cfg.History.Path)
	assert.Equal(t, "sqlite", cfg.History.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Timer.Tick)
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "lab.yaml")
	content := `
history:
  backend: sqlite
  path: lab_history.db
defaults:
  diluent_reagent: PBS
serve:
  addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.History.Backend)
	assert.Equal(t, "lab_history.db", cfg.History.Path)
	assert.Equal(t, "PBS", cfg.Defaults.DiluentReagent)
	assert.Equal(t, ":9090", cfg.Serve.Addr)
	assert.Equal(t, "reagents.json", cfg.Reagents.Path, "unset keys keep defaults")
	assert.Equal(t, path, cfg.File)
}

func TestLoad_SearchesWorkingDirectory(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("labcalc.yaml", []byte("reagents:\n  path: prices.json\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prices.json", cfg.Reagents.Path)
	assert.NotEmpty(t, cfg.File)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "lab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("history:\n  path: from-file.json\n"), 0o644))
	t.Setenv("LABCALC_HISTORY_PATH", "from-env.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.json", cfg.History.Path)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidBackend(t *testing.T) {
	isolate(t)
	t.Setenv("LABCALC_HISTORY_BACKEND", "postgres")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend")
}

func TestValidate(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Timer.Tick = 0
	assert.Error(t, cfg.Validate())

	cfg.Timer.Tick = time.Second
	cfg.Log.Level = "verbose"
	assert.Error(t, cfg.Validate())
}
