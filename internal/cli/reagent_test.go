package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReagentList_Empty(t *testing.T) {
	opts := testOptions(t)
	out, _, err := execute(NewReagentCommand(opts), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No reagent prices in "+opts.Reagents)
}

func TestReagentSetGetCost(t *testing.T) {
	opts := testOptions(t)

	out, _, err := execute(NewReagentCommand(opts), "set", "TE Buffer", "0.05", "--unit", "mL")
	require.NoError(t, err)
	assert.Equal(t, "Set TE Buffer to $0.05 per mL\n", out)

	out, _, err = execute(NewReagentCommand(opts), "get", "TE Buffer")
	require.NoError(t, err)
	assert.Contains(t, out, "TE Buffer")
	assert.Contains(t, out, "$0.05")

	out, _, err = execute(NewReagentCommand(opts), "cost", "TE Buffer", "1000")
	require.NoError(t, err)
	assert.Equal(t, "1000 µL of TE Buffer: $0.05\n", out)

	opts.Format = "json"
	out, _, err = execute(NewReagentCommand(opts), "cost", "TE Buffer", "500")
	require.NoError(t, err)
	var resp struct {
		Data ReagentCost `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "TE Buffer", resp.Data.Reagent)
	assert.Equal(t, "0.025", resp.Data.Cost.String())
}

func TestReagentSet_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"bad price", []string{"set", "FBS", "cheap"}, ErrCodeInvalidInput},
		{"negative price", []string{"set", "FBS", "--", "-1"}, ErrCodeInvalidInput},
		{"bad unit", []string{"set", "FBS", "0.85", "--unit", "gallon"}, ErrCodeInvalidUnit},
		{"mass unit", []string{"set", "FBS", "0.85", "--unit", "mg"}, ErrCodeInvalidUnit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(t)
			out, _, err := execute(NewReagentCommand(opts), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestReagentGet_NotFound(t *testing.T) {
	opts := testOptions(t)

	out, _, err := execute(NewReagentCommand(opts), "get", "Unobtainium")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `Error [E202]: no price for "Unobtainium"`)

	_, _, err = execute(NewReagentCommand(opts), "cost", "Unobtainium", "10")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestReagentSeed(t *testing.T) {
	opts := testOptions(t)

	out, _, err := execute(NewReagentCommand(opts), "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 4 prices:")
	assert.Contains(t, out, "  Trypsin")

	out, _, err = execute(NewReagentCommand(opts), "seed")
	require.NoError(t, err)
	assert.Equal(t, "All starter prices already present.\n", out)

	opts.Format = "json"
	out, _, err = execute(NewReagentCommand(opts), "seed")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"added":[]}}`, out)

	opts.Format = "text"
	out, _, err = execute(NewReagentCommand(opts), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "FBS")
	assert.Contains(t, out, "PBS")
}
