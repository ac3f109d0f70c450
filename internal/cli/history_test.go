package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"history"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistoryCommandListsCheckedRuns(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"trap.yaml": passingScenario})
	db := filepath.Join(t.TempDir(), "runs.db")

	checkOut, err := executeCheck(t, dir, "--db", db, "--format", "json")
	require.NoError(t, err)
	var checked struct {
		Data CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(checkOut), &checked))

	out, err := executeHistory(t, db, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string        `json:"status"`
		Data   HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, checked.Data.Session, resp.Data.Session)
	assert.Equal(t, checked.Data.Backends, resp.Data.Backends)

	total := 0
	for _, b := range resp.Data.Backends {
		total += b.Runs
	}
	require.Len(t, resp.Data.Runs, total)
	for i, r := range resp.Data.Runs {
		assert.Equal(t, int64(i+1), r.Seq)
		assert.Equal(t, "main", r.Method)
		assert.True(t, r.Aborted)
		assert.Equal(t, "Err: WasmTrap: Unreachable\n", r.Rendering)
	}
}

func TestHistoryCommandText(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"trap.yaml": passingScenario})
	db := filepath.Join(t.TempDir(), "runs.db")
	_, err := executeCheck(t, dir, "--db", db)
	require.NoError(t, err)

	out, err := executeHistory(t, db)
	require.NoError(t, err)
	assert.Contains(t, out, "session ")
	assert.Contains(t, out, "wazero-interpreter protocol=")
	assert.Contains(t, out, "  Err: WasmTrap: Unreachable\n")
}

func TestHistoryCommandUnknownSession(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"trap.yaml": passingScenario})
	db := filepath.Join(t.TempDir(), "runs.db")
	_, err := executeCheck(t, dir, "--db", db)
	require.NoError(t, err)

	out, err := executeHistory(t, db, "--session", "missing")
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", out)
}

func TestHistoryCommandMissingDatabase(t *testing.T) {
	_, err := executeHistory(t, filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
