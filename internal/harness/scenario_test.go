package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/runner"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenarios_Testdata(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			require.NoError(t, s.Run(New()))
		})
	}
}

func TestLoadScenario_Fields(t *testing.T) {
	path := writeScenario(t, `
name: full
description: every field
wat: "(module (func (export \"run\")))"
method: run
gas: 1000
opaque_error: true
skip: [wasmer]
protocol_versions: [61]
context:
  account_balance: "1000000000000000000000000"
  storage_usage: 7
  input: "abc"
expect: ["a", "b"]
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "run", s.Method)
	require.NotNil(t, s.Gas)
	assert.Equal(t, uint64(1000), *s.Gas)
	assert.Equal(t, []runner.Kind{runner.Wasmer}, s.Skip)

	c, err := s.Config(New())
	require.NoError(t, err)
	assert.Equal(t, []config.ProtocolVersion{config.Newest, 61}, c.Versions())
	assert.Contains(t, c.Skipped(), runner.Wasmer)
	assert.Len(t, s.Expectations(), 2)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: misspelled field
wat: "(module)"
expects: ["x"]
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownBackend(t *testing.T) {
	path := writeScenario(t, `
name: bad
description: unknown backend
wat: "(module)"
skip: [v8]
expect: ["x"]
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nwat: \"(module)\"\nexpect: [x]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nwat: \"(module)\"\nexpect: [x]\n",
			wantErr: "description is required",
		},
		{
			name:    "no code",
			content: "name: n\ndescription: d\nexpect: [x]\n",
			wantErr: "exactly one of wat and wasm_file",
		},
		{
			name:    "both codes",
			content: "name: n\ndescription: d\nwat: \"(module)\"\nwasm_file: a.wasm\nexpect: [x]\n",
			wantErr: "exactly one of wat and wasm_file",
		},
		{
			name:    "no expectations",
			content: "name: n\ndescription: d\nwat: \"(module)\"\n",
			wantErr: "expect list is required",
		},
		{
			name:    "unknown feature",
			content: "name: n\ndescription: d\nwat: \"(module)\"\nprotocol_features: [warp]\nexpect: [x]\n",
			wantErr: "unknown protocol feature",
		},
		{
			name:    "bad balance",
			content: "name: n\ndescription: d\nwat: \"(module)\"\ncontext:\n  account_balance: lots\nexpect: [x]\n",
			wantErr: "context.account_balance",
		},
		{
			name:    "only with versions",
			content: "name: n\ndescription: d\nwat: \"(module)\"\nprotocol_versions: [61]\nonly_protocol_versions: [62]\nexpect: [x]\n",
			wantErr: "only_protocol_versions cannot be combined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestScenario_WasmFileRelativeToScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.wasm"), []byte("not wasm"), 0644))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: bytes
description: malformed bytecode is rejected before execution
wasm_file: bad.wasm
opaque_outcome: true
expect:
  - "Err: PrepareError: Deserialization\n"
`), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	require.NoError(t, s.Run(New()))
}

func TestScenario_MissingWasmFile(t *testing.T) {
	path := writeScenario(t, `
name: missing
description: wasm file does not exist
wasm_file: gone.wasm
expect: ["x"]
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	_, err = s.Config(New())
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "wasm_file", cfgErr.Op)
}

func TestLoadScenarios_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	body := "name: same\ndescription: d\nwat: \"(module)\"\nexpect: [x]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(body), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(body), 0644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used by a.yaml")
}

func TestLoadScenarios_DuplicateNameUpToNormalization(t *testing.T) {
	dir := t.TempDir()
	precomposed := "name: \"caf\u00e9\"\ndescription: d\nwat: \"(module)\"\nexpect: [x]\n"
	decomposed := "name: \"cafe\u0301\"\ndescription: d\nwat: \"(module)\"\nexpect: [x]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(precomposed), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(decomposed), 0644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used by a.yaml")
}
