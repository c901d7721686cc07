package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidProgram(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), supplyProgram)
	require.NoError(t, err)

	// upstream is recursive through atRisk, which is info only
	assert.Contains(t, out, "✓ Program valid (2 rules, 3 facts)")
	assert.NotContains(t, out, "warning:")
}

func TestValidateValidProgramJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), supplyProgram)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Rules)
	assert.Equal(t, 3, resp.Data.Facts)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateNonExistentProgram(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), "/nonexistent/program.chl")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "not found")
}

func TestValidateUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.txt")
	require.NoError(t, os.WriteFile(path, []byte("p(a)\n"), 0644))

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeLoadFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unsupported program format")
}

func TestValidateEmptyProgram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.chl")
	require.NoError(t, os.WriteFile(path, []byte("% nothing here\n"), 0644))

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "no rules or facts found")
}

func TestValidateInvalidProgram(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "testdata/broken.chl")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 problem(s)")

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "entry 1\n  E212: rule unsafe head:")
	assert.Contains(t, out, "entry 3\n  E220:")
}

func TestValidateInvalidProgramJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), "testdata/broken.chl")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 2)
	assert.Equal(t, "E212", resp.Data.Errors[0].Code)
	assert.Equal(t, 1, resp.Data.Errors[0].Line)
	assert.Equal(t, "E220", resp.Data.Errors[1].Code)
	assert.Equal(t, 3, resp.Data.Errors[1].Line)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E212", resp.Error.Code)
}

func TestValidateNegationCycle(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "testdata/negcycle.chl")
	require.NoError(t, err)

	assert.Contains(t, out, "warning: negation through recursion")
	assert.Contains(t, out, "[pick-p pick-q]")
	assert.Contains(t, out, "✓ Program valid (2 rules, 1 facts)")
}

func TestValidateNegationCycleStrict(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), "testdata/negcycle.chl", "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data  ValidationResult `json:"data"`
		Error *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Warnings, 1)
	assert.True(t, resp.Data.Warnings[0].Negated)
	assert.Equal(t, []string{"p/1", "q/1"}, resp.Data.Warnings[0].Predicates)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_STRICT", resp.Error.Code)
}

func TestValidateYAMLProgram(t *testing.T) {
	program := `rules:
  - name: reach
    rule: "reach(X, Y) <- edge(X, Y)"
facts:
  - fact: "edge(a, b)"
    id: e1
`
	path := filepath.Join(t.TempDir(), "reach.yaml")
	require.NoError(t, os.WriteFile(path, []byte(program), 0644))

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Program valid (1 rules, 1 facts)")
}

func TestValidateMissingArgs(t *testing.T) {
	_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
