package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "chronolog", cmd.Use)
	assert.Contains(t, cmd.Long, "timestep delays")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"reason", "validate", "query", "explain", "runs", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestReasonCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	reasonCmd, _, err := cmd.Find([]string{"reason"})
	require.NoError(t, err)

	tests := map[string]string{
		"max-t":      "10",
		"workers":    "0",
		"threshold":  "4",
		"max-passes": "0",
		"db":         "",
		"at":         "-1",
		"metrics":    "false",
	}
	for name, def := range tests {
		flag := reasonCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, def, flag.DefValue, name)
	}
}

func TestSourceCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"query", "explain"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)

			programFlag := sub.Flags().Lookup("program")
			require.NotNil(t, programFlag)
			assert.Equal(t, "p", programFlag.Shorthand)

			require.NotNil(t, sub.Flags().Lookup("db"))
			require.NotNil(t, sub.Flags().Lookup("run"))
			require.NotNil(t, sub.Flags().Lookup("max-t"))
			require.NotNil(t, sub.Flags().Lookup("at"))
		})
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "validate", supplyProgram})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommandEndToEnd(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"query", "atRisk(s1)", "-p", supplyProgram, "--max-t", "2"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "t=1 atRisk(s1) {}\n", buf.String())
}
