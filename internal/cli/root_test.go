package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "linkgraph", cmd.Use)
	assert.Contains(t, cmd.Long, "object graph cache")
	assert.Equal(t, Version, cmd.Version)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "run", "test", "dump"}

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

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	require.NotNil(t, testCmd.Flags().Lookup("update"))
	require.NotNil(t, testCmd.Flags().Lookup("filter"))
}

func TestInvalidFormat(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "user.yaml", userScenario)

	_, err := execute(NewRootCommand(), "run", scenario, "--format", "yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootLoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "user.yaml", userScenario)
	cfg := writeFile(t, dir, "linkgraph.yaml", "max_notify_depth: 0\n")

	_, err := execute(NewRootCommand(), "run", scenario, "--config", cfg)

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "max_notify_depth must be positive")
}

func TestRootRunsScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "user.yaml", userScenario)
	cfg := writeFile(t, dir, "linkgraph.yaml", "max_notify_depth: 8\n")

	out, err := execute(NewRootCommand(), "run", scenario, "--config", cfg)

	require.NoError(t, err)
	assert.Contains(t, out, "✓ user_roundtrip passed")
}
