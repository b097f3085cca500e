package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "sqlplan", cmd.Use)
	assert.Contains(t, cmd.Long, "execution plans")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"test"},
		{"query"},
		{"shell"},
		{"profile", "save"},
		{"profile", "list"},
		{"profile", "delete"},
		{"history", "queries"},
		{"history", "plans"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
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

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("store"))
}

func TestQueryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	queryCmd, _, err := cmd.Find([]string{"query"})
	require.NoError(t, err)

	planFlag := queryCmd.Flags().Lookup("plan")
	require.NotNil(t, planFlag)
	assert.Equal(t, "none", planFlag.DefValue)

	for _, name := range []string{"profile", "file", "timeout", "show-plan", "host", "port", "database", "user", "password"} {
		assert.NotNil(t, queryCmd.Flags().Lookup(name), "query should have --%s", name)
	}

	assert.Equal(t, "H", queryCmd.Flags().Lookup("host").Shorthand)
	assert.Equal(t, "f", queryCmd.Flags().Lookup("file").Shorthand)
}

func TestHistoryLimitFlag(t *testing.T) {
	cmd := NewRootCommand()
	plansCmd, _, err := cmd.Find([]string{"history", "plans"})
	require.NoError(t, err)

	limitFlag := plansCmd.InheritedFlags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "20", limitFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "xml", "history", "queries"})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
