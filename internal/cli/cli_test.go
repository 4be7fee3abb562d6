package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/giftstream/giftstream/internal/config"
)

func run(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	prev := loadConfig
	loadConfig = func() (config.Config, error) { return cfg, nil }
	t.Cleanup(func() { loadConfig = prev })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	for _, sub := range []string{"up", "down", "version"} {
		t.Run(sub, func(t *testing.T) {
			_, err := run(t, config.Config{AppEnv: "development"}, "migrate", sub)
			require.ErrorContains(t, err, "DATABASE_URL")
		})
	}
}

func TestOperatorCommandsRequireDatabase(t *testing.T) {
	cases := [][]string{
		{"reconcile", "acct-1"},
		{"replay", "gift:g-1"},
		{"chain", "acct-1", "--depth", "3"},
		{"admin", "bootstrap"},
		{"admin", "token", "acct-1"},
	}
	for _, args := range cases {
		t.Run(args[0], func(t *testing.T) {
			_, err := run(t, config.Config{AppEnv: "development"}, args...)
			require.ErrorContains(t, err, "DATABASE_URL")
		})
	}
}

func TestCommandsValidateArguments(t *testing.T) {
	_, err := run(t, config.Config{}, "reconcile")
	require.Error(t, err)

	_, err = run(t, config.Config{}, "replay", "a", "b")
	require.Error(t, err)
}

func TestRootListsCommands(t *testing.T) {
	out, err := run(t, config.Config{}, "--help")
	require.NoError(t, err)
	for _, name := range []string{"migrate", "reconcile", "replay", "chain", "admin"} {
		require.Contains(t, out, name)
	}
}
