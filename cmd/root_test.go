package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"refresh", "route", "thresholds"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "saferoute", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRefreshCommand_Flags(t *testing.T) {
	for _, name := range []string{"incidents", "recent", "now", "dry-run"} {
		require.NotNil(t, refreshCmd.Flags().Lookup(name), "refresh should have --%s", name)
	}
	assert.Equal(t, "false", refreshCmd.Flags().Lookup("dry-run").DefValue)
}

func TestRouteCommand_Flags(t *testing.T) {
	for _, name := range []string{"from", "to", "profile", "area", "temperature", "at", "format", "batch"} {
		require.NotNil(t, routeCmd.Flags().Lookup(name), "route should have --%s", name)
	}
	assert.Equal(t, "default", routeCmd.Flags().Lookup("profile").DefValue)
	assert.Equal(t, "table", routeCmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "23", routeCmd.Flags().Lookup("batch").DefValue)
}

func TestRootCommand_PreRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   string
	}{
		{name: "bad yaml", config: "store: [unclosed\n", want: "load config"},
		{name: "bad log level", config: "log:\n  level: loud\n", want: "init logger"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			require.NoError(t, os.WriteFile("config.yaml", []byte(tt.config), 0o644))

			err := rootCmd.PersistentPreRunE(rootCmd, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
