package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "stdio", cfg.Transport.Mode)
	assert.Equal(t, "block", cfg.Guard.Mode)
	assert.Equal(t, "full", cfg.MCP.ToolProfile)
	assert.Equal(t, 60, cfg.Reservations.MinTTLSeconds)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENTMAIL_GUARD_MODE", "warn")
	t.Setenv("AGENTMAIL_TOOL_PROFILE", "core")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Guard.Mode)
	assert.Equal(t, "core", cfg.MCP.ToolProfile)
}

func TestValidateRejectsBadTransport(t *testing.T) {
	cfg := &Config{
		Transport:    TransportConfig{Mode: "carrier-pigeon"},
		Guard:        GuardConfig{Mode: "block"},
		MCP:          MCPConfig{ToolProfile: "full"},
		Reservations: ReservationsConfig{MinTTLSeconds: 60},
		Store:        StoreConfig{Path: "x.db"},
	}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateRejectsShortMinTTL(t *testing.T) {
	cfg := &Config{
		Transport:    TransportConfig{Mode: "stdio"},
		Guard:        GuardConfig{Mode: "block"},
		MCP:          MCPConfig{ToolProfile: "full"},
		Reservations: ReservationsConfig{MinTTLSeconds: 10},
		Store:        StoreConfig{Path: "x.db"},
	}
	err := cfg.Validate()
	require.Error(t, err)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AGENTMAIL_CONFIG", "AGENTMAIL_STORE_PATH", "AGENTMAIL_ARCHIVE_ROOT",
		"AGENTMAIL_GUARD_MODE", "AGENTMAIL_TRANSPORT", "AGENTMAIL_TOOL_PROFILE",
		"AGENTMAIL_DEFAULT_FORMAT", "AGENTMAIL_JANITOR_ENABLED",
	} {
		orig, had := os.LookupEnv(k)
		os.Unsetenv(k)
		if had {
			t.Cleanup(func() { os.Setenv(k, orig) })
		}
	}
}
