// Package config loads agentmail-mcp configuration from a TOML file layered
// under environment variables, and exposes a typed read-only view to the
// rest of the server.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the coordination server.
// Precedence: environment variables > config file > defaults.
type Config struct {
	Store        StoreConfig        `toml:"store"`
	Archive      ArchiveConfig      `toml:"archive"`
	Reservations ReservationsConfig `toml:"reservations"`
	Contacts     ContactsConfig     `toml:"contacts"`
	Search       SearchConfig       `toml:"search"`
	Guard        GuardConfig        `toml:"guard"`
	Server       ServerConfig       `toml:"server"`
	Transport    TransportConfig    `toml:"transport"`
	Log          LogConfig          `toml:"log"`
	Janitor      JanitorConfig      `toml:"janitor"`
	MCP          MCPConfig          `toml:"mcp"`
}

// StoreConfig controls the embedded relational store.
type StoreConfig struct {
	Path          string `toml:"path"` // SQLite file path; ":memory:" for tests.
	MaxOpenConns  int    `toml:"max_open_conns"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	SlowQueryMS   int    `toml:"slow_query_ms"` // Log a warning when a tool call's cumulative query time exceeds this.
}

// ArchiveConfig controls the per-project git mirror.
type ArchiveConfig struct {
	StorageRoot        string `toml:"storage_root"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
	CommitRetries      int    `toml:"commit_retries"`
}

// ReservationsConfig controls lease defaults and stale-detection thresholds.
type ReservationsConfig struct {
	DefaultTTLSeconds      int `toml:"default_ttl_seconds"`
	MinTTLSeconds          int `toml:"min_ttl_seconds"`
	StaleInactivitySeconds int `toml:"stale_inactivity_seconds"`
}

// ContactsConfig controls policy defaults and handshake behavior.
type ContactsConfig struct {
	DefaultPolicy       string `toml:"default_policy"`
	HandshakeAutoAccept bool   `toml:"handshake_auto_accept"`
	LinkTTLSeconds      int    `toml:"link_ttl_seconds"`
}

// SearchConfig controls FTS/summary behavior.
type SearchConfig struct {
	SummaryCacheToleranceSeconds int  `toml:"summary_cache_tolerance_seconds"`
	LLMEnabled                   bool `toml:"llm_enabled"`
}

// GuardConfig controls guard-script generation defaults.
type GuardConfig struct {
	Mode string `toml:"mode"` // "block" or "warn"
}

// ServerConfig holds MCP server metadata.
type ServerConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// TransportConfig holds transport-related settings.
type TransportConfig struct {
	// Mode selects the transport: "stdio" (default) or "http".
	Mode string `toml:"mode"`
	// Port is the HTTP listen port. Only used when Mode is "http".
	Port string `toml:"port"`
	// Host is the HTTP listen address. Only used when Mode is "http".
	Host string `toml:"host"`
	// CORSOrigins is a comma-separated list of allowed CORS origins (default: "*").
	CORSOrigins string `toml:"cors_origins"`
	// SharedToken, when set, is the single bearer token every HTTP request
	// must present. Empty (the default) disables the check — appropriate for
	// a server reachable only by trusted local agents. There is no per-agent
	// credential; spec.md rules out cryptographic sender auth beyond opaque
	// tokens, so this is deliberately one shared secret, not a client registry.
	SharedToken string `toml:"shared_token"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// JanitorConfig holds periodic-sweep scheduling configuration.
type JanitorConfig struct {
	Enabled              bool   `toml:"enabled"`
	IntervalMinutes      int    `toml:"interval_minutes"`
	ReservationSweepOnly bool   `toml:"reservation_sweep_only"`
	// ReservationSweepCron, when non-empty, runs the reservation sweep on
	// this wall-clock-aligned cron spec via scheduler.CronScheduler instead
	// of the plain interval scheduler — useful for deployments that want
	// sweeps to land on round minutes rather than drift with process start
	// time. Empty falls back to IntervalMinutes for every job.
	ReservationSweepCron string `toml:"reservation_sweep_cron"`
}

// MCPConfig holds tool-registry behavior.
type MCPConfig struct {
	ToolProfile       string   `toml:"tool_profile"`   // full, core, minimal, messaging, custom
	DefaultFormat     string   `toml:"default_format"` // json or toon
	Capabilities      []string `toml:"capabilities"`
	ProductBusEnabled bool     `toml:"product_bus_enabled"`
	BuildSlotsEnabled bool     `toml:"build_slots_enabled"`
	// IdentityResourceEnabled gates resource://identity/{project}, which
	// surfaces window identity bindings including registration tokens —
	// more sensitive than the plain agent directory, so it defaults off.
	IdentityResourceEnabled bool `toml:"identity_resource_enabled"`
}

// Load creates a Config by reading from a TOML config file and environment
// variables. Precedence: environment variables > config file > defaults.
//
// Config file search order (first found wins):
//  1. Path passed via configPath parameter (from --config flag)
//  2. AGENTMAIL_CONFIG environment variable
//  3. ./agentmail.toml (current directory)
//  4. ~/.config/agentmail/agentmail.toml (XDG-style)
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			Path:          "agentmail.db",
			MaxOpenConns:  8,
			BusyTimeoutMS: 5000,
			SlowQueryMS:   250,
		},
		Archive: ArchiveConfig{
			StorageRoot:        "agentmail-archive",
			LockTimeoutSeconds: 30,
			CommitRetries:      6,
		},
		Reservations: ReservationsConfig{
			DefaultTTLSeconds:      3600,
			MinTTLSeconds:          60,
			StaleInactivitySeconds: 3600,
		},
		Contacts: ContactsConfig{
			DefaultPolicy:       "auto",
			HandshakeAutoAccept: false,
			LinkTTLSeconds:      7 * 24 * 3600,
		},
		Search: SearchConfig{
			SummaryCacheToleranceSeconds: 300,
			LLMEnabled:                   false,
		},
		Guard: GuardConfig{
			Mode: "block",
		},
		Server: ServerConfig{
			Name:    "agentmail-mcp",
			Version: "0.1.0",
		},
		Transport: TransportConfig{
			Mode:        "stdio",
			Port:        "8765",
			Host:        "0.0.0.0",
			CORSOrigins: "*",
		},
		Log: LogConfig{
			Level: "info",
		},
		Janitor: JanitorConfig{
			Enabled:         true,
			IntervalMinutes: 15,
		},
		MCP: MCPConfig{
			ToolProfile:   "full",
			DefaultFormat: "json",
		},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("AGENTMAIL_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("agentmail.toml"); err == nil {
		return "agentmail.toml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/agentmail/agentmail.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	envOverride("AGENTMAIL_STORE_PATH", &c.Store.Path)
	envOverride("AGENTMAIL_ARCHIVE_ROOT", &c.Archive.StorageRoot)
	envOverride("AGENTMAIL_CONTACTS_DEFAULT_POLICY", &c.Contacts.DefaultPolicy)
	envOverride("AGENTMAIL_GUARD_MODE", &c.Guard.Mode)
	envOverride("AGENTMAIL_TRANSPORT", &c.Transport.Mode)
	envOverride("AGENTMAIL_PORT", &c.Transport.Port)
	envOverride("AGENTMAIL_HOST", &c.Transport.Host)
	envOverride("AGENTMAIL_CORS_ORIGINS", &c.Transport.CORSOrigins)
	envOverride("AGENTMAIL_HTTP_SHARED_TOKEN", &c.Transport.SharedToken)
	envOverride("AGENTMAIL_LOG_LEVEL", &c.Log.Level)
	envOverride("AGENTMAIL_TOOL_PROFILE", &c.MCP.ToolProfile)
	envOverride("AGENTMAIL_DEFAULT_FORMAT", &c.MCP.DefaultFormat)

	if v := os.Getenv("AGENTMAIL_JANITOR_ENABLED"); v != "" {
		c.Janitor.Enabled = (v == "true" || v == "1")
	}
	if v := os.Getenv("AGENTMAIL_JANITOR_INTERVAL_MINUTES"); v != "" {
		var minutes int
		if _, err := fmt.Sscanf(v, "%d", &minutes); err == nil && minutes > 0 {
			c.Janitor.IntervalMinutes = minutes
		}
	}
	envOverride("AGENTMAIL_JANITOR_RESERVATION_SWEEP_CRON", &c.Janitor.ReservationSweepCron)
	if v := os.Getenv("AGENTMAIL_PRODUCT_BUS_ENABLED"); v != "" {
		c.MCP.ProductBusEnabled = (v == "true" || v == "1")
	}
	if v := os.Getenv("AGENTMAIL_BUILD_SLOTS_ENABLED"); v != "" {
		c.MCP.BuildSlotsEnabled = (v == "true" || v == "1")
	}
}

// Validate checks that required fields are present and internally consistent.
func (c *Config) Validate() error {
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport mode: %q (must be \"stdio\" or \"http\")", c.Transport.Mode)
	}

	switch c.Guard.Mode {
	case "block", "warn":
	default:
		return fmt.Errorf("invalid guard mode: %q (must be \"block\" or \"warn\")", c.Guard.Mode)
	}

	switch c.MCP.ToolProfile {
	case "full", "core", "minimal", "messaging", "custom":
	default:
		return fmt.Errorf("invalid tool profile: %q", c.MCP.ToolProfile)
	}

	if c.Reservations.MinTTLSeconds < 60 {
		return fmt.Errorf("reservations.min_ttl_seconds must be >= 60 (got %d)", c.Reservations.MinTTLSeconds)
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	return nil
}

// envOverride sets *dst to the value of the named env var, if it is non-empty.
func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
