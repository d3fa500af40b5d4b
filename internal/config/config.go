package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the TaskVault server.
type Config struct {
	Database DatabaseConfig
	Vault    VaultConfig
	Workflow WorkflowConfig
	Server   ServerConfig
	HTTP     HTTPConfig
	Log      LogConfig
}

// DatabaseConfig holds SQLite connection details.
type DatabaseConfig struct {
	Path      string
	UseFlyway bool // Skip the built-in migration runner; an external tool owns the schema.
}

// VaultConfig holds Markdown vault export settings.
type VaultConfig struct {
	Path string // Empty disables the vault export pipeline.

	// ReconcileInterval schedules periodic full re-exports to repair
	// files edited or removed out of band. Zero disables reconciling.
	ReconcileInterval time.Duration
}

// WorkflowConfig locates the status workflow configuration.
type WorkflowConfig struct {
	Dir string // Directory searched for workflow-config.yaml.
}

// ServerConfig holds MCP server metadata.
type ServerConfig struct {
	Name    string
	Version string
}

// HTTPConfig holds the optional HTTP transport settings.
type HTTPConfig struct {
	Addr  string // Empty disables the HTTP listener; stdio is always served.
	Token string // Bearer token; empty means no auth check.
	CORS  string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string // debug, info, warn, error
	File  string // Empty logs to stderr only.
}

// Load creates a Config by reading environment variables with defaults.
// Precedence: environment variables > defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path:      envOr("DATABASE_PATH", "data/tasks.db"),
			UseFlyway: envBool("USE_FLYWAY", false),
		},
		Vault: VaultConfig{
			Path:              os.Getenv("MD_VAULT_PATH"),
			ReconcileInterval: envDuration("MD_VAULT_RECONCILE", 0),
		},
		Workflow: WorkflowConfig{
			Dir: envOr("AGENT_CONFIG_DIR", "."),
		},
		Server: ServerConfig{
			Name:    "taskvault",
			Version: "0.1.0",
		},
		HTTP: HTTPConfig{
			Addr:  os.Getenv("TASKVAULT_HTTP_ADDR"),
			Token: os.Getenv("TASKVAULT_HTTP_TOKEN"),
			CORS:  envOr("TASKVAULT_HTTP_CORS", "*"),
		},
		Log: LogConfig{
			Level: envOr("TASKVAULT_LOG_LEVEL", "info"),
			File:  os.Getenv("TASKVAULT_LOG_FILE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid TASKVAULT_LOG_LEVEL %q (want debug, info, warn, or error)", c.Log.Level)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
