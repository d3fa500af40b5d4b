package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_PATH", "USE_FLYWAY", "MD_VAULT_PATH", "MD_VAULT_RECONCILE",
		"AGENT_CONFIG_DIR", "TASKVAULT_HTTP_ADDR", "TASKVAULT_HTTP_TOKEN",
		"TASKVAULT_HTTP_CORS", "TASKVAULT_LOG_LEVEL", "TASKVAULT_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "data/tasks.db", cfg.Database.Path)
	assert.False(t, cfg.Database.UseFlyway)
	assert.Empty(t, cfg.Vault.Path)
	assert.Zero(t, cfg.Vault.ReconcileInterval)
	assert.Equal(t, ".", cfg.Workflow.Dir)
	assert.Empty(t, cfg.HTTP.Addr)
	assert.Equal(t, "*", cfg.HTTP.CORS)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "taskvault", cfg.Server.Name)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_PATH", "/var/lib/tv.db")
	t.Setenv("USE_FLYWAY", "true")
	t.Setenv("MD_VAULT_PATH", "/vault")
	t.Setenv("MD_VAULT_RECONCILE", "15m")
	t.Setenv("AGENT_CONFIG_DIR", "/etc/taskvault")
	t.Setenv("TASKVAULT_HTTP_ADDR", ":8080")
	t.Setenv("TASKVAULT_HTTP_TOKEN", "secret")
	t.Setenv("TASKVAULT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tv.db", cfg.Database.Path)
	assert.True(t, cfg.Database.UseFlyway)
	assert.Equal(t, "/vault", cfg.Vault.Path)
	assert.Equal(t, 15*time.Minute, cfg.Vault.ReconcileInterval)
	assert.Equal(t, "/etc/taskvault", cfg.Workflow.Dir)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "secret", cfg.HTTP.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("TASKVAULT_LOG_LEVEL", "verbose")

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "")
	assert.Equal(t, time.Minute, envDuration("TEST_DURATION", time.Minute))

	t.Setenv("TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, envDuration("TEST_DURATION", 0))

	// Unparseable and negative values fall back.
	t.Setenv("TEST_DURATION", "soon")
	assert.Equal(t, time.Minute, envDuration("TEST_DURATION", time.Minute))
	t.Setenv("TEST_DURATION", "-5m")
	assert.Equal(t, time.Minute, envDuration("TEST_DURATION", time.Minute))
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "")
	assert.True(t, envBool("TEST_BOOL", true))

	t.Setenv("TEST_BOOL", "1")
	assert.True(t, envBool("TEST_BOOL", false))
	t.Setenv("TEST_BOOL", "false")
	assert.False(t, envBool("TEST_BOOL", true))
	t.Setenv("TEST_BOOL", "yes")
	assert.True(t, envBool("TEST_BOOL", true))
}
