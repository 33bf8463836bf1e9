package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "data/bridge.db", cfg.Database.Path)
	assert.Equal(t, 30, cfg.Session.IdleTimeoutMin)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9999"

[database]
path = "/tmp/other.db"

[llm]
base_url = "http://inference:8000/v1"
model = "qwen2.5-coder"

[session]
idle_timeout_min = 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, "http://inference:8000/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "qwen2.5-coder", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Session.IdleTimeoutMin)
	// Untouched sections keep defaults.
	assert.Equal(t, 1440, cfg.Auth.TokenExpiryMin)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[server`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DBBRIDGE_ADDR", ":7777")
	t.Setenv("DBBRIDGE_LLM_MODEL", "env-model")
	t.Setenv("DBBRIDGE_SESSION_IDLE_MIN", "12")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, 12, cfg.Session.IdleTimeoutMin)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":9999\"\n"), 0o644))
	t.Setenv("DBBRIDGE_ADDR", ":1111")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":1111", cfg.Server.Addr)
}
