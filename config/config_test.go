package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Backend.URL, cfg.Backend.URL)
	assert.Equal(t, defaults.Backend.TimeoutSeconds, cfg.Backend.TimeoutSeconds)
	assert.Equal(t, defaults.Server.Host, cfg.Server.Host)
	assert.Equal(t, defaults.Server.Port, cfg.Server.Port)
	assert.False(t, cfg.Logging.Verbose)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `backend:
  url: https://api.example.com/v1
  api_key: test-key
  model: gpt-4o
  timeout: 120
server:
  host: 0.0.0.0
  port: 9000
chat:
  system_prompt: Be brief.
logging:
  verbose: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v1", cfg.Backend.URL)
	assert.Equal(t, "test-key", cfg.Backend.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Backend.Model)
	assert.Equal(t, 120, cfg.Backend.TimeoutSeconds)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "Be brief.", cfg.Chat.SystemPrompt)
	assert.True(t, cfg.Logging.Verbose)
}

func TestPartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  model: llama3\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3", cfg.Backend.Model)
	assert.Equal(t, DefaultConfig().Backend.URL, cfg.Backend.URL)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  model: from-file\n"), 0644))

	t.Setenv("CHATWIRE_BACKEND_MODEL", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Backend.Model)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Backend.Model = "gpt-4o"
	cfg.Backend.APIKey = "k"
	cfg.Server.Port = 9100
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend.Model, loaded.Backend.Model)
	assert.Equal(t, cfg.Backend.APIKey, loaded.Backend.APIKey)
	assert.Equal(t, cfg.Server.Port, loaded.Server.Port)
	assert.Equal(t, cfg.Backend.TimeoutSeconds, loaded.Backend.TimeoutSeconds)
}
