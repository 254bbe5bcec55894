package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "hairhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  read_timeout: 5s
llm:
  provider: gemini
  model: gemini-2.5-pro
log:
  level: debug
`), 0o600))
	t.Setenv("HAIRHUB_SERVER_ADDR", ":9100")
	t.Setenv("HAIRHUB_LLM_MAX_TOKENS", "1024")
	t.Setenv("HAIRHUB_CATALOG_SQLITE_PATH", "/tmp/catalog.db")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, int64(1024), cfg.LLM.MaxTokens)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, "/tmp/catalog.db", cfg.Catalog.SQLitePath)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HAIRHUB_LOG_LEVEL=warn\n"), 0o600))
	t.Setenv("HAIRHUB_LOG_LEVEL", "")
	os.Unsetenv("HAIRHUB_LOG_LEVEL")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HAIRHUB_LLM_PROVIDER", "openai")
	_, err := Load("")
	assert.Error(t, err)
}

func TestTransformEnvKey(t *testing.T) {
	key, val := transformEnvKey("HAIRHUB_SERVER_MAX_UPLOAD_BYTES", "5")
	assert.Equal(t, "server.max_upload_bytes", key)
	assert.Equal(t, "5", val)

	key, _ = transformEnvKey("HAIRHUB_DEBUG", "1")
	assert.Empty(t, key)
}
