package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, BackendCLI, cfg.Generation.Backend)
	assert.Equal(t, "ollama", cfg.Generation.Command)
	assert.Equal(t, "mistral", cfg.Generation.Model)
	assert.Equal(t, 90*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 20, cfg.Generation.ContextWindowSize)
	assert.Equal(t, 12, cfg.Generation.PromptWindowSize)
	assert.Equal(t, "tabletop", cfg.Redis.ChannelPrefix)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("GENERATION_BACKEND", "OpenAI")
	t.Setenv("GENERATION_TIMEOUT", "5s")
	t.Setenv("CONTEXT_WINDOW_SIZE", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, BackendOpenAI, cfg.Generation.Backend)
	assert.Equal(t, 5*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 20, cfg.Generation.ContextWindowSize, "invalid ints fall back to the default")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	cfg := Load()
	cfg.Database.Driver = "oracle"

	_, err := Dialector(cfg)
	require.Error(t, err)
}

func TestNewDBWithInMemorySQLite(t *testing.T) {
	cfg := Load()
	cfg.Database.Path = "file::memory:"

	db, err := NewDB(cfg)
	require.NoError(t, err)
	assert.NoError(t, TestConnection(db))
}
