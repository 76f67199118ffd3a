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
	for _, key := range []string{"PORT", "THINKING_DELAY", "HISTORY_LIMIT", "NATS_ENABLED", "ALLOWED_ORIGINS", "DEFAULT_THEME"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 1500*time.Millisecond, cfg.ThinkingDelay)
	assert.Equal(t, 0, cfg.HistoryLimit)
	assert.Equal(t, "light", cfg.DefaultTheme)
	assert.False(t, cfg.NATSEnabled)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("THINKING_DELAY", "250ms")
	t.Setenv("HISTORY_LIMIT", "200")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("AUTH_REQUIRED", "1")
	t.Setenv("ALLOWED_ORIGINS", "https://inkwell.blog, https://www.inkwell.blog,")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 250*time.Millisecond, cfg.ThinkingDelay)
	assert.Equal(t, 200, cfg.HistoryLimit)
	assert.True(t, cfg.NATSEnabled)
	assert.True(t, cfg.AuthRequired)
	assert.Equal(t, []string{"https://inkwell.blog", "https://www.inkwell.blog"}, cfg.AllowedOrigins)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("THINKING_DELAY", "soon")
	t.Setenv("MAX_SESSIONS", "many")
	t.Setenv("TRACING_ENABLED", "perhaps")

	cfg := Load()

	assert.Equal(t, 1500*time.Millisecond, cfg.ThinkingDelay)
	assert.Equal(t, 10000, cfg.MaxSessions)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEFAULT_THEME=dark\nLOG_LEVEL=debug\n"), 0o600))

	t.Setenv("DEFAULT_THEME", "")
	t.Setenv("LOG_LEVEL", "warn")
	os.Unsetenv("DEFAULT_THEME")

	require.NoError(t, LoadDotEnv(path))
	cfg := Load()

	assert.Equal(t, "dark", cfg.DefaultTheme)
	assert.Equal(t, "warn", cfg.LogLevel)
}
