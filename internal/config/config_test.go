package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for _, k := range []string{
		"PORT", "ENV", "JWT_SECRET", "ALLOWED_ORIGINS", "DB_TYPE", "DATABASE_URL",
		"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "MONGO_URI", "MONGO_DB",
		"REDIS_URL", "UNREAD_CACHE", "REALTIME_BROKER", "TYPING_TTL", "MESSAGE_RATE_LIMIT",
	} {
		t.Setenv(k, "")
	}
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, map[string]string{
		"JWT_SECRET": "secret",
		"DB_TYPE":    "memory",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.UnreadCache)
	assert.Equal(t, "local", cfg.RealtimeBroker)
	assert.Equal(t, 3*time.Second, cfg.TypingTTL)
	assert.Equal(t, 50, cfg.MessageRateLimit)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadBuildsPostgresURLFromParts(t *testing.T) {
	setEnv(t, map[string]string{
		"JWT_SECRET":  "secret",
		"DB_HOST":     "db",
		"DB_NAME":     "alumni",
		"DB_USER":     "chat",
		"DB_PASSWORD": "pw",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://chat:pw@db:5432/alumni?sslmode=disable", cfg.DatabaseURL)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"DB_TYPE": "memory"}},
		{"missing postgres details", map[string]string{"JWT_SECRET": "s"}},
		{"unknown db type", map[string]string{"JWT_SECRET": "s", "DB_TYPE": "sqlite"}},
		{"redis cache without url", map[string]string{"JWT_SECRET": "s", "DB_TYPE": "memory", "UNREAD_CACHE": "redis"}},
		{"bad ttl", map[string]string{"JWT_SECRET": "s", "DB_TYPE": "memory", "TYPING_TTL": "soon"}},
		{"zero rate", map[string]string{"JWT_SECRET": "s", "DB_TYPE": "memory", "MESSAGE_RATE_LIMIT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAllowedOriginsSplit(t *testing.T) {
	setEnv(t, map[string]string{
		"JWT_SECRET":      "s",
		"DB_TYPE":         "memory",
		"ALLOWED_ORIGINS": "https://a.example, https://b.example,,",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}
