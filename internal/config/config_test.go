package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "WEB_BIND", "ALLOWED_ORIGINS", "TARGET_CHAIN_ID", "TX_POLL_INTERVAL",
		"REMINDER_INTERVAL", "LOG_LEVEL", "DISCORD_TOKEN", "DISCORD_CHANNEL_ID", "RATE_LIMIT_RPS", "MIRROR_URL", "JWT_SECRET"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:3000", cfg.WebBind)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, uint64(1043), cfg.TargetChainID)
	assert.Equal(t, 2*time.Second, cfg.TxPollInterval)
	assert.Zero(t, cfg.ReminderInterval)
	assert.Equal(t, log.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "http://localhost:3000/api", cfg.MirrorURL)
	assert.False(t, cfg.NotifierEnabled())
	assert.Empty(t, cfg.JWTSecret)
	require.Error(t, cfg.RequireDatabase())
}

func TestRequireDatabaseNeedsJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dagsplit")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.ErrorContains(t, cfg.RequireDatabase(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err = Load()
	require.NoError(t, err)
	require.NoError(t, cfg.RequireDatabase())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dagsplit")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TARGET_CHAIN_ID", "31337")
	t.Setenv("REMINDER_INTERVAL", "1h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_CHANNEL_ID", "123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, uint64(31337), cfg.TargetChainID)
	assert.Equal(t, time.Hour, cfg.ReminderInterval)
	assert.Equal(t, log.DebugLevel, cfg.LogLevel)
	assert.True(t, cfg.NotifierEnabled())
	require.NoError(t, cfg.RequireDatabase())
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"TARGET_CHAIN_ID":   "primordial",
		"TX_POLL_INTERVAL":  "2",
		"REMINDER_INTERVAL": "soon",
		"LOG_LEVEL":         "loud",
		"RATE_LIMIT_RPS":    "fast",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.ErrorContains(t, err, key)
		})
	}

	t.Run("channel without token", func(t *testing.T) {
		t.Setenv("DISCORD_TOKEN", "")
		t.Setenv("DISCORD_CHANNEL_ID", "123")
		_, err := Load()
		require.Error(t, err)
	})
}
