package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	// Mirror server
	DatabaseURL    string
	WebBind        string
	JWTSecret      string
	AllowedOrigins []string
	// RequestsPerSecond limits each client address; 0 disables limiting.
	RequestsPerSecond float64

	// Chain
	RPCURL             string
	TargetChainID      uint64
	DeploymentManifest string
	TxPollInterval     time.Duration

	// Wallet CLI
	MirrorURL string

	// Discord notifier
	DiscordToken     string
	DiscordChannelID string
	// ReminderInterval of 0 turns the reminder worker off.
	ReminderInterval time.Duration

	LogLevel log.Level
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		WebBind:            getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AllowedOrigins:     splitList(getEnvDefault("ALLOWED_ORIGINS", "*")),
		RPCURL:             getEnvDefault("RPC_URL", "https://rpc.primordial.bdagscan.com"),
		DeploymentManifest: getEnvDefault("DEPLOYMENT_MANIFEST", "deployments/primordial.json"),
		MirrorURL:          getEnvDefault("MIRROR_URL", "http://localhost:3000/api"),
		DiscordToken:       os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID:   os.Getenv("DISCORD_CHANNEL_ID"),
	}

	var err error
	if cfg.TargetChainID, err = strconv.ParseUint(getEnvDefault("TARGET_CHAIN_ID", "1043"), 10, 64); err != nil {
		return nil, fmt.Errorf("TARGET_CHAIN_ID: %w", err)
	}
	if cfg.TxPollInterval, err = time.ParseDuration(getEnvDefault("TX_POLL_INTERVAL", "2s")); err != nil {
		return nil, fmt.Errorf("TX_POLL_INTERVAL: %w", err)
	}
	if cfg.ReminderInterval, err = time.ParseDuration(getEnvDefault("REMINDER_INTERVAL", "0s")); err != nil {
		return nil, fmt.Errorf("REMINDER_INTERVAL: %w", err)
	}
	if cfg.RequestsPerSecond, err = strconv.ParseFloat(getEnvDefault("RATE_LIMIT_RPS", "10"), 64); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}
	if cfg.LogLevel, err = log.ParseLevel(getEnvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if cfg.DiscordChannelID != "" && cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required when DISCORD_CHANNEL_ID is set")
	}

	return cfg, nil
}

// RequireDatabase reports the settings the mirror server cannot start without.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// NotifierEnabled reports whether Discord notifications are configured.
func (c *Config) NotifierEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
