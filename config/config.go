/*
Package config loads server configuration.

SOURCES (later wins):
  1. Defaults below
  2. .env in the working directory (optional)
  3. Process environment
  4. Command-line flags (applied by cmd/server)

VARIABLES:
  BANKROLL_PORT               HTTP port (8080)
  BANKROLL_DB                 SQLite path (bankroll.db)
  BANKROLL_BASE_URL           Public URL encoded into join QR codes
  BANKROLL_CORS_ORIGINS       Comma-separated allowed origins
  JWT_SECRET                  HMAC key for participant tokens
  JWT_TTL                     Token lifetime (24h)
  REDIS_ADDR                  host:port; empty keeps notifications in memory
  REDIS_PASSWORD, REDIS_DB
  NOTIFY_INBOX_LIMIT          Notifications kept per recipient (100)
  RECONCILE_ENABLED           Periodic pool reconciliation (true)
  RECONCILE_INTERVAL          (1m)
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        int
	DBPath      string
	BaseURL     string
	CORSOrigins []string

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	InboxLimit    int

	ReconcileEnabled  bool
	ReconcileInterval time.Duration
}

// RedisEnabled reports whether notifications go to Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads configuration from .env and the environment.
func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("port", 8080)
	v.SetDefault("db", "bankroll.db")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("jwt.secret", "dev-only-change-me")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("notify.inbox_limit", 100)
	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.interval", "1m")

	v.AutomaticEnv()
	v.BindEnv("port", "BANKROLL_PORT")
	v.BindEnv("db", "BANKROLL_DB")
	v.BindEnv("base_url", "BANKROLL_BASE_URL")
	v.BindEnv("cors_origins", "BANKROLL_CORS_ORIGINS")
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.ttl", "JWT_TTL")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("notify.inbox_limit", "NOTIFY_INBOX_LIMIT")
	v.BindEnv("reconcile.enabled", "RECONCILE_ENABLED")
	v.BindEnv("reconcile.interval", "RECONCILE_INTERVAL")

	cfg := &Config{
		Port:              v.GetInt("port"),
		DBPath:            v.GetString("db"),
		BaseURL:           strings.TrimRight(v.GetString("base_url"), "/"),
		CORSOrigins:       splitList(v.GetString("cors_origins")),
		JWTSecret:         v.GetString("jwt.secret"),
		JWTTTL:            v.GetDuration("jwt.ttl"),
		RedisAddr:         v.GetString("redis.addr"),
		RedisPassword:     v.GetString("redis.password"),
		RedisDB:           v.GetInt("redis.db"),
		InboxLimit:        v.GetInt("notify.inbox_limit"),
		ReconcileEnabled:  v.GetBool("reconcile.enabled"),
		ReconcileInterval: v.GetDuration("reconcile.interval"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.ReconcileEnabled && c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	return nil
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
