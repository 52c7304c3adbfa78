// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret is only acceptable outside production.
const DefaultJWTSecret = "your-secret-key-change-in-production"

// JWTConfig holds token signing configuration.
type JWTConfig struct {
	SecretKey            string
	Issuer               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// BootstrapAdmin describes an admin account seeded at startup. It is enabled
// when Email and Password are both set.
type BootstrapAdmin struct {
	Name     string
	Email    string
	Password string
}

// Enabled reports whether an admin should be seeded.
func (b BootstrapAdmin) Enabled() bool {
	return b.Email != "" && b.Password != ""
}

// RateLimitConfig configures the Redis-backed limiter on credential endpoints.
type RateLimitConfig struct {
	RedisAddr         string // empty disables rate limiting
	RequestsPerWindow int
	WindowSize        time.Duration
	KeyPrefix         string
}

// Enabled reports whether rate limiting is configured.
func (r RateLimitConfig) Enabled() bool {
	return r.RedisAddr != ""
}

// Config holds the configuration for the whole process.
type Config struct {
	ListenAddr         string        // HTTP listen address (default ":3000")
	Env                string        // "development" (default) or "production"
	LogLevel           string        // debug, info, warn, error (default "info")
	LogFormat          string        // text (default) or json
	UsersDBPath        string        // SQLite file for the user store
	TasksDBPath        string        // SQLite file for the task store
	CORSAllowedOrigins []string      // default: ["*"]
	ShutdownTimeout    time.Duration // default 30s

	JWT       JWTConfig
	Admin     BootstrapAdmin
	RateLimit RateLimitConfig

	// Warnings collects non-fatal problems found while loading. They are logged
	// once the logger exists.
	Warnings []string
}

// Default returns the development defaults.
func Default() *Config {
	return &Config{
		ListenAddr:         ":3000",
		Env:                "development",
		LogLevel:           "info",
		LogFormat:          "text",
		UsersDBPath:        "users.db",
		TasksDBPath:        "tasks.db",
		CORSAllowedOrigins: []string{"*"},
		ShutdownTimeout:    30 * time.Second,
		JWT: JWTConfig{
			SecretKey:            DefaultJWTSecret,
			Issuer:               "task-manager",
			AccessTokenDuration:  24 * time.Hour,
			RefreshTokenDuration: 7 * 24 * time.Hour,
		},
		Admin: BootstrapAdmin{Name: "Administrator"},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 20,
			WindowSize:        time.Minute,
			KeyPrefix:         "ratelimit:auth:",
		},
	}
}

// LoadFromEnv loads configuration from environment variables on top of
// Default().
func LoadFromEnv() (*Config, error) {
	cfg := Default()

	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.Env, "ENV")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
	setString(&cfg.UsersDBPath, "USERS_DB_PATH")
	setString(&cfg.TasksDBPath, "TASKS_DB_PATH")

	setString(&cfg.JWT.SecretKey, "JWT_SECRET")
	setString(&cfg.JWT.Issuer, "JWT_ISSUER")

	setString(&cfg.Admin.Name, "BOOTSTRAP_ADMIN_NAME")
	setString(&cfg.Admin.Email, "BOOTSTRAP_ADMIN_EMAIL")
	setString(&cfg.Admin.Password, "BOOTSTRAP_ADMIN_PASSWORD")

	setString(&cfg.RateLimit.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RateLimit.KeyPrefix, "RATE_LIMIT_KEY_PREFIX")

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&cfg.JWT.AccessTokenDuration, "JWT_ACCESS_TTL"},
		{&cfg.JWT.RefreshTokenDuration, "JWT_REFRESH_TTL"},
		{&cfg.RateLimit.WindowSize, "RATE_LIMIT_WINDOW"},
		{&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.key); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS %q: %w", v, err)
		}
		cfg.RateLimit.RequestsPerWindow = n
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.JWT.SecretKey == DefaultJWTSecret {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		c.Warnings = append(c.Warnings, "using the default JWT secret; set JWT_SECRET")
	}
	if c.JWT.AccessTokenDuration <= 0 || c.JWT.RefreshTokenDuration <= 0 {
		return fmt.Errorf("token durations must be positive")
	}
	if c.RateLimit.Enabled() && (c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowSize <= 0) {
		return fmt.Errorf("rate limit requests and window must be positive")
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		c.Warnings = append(c.Warnings, "bootstrap admin needs both BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD; skipping")
	}
	return nil
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
