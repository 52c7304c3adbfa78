package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/task-manager/config"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Module owns the Redis client backing the credential endpoint limiter.
type Module struct {
	client     *redis.Client
	middleware *Middleware
	cfg        config.RateLimitConfig
	logger     *slog.Logger
}

var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the module. The middleware is usable before Start; until
// Redis answers, requests pass through.
func NewModule(cfg config.RateLimitConfig, logger *slog.Logger) *Module {
	logger = logger.With("module", "ratelimit")
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	limiter := NewSlidingWindowLimiter(client, cfg.RequestsPerWindow, cfg.WindowSize, cfg.KeyPrefix)

	return &Module{
		client:     client,
		middleware: NewMiddleware(limiter, cfg.RequestsPerWindow, logger),
		cfg:        cfg,
		logger:     logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ratelimit"
}

// Start verifies the Redis connection.
func (m *Module) Start(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	m.logger.Info("module started",
		"redis", m.cfg.RedisAddr,
		"limit", m.cfg.RequestsPerWindow,
		"window", m.cfg.WindowSize.String())
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if err := m.client.Close(); err != nil {
		m.logger.Warn("error closing Redis connection", "error", err)
	}
	m.logger.Info("module stopped")
	return nil
}

// Health verifies the Redis connection is healthy.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"redis": m.cfg.RedisAddr},
	}
}

// Handler returns the Fiber middleware for the credential endpoints.
func (m *Module) Handler() fiber.Handler {
	return m.middleware.Handler()
}
