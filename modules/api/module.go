package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/task-manager/config"
	"github.com/example/task-manager/modules/audit"
	"github.com/example/task-manager/modules/auth"
	"github.com/example/task-manager/modules/task"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// HealthChecker is a module whose health is reported on /health.
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) mono.HealthStatus
}

// APIModule is the HTTP API module.
type APIModule struct {
	app      *fiber.App
	cfg      *config.Config
	logger   *slog.Logger
	authPort auth.AuthPort
	taskPort task.TaskPort
	auditLog audit.AuditPort
	limiter  fiber.Handler
	checks   []HealthChecker
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// Option configures an APIModule.
type Option func(*APIModule)

// WithCredentialLimiter guards register, login and refresh with h.
func WithCredentialLimiter(h fiber.Handler) Option {
	return func(m *APIModule) { m.limiter = h }
}

// WithHealthChecks adds modules to the /health report.
func WithHealthChecks(checks ...HealthChecker) Option {
	return func(m *APIModule) { m.checks = append(m.checks, checks...) }
}

// NewModule creates a new APIModule.
func NewModule(cfg *config.Config, logger *slog.Logger, opts ...Option) *APIModule {
	m := &APIModule{
		cfg:    cfg,
		logger: logger.With("module", "api"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"auth", "task", "audit"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authPort = auth.NewAuthAdapter(container)
	case "task":
		m.taskPort = task.NewTaskAdapter(container)
	case "audit":
		m.auditLog = audit.NewAuditAdapter(container)
	}
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.authPort == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.taskPort == nil {
		return fmt.Errorf("task dependency not set")
	}
	if m.auditLog == nil {
		return fmt.Errorf("audit dependency not set")
	}

	m.app = m.newApp()

	go func() {
		if err := m.app.Listen(m.cfg.ListenAddr); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "addr", m.cfg.ListenAddr, "env", m.cfg.Env)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("shutting down HTTP server")
	return m.app.ShutdownWithContext(ctx)
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr": m.cfg.ListenAddr,
		},
	}
}

func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(m.logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	if !m.cfg.IsProduction() {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(m.cfg.CORSAllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	m.setupRoutes(app)
	return app
}

// setupRoutes configures all API routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	handlers := NewHandlers(m.authPort, m.taskPort, m.auditLog)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": statusSuccess, "message": "Task API running"})
	})
	app.Get("/health", m.healthHandler)

	v1 := app.Group("/api/v1")

	// Public auth routes
	limit := func(c *fiber.Ctx) error { return c.Next() }
	if m.limiter != nil {
		limit = m.limiter
	}
	authRoutes := v1.Group("/auth")
	authRoutes.Post("/register", limit, handlers.Register)
	authRoutes.Post("/login", limit, handlers.Login)
	authRoutes.Post("/refresh", limit, handlers.Refresh)

	// Protected routes
	requireAuth := AuthMiddleware(m.authPort)
	authRoutes.Get("/me", requireAuth, handlers.Me)

	tasks := v1.Group("/tasks", requireAuth)
	tasks.Post("/", handlers.CreateTask)
	tasks.Get("/", handlers.ListTasks)
	tasks.Get("/:id", handlers.GetTask)
	tasks.Put("/:id", handlers.UpdateTask)
	tasks.Delete("/:id", handlers.DeleteTask)

	users := v1.Group("/users", requireAuth)
	users.Get("/", handlers.ListUsers)
	users.Delete("/:id", handlers.DeleteUser)
	users.Patch("/:id/role", handlers.SetUserRole)

	v1.Get("/audit", requireAuth, handlers.ListAudit)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(ErrorEnvelope{Status: statusError, Message: "Route not found"})
	})
}

func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	healthy := true
	modules := make(map[string]mono.HealthStatus, len(m.checks))
	for _, check := range m.checks {
		status := check.Health(c.UserContext())
		modules[check.Name()] = status
		healthy = healthy && status.Healthy
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(Envelope{
			Status:  statusError,
			Message: "degraded",
			Data:    fiber.Map{"modules": modules},
		})
	}
	return respond(c, fiber.StatusOK, "healthy", fiber.Map{"modules": modules})
}
