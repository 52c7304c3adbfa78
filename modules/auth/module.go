package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/example/task-manager/config"
	"github.com/example/task-manager/domain/apperr"
	domain "github.com/example/task-manager/domain/user"
	"github.com/example/task-manager/events"
	"github.com/example/task-manager/pkg/database"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/gorm"
)

// AuthModule provides authentication and user administration services.
type AuthModule struct {
	db         *gorm.DB
	service    *AuthService
	eventBus   mono.EventBus
	logger     *slog.Logger
	dbPath     string
	jwt        config.JWTConfig
	admin      config.BootstrapAdmin
	bcryptCost int
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)
var _ mono.EventEmitterModule = (*AuthModule)(nil)

// Option configures an AuthModule.
type Option func(*AuthModule)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(m *AuthModule) { m.bcryptCost = cost }
}

// WithBootstrapAdmin seeds an admin account on start.
func WithBootstrapAdmin(admin config.BootstrapAdmin) Option {
	return func(m *AuthModule) { m.admin = admin }
}

// NewModule creates a new AuthModule backed by the SQLite file at dbPath.
func NewModule(dbPath string, jwtCfg config.JWTConfig, logger *slog.Logger, opts ...Option) *AuthModule {
	m := &AuthModule{
		logger:     logger.With("module", "auth"),
		dbPath:     dbPath,
		jwt:        jwtCfg,
		bcryptCost: DefaultBcryptCost,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// SetEventBus is called by the framework before Start.
func (m *AuthModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *AuthModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserRegisteredV1.ToBase(),
		events.UserDeletedV1.ToBase(),
		events.UserRoleChangedV1.ToBase(),
	}
}

// Start opens the user store and seeds the bootstrap admin.
func (m *AuthModule) Start(ctx context.Context) error {
	db, err := database.OpenSQLite(m.dbPath, &domain.User{})
	if err != nil {
		return err
	}
	m.db = db

	m.service = NewAuthService(
		NewUserRepository(db),
		NewPasswordHasherWithCost(m.bcryptCost),
		NewJWTManager(m.jwt),
		m.eventBus,
		m.logger,
	)

	if err := m.service.SeedAdmin(ctx, m.admin); err != nil {
		return fmt.Errorf("failed to seed bootstrap admin: %w", err)
	}

	m.logger.Info("module started", "database", m.dbPath)
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	if err := database.Close(m.db); err != nil {
		m.logger.Warn("failed to close database", "error", err)
	}
	m.logger.Info("module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dbPath,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRegister, json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRegister, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLogin, json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceLogin, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRefreshToken, json.Unmarshal, json.Marshal, m.handleRefresh,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRefreshToken, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceVerifyToken, json.Unmarshal, json.Marshal, m.handleVerifyToken,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceVerifyToken, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetUser, json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetUser, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListUsers, json.Unmarshal, json.Marshal, m.handleListUsers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListUsers, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDeleteUser, json.Unmarshal, json.Marshal, m.handleDeleteUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDeleteUser, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSetUserRole, json.Unmarshal, json.Marshal, m.handleSetUserRole,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSetUserRole, err)
	}

	m.logger.Info("registered services",
		"services", []string{
			ServiceRegister, ServiceLogin, ServiceRefreshToken, ServiceVerifyToken,
			ServiceGetUser, ServiceListUsers, ServiceDeleteUser, ServiceSetUserRole,
		})
	return nil
}

// Handlers report domain failures inside the reply so the error kind survives
// the trip back to the caller.

func (m *AuthModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.Register(ctx, RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		return SessionResponse{Fault: apperr.FaultOf(err)}, nil
	}
	return SessionResponse{Session: session}, nil
}

func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.Login(ctx, LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return SessionResponse{Fault: apperr.FaultOf(err)}, nil
	}
	return SessionResponse{Session: session}, nil
}

func (m *AuthModule) handleRefresh(ctx context.Context, req RefreshRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return SessionResponse{Fault: apperr.FaultOf(err)}, nil
	}
	return SessionResponse{Session: session}, nil
}

func (m *AuthModule) handleVerifyToken(ctx context.Context, req VerifyTokenRequest, _ *mono.Msg) (VerifyTokenResponse, error) {
	principal, err := m.service.VerifyToken(ctx, req.Token)
	if err != nil {
		return VerifyTokenResponse{Fault: apperr.FaultOf(err)}, nil
	}
	return VerifyTokenResponse{Principal: principal}, nil
}

func (m *AuthModule) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		return UserResponse{Fault: apperr.FaultOf(err)}, nil
	}
	return UserResponse{User: user}, nil
}

func (m *AuthModule) handleListUsers(ctx context.Context, req ListUsersRequest, _ *mono.Msg) (ListUsersResponse, error) {
	users, err := m.service.ListUsers(ctx, req.Actor)
	if err != nil {
		return ListUsersResponse{Fault: apperr.FaultOf(err)}, nil
	}
	return ListUsersResponse{Users: users, Total: len(users)}, nil
}

func (m *AuthModule) handleDeleteUser(ctx context.Context, req DeleteUserRequest, _ *mono.Msg) (DeleteUserResponse, error) {
	err := m.service.DeleteUser(ctx, req.Actor, req.UserID)
	return DeleteUserResponse{Fault: apperr.FaultOf(err)}, nil
}

func (m *AuthModule) handleSetUserRole(ctx context.Context, req SetUserRoleRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.SetUserRole(ctx, req.Actor, req.UserID, RoleInput{Role: req.Role})
	if err != nil {
		return UserResponse{Fault: apperr.FaultOf(err)}, nil
	}
	return UserResponse{User: user}, nil
}
