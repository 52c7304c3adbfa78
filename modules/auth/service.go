package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/example/task-manager/config"
	"github.com/example/task-manager/domain/access"
	"github.com/example/task-manager/domain/apperr"
	domain "github.com/example/task-manager/domain/user"
	"github.com/example/task-manager/events"
	"github.com/example/task-manager/pkg/validate"
	"github.com/go-monolith/mono"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// RegisterInput is the payload for account registration.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
}

// LoginInput is the payload for login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RoleInput is the payload for an admin role change.
type RoleInput struct {
	Role access.Role `json:"role" validate:"required,oneof=user admin"`
}

// AuthService handles authentication and user administration.
type AuthService struct {
	repo     *UserRepository
	hasher   *PasswordHasher
	jwt      *JWTManager
	eventBus mono.EventBus
	logger   *slog.Logger
	lookups  singleflight.Group
}

// NewAuthService creates a new AuthService. eventBus may be nil, in which case
// no events are published.
func NewAuthService(repo *UserRepository, hasher *PasswordHasher, jwt *JWTManager, eventBus mono.EventBus, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:     repo,
		hasher:   hasher,
		jwt:      jwt,
		eventBus: eventBus,
		logger:   logger.With("component", "auth"),
	}
}

// NormalizeEmail returns the canonical form under which emails are stored
// and compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account with the user role and returns a session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Session, error) {
	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, in, access.RoleUser)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	if s.eventBus != nil {
		ev := events.UserRegisteredEvent{
			UserID:    user.ID,
			Email:     user.Email,
			Role:      string(user.Role),
			CreatedAt: user.CreatedAt,
		}
		if err := events.UserRegisteredV1.Publish(s.eventBus, ev, nil); err != nil {
			s.logger.WarnContext(ctx, "failed to publish event", "event", "UserRegistered", "user_id", user.ID, "error", err)
		}
	}

	return s.newSession(user)
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput, role access.Role) (*domain.User, error) {
	exists, err := s.repo.EmailExists(ctx, in.Email)
	if err != nil {
		s.logger.ErrorContext(ctx, "store failure", "op", "register", "error", err)
		return nil, apperr.Internal(err, "failed to check email")
	}
	if exists {
		return nil, apperr.Conflict("User with this email already exists")
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, apperr.Conflict("User with this email already exists")
		}
		if apperr.Is(err, apperr.KindValidation) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "store failure", "op", "register", "error", err)
		return nil, apperr.Internal(err, "failed to create user")
	}
	return user, nil
}

// Login authenticates a user and returns a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*domain.Session, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.Unauthenticated("Invalid credentials")
		}
		s.logger.ErrorContext(ctx, "store failure", "op", "login", "error", err)
		return nil, apperr.Internal(err, "failed to find user")
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.logger.InfoContext(ctx, "login rejected", "user_id", user.ID)
		return nil, apperr.Unauthenticated("Invalid credentials")
	}

	return s.newSession(user)
}

// Refresh exchanges a refresh token for a new session. The user must still
// exist and the new tokens carry the current role.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperr.Unauthenticated("Invalid or expired refresh token")
	}

	user, err := s.lookup(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.Unauthenticated("Invalid or expired refresh token")
		}
		s.logger.ErrorContext(ctx, "store failure", "op", "refresh", "actor_id", claims.UserID, "error", err)
		return nil, apperr.Internal(err, "failed to find user")
	}

	return s.newSession(user)
}

// VerifyToken resolves a bearer credential to the principal it names. The role
// comes from the store, not the token.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (access.Principal, error) {
	if token == "" {
		return access.Principal{}, apperr.Unauthenticated("Not authorized, no token provided")
	}

	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return access.Principal{}, apperr.Unauthenticated("Not authorized, token expired")
		}
		return access.Principal{}, apperr.Unauthenticated("Not authorized, token failed")
	}

	user, err := s.lookup(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.InfoContext(ctx, "token for unknown principal", "actor_id", claims.UserID)
			return access.Principal{}, apperr.Unauthenticated("User not found")
		}
		s.logger.ErrorContext(ctx, "store failure", "op", "verify-token", "actor_id", claims.UserID, "error", err)
		return access.Principal{}, apperr.Internal(err, "failed to resolve principal")
	}

	if claims.Role != user.Role {
		s.logger.DebugContext(ctx, "token role is stale", "actor_id", user.ID, "token_role", claims.Role, "role", user.Role)
	}
	return user.Principal(), nil
}

// lookup coalesces concurrent reads of the same user. Nothing is cached once
// the read completes. The shared read is detached from the cancellation of
// whichever caller started it.
func (s *AuthService) lookup(ctx context.Context, userID string) (*domain.User, error) {
	ch := s.lookups.DoChan(userID, func() (any, error) {
		return s.repo.FindByID(context.WithoutCancel(ctx), userID)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	user := *res.Val.(*domain.User)
	return &user, nil
}

// GetUser returns the user with the given ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		s.logger.ErrorContext(ctx, "store failure", "op", "get-user", "target_id", userID, "error", err)
		return nil, apperr.Internal(err, "failed to find user")
	}
	return user, nil
}

// ListUsers returns every user, newest first. Admin only.
func (s *AuthService) ListUsers(ctx context.Context, actor access.Principal) ([]domain.User, error) {
	if err := s.authorize(ctx, actor, access.ActionList, access.User("")); err != nil {
		return nil, err
	}

	users, err := s.repo.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "store failure", "op", "list-users", "actor_id", actor.ID, "error", err)
		return nil, apperr.Internal(err, "failed to list users")
	}
	return users, nil
}

// DeleteUser removes a user. Admin only. The last remaining admin cannot be
// deleted.
func (s *AuthService) DeleteUser(ctx context.Context, actor access.Principal, userID string) error {
	if err := s.authorize(ctx, actor, access.ActionDelete, access.User(userID)); err != nil {
		return err
	}

	target, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if target.Role == access.RoleAdmin {
		if err := s.ensureAnotherAdmin(ctx, actor, "delete-user"); err != nil {
			return err
		}
	}

	deleted, err := s.repo.DeleteByID(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "store failure", "op", "delete-user", "actor_id", actor.ID, "target_id", userID, "error", err)
		return apperr.Internal(err, "failed to delete user")
	}
	if !deleted {
		return apperr.NotFound("User not found")
	}

	s.logger.InfoContext(ctx, "user deleted", "actor_id", actor.ID, "target_id", userID)
	if s.eventBus != nil {
		ev := events.UserDeletedEvent{UserID: userID, ActorID: actor.ID, DeletedAt: time.Now()}
		if err := events.UserDeletedV1.Publish(s.eventBus, ev, nil); err != nil {
			s.logger.WarnContext(ctx, "failed to publish event", "event", "UserDeleted", "target_id", userID, "error", err)
		}
	}
	return nil
}

// SetUserRole changes a user's role. Admin only. The change applies to the
// target's next request.
func (s *AuthService) SetUserRole(ctx context.Context, actor access.Principal, userID string, in RoleInput) (*domain.User, error) {
	if err := s.authorize(ctx, actor, access.ActionUpdate, access.User(userID)); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	target, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Role == in.Role {
		return target, nil
	}
	if target.Role == access.RoleAdmin {
		if err := s.ensureAnotherAdmin(ctx, actor, "set-user-role"); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateRole(ctx, userID, in.Role); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		s.logger.ErrorContext(ctx, "store failure", "op", "set-user-role", "actor_id", actor.ID, "target_id", userID, "error", err)
		return nil, apperr.Internal(err, "failed to update user role")
	}

	oldRole := target.Role
	target.Role = in.Role
	s.logger.InfoContext(ctx, "user role changed", "actor_id", actor.ID, "target_id", userID, "old_role", oldRole, "new_role", in.Role)
	if s.eventBus != nil {
		ev := events.UserRoleChangedEvent{
			UserID:    userID,
			ActorID:   actor.ID,
			OldRole:   string(oldRole),
			NewRole:   string(in.Role),
			ChangedAt: time.Now(),
		}
		if err := events.UserRoleChangedV1.Publish(s.eventBus, ev, nil); err != nil {
			s.logger.WarnContext(ctx, "failed to publish event", "event", "UserRoleChanged", "target_id", userID, "error", err)
		}
	}
	return target, nil
}

// SeedAdmin creates the bootstrap admin if no account uses its email yet.
func (s *AuthService) SeedAdmin(ctx context.Context, admin config.BootstrapAdmin) error {
	if !admin.Enabled() {
		return nil
	}

	in := RegisterInput{
		Name:     strings.TrimSpace(admin.Name),
		Email:    NormalizeEmail(admin.Email),
		Password: admin.Password,
	}
	if err := validate.Struct(in); err != nil {
		return err
	}

	user, err := s.createUser(ctx, in, access.RoleAdmin)
	if apperr.Is(err, apperr.KindConflict) {
		s.logger.InfoContext(ctx, "bootstrap admin already present", "email", in.Email)
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "bootstrap admin created", "user_id", user.ID)
	return nil
}

func (s *AuthService) ensureAnotherAdmin(ctx context.Context, actor access.Principal, op string) error {
	admins, err := s.repo.CountByRole(ctx, access.RoleAdmin)
	if err != nil {
		s.logger.ErrorContext(ctx, "store failure", "op", op, "actor_id", actor.ID, "error", err)
		return apperr.Internal(err, "failed to count admins")
	}
	if admins <= 1 {
		return apperr.Conflict("Cannot remove the last admin")
	}
	return nil
}

func (s *AuthService) authorize(ctx context.Context, actor access.Principal, action access.Action, res access.Resource) error {
	decision := access.Authorize(actor, action, res)
	s.logger.InfoContext(ctx, "authorization decision",
		"actor_id", actor.ID,
		"actor_role", actor.Role,
		"action", action,
		"resource_kind", res.Kind,
		"resource_id", res.ID,
		"outcome", decision.String(),
	)
	return decision.Err(action, res)
}

func (s *AuthService) newSession(user *domain.User) (*domain.Session, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate access token")
	}

	refreshToken, err := s.jwt.GenerateRefreshToken(user.ID, user.Role)
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate refresh token")
	}

	return &domain.Session{
		User: *user,
		Tokens: domain.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    s.jwt.AccessTokenDuration(),
			TokenType:    "Bearer",
		},
	}, nil
}
