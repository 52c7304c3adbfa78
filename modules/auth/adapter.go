package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/task-manager/domain/access"
	domain "github.com/example/task-manager/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort defines the interface for authentication operations.
// This is the port that other modules use to access auth functionality.
type AuthPort interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.Session, error)
	Login(ctx context.Context, req LoginRequest) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	VerifyToken(ctx context.Context, token string) (access.Principal, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context, actor access.Principal) ([]domain.User, error)
	DeleteUser(ctx context.Context, actor access.Principal, userID string) error
	SetUserRole(ctx context.Context, actor access.Principal, userID string, role access.Role) (*domain.User, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// call sends req to service and decodes the reply into resp. Domain failures
// travel inside resp; only transport failures are returned here.
func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}

// Register creates an account and returns its session.
func (a *AuthAdapter) Register(ctx context.Context, req RegisterRequest) (*domain.Session, error) {
	var resp SessionResponse
	if err := call(ctx, a.container, ServiceRegister, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Session, nil
}

// Login authenticates by email and password.
func (a *AuthAdapter) Login(ctx context.Context, req LoginRequest) (*domain.Session, error) {
	var resp SessionResponse
	if err := call(ctx, a.container, ServiceLogin, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Session, nil
}

// Refresh exchanges a refresh token for a new session.
func (a *AuthAdapter) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	req := RefreshRequest{RefreshToken: refreshToken}
	var resp SessionResponse
	if err := call(ctx, a.container, ServiceRefreshToken, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Session, nil
}

// VerifyToken resolves an access token to a principal.
func (a *AuthAdapter) VerifyToken(ctx context.Context, token string) (access.Principal, error) {
	req := VerifyTokenRequest{Token: token}
	var resp VerifyTokenResponse
	if err := call(ctx, a.container, ServiceVerifyToken, &req, &resp); err != nil {
		return access.Principal{}, err
	}
	if err := resp.Err(); err != nil {
		return access.Principal{}, err
	}
	return resp.Principal, nil
}

// GetUser retrieves a user by ID.
func (a *AuthAdapter) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	req := GetUserRequest{UserID: userID}
	var resp UserResponse
	if err := call(ctx, a.container, ServiceGetUser, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// ListUsers returns every user, newest first.
func (a *AuthAdapter) ListUsers(ctx context.Context, actor access.Principal) ([]domain.User, error) {
	req := ListUsersRequest{Actor: actor}
	var resp ListUsersResponse
	if err := call(ctx, a.container, ServiceListUsers, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// DeleteUser removes an account.
func (a *AuthAdapter) DeleteUser(ctx context.Context, actor access.Principal, userID string) error {
	req := DeleteUserRequest{Actor: actor, UserID: userID}
	var resp DeleteUserResponse
	if err := call(ctx, a.container, ServiceDeleteUser, &req, &resp); err != nil {
		return err
	}
	return resp.Err()
}

// SetUserRole changes an account's role.
func (a *AuthAdapter) SetUserRole(ctx context.Context, actor access.Principal, userID string, role access.Role) (*domain.User, error) {
	req := SetUserRoleRequest{Actor: actor, UserID: userID, Role: role}
	var resp UserResponse
	if err := call(ctx, a.container, ServiceSetUserRole, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.User, nil
}
