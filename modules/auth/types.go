package auth

import (
	"github.com/example/task-manager/domain/access"
	"github.com/example/task-manager/domain/apperr"
	domain "github.com/example/task-manager/domain/user"
)

// Service names exposed by the auth module.
const (
	ServiceRegister     = "register"
	ServiceLogin        = "login"
	ServiceRefreshToken = "refresh-token"
	ServiceVerifyToken  = "verify-token"
	ServiceGetUser      = "get-user"
	ServiceListUsers    = "list-users"
	ServiceDeleteUser   = "delete-user"
	ServiceSetUserRole  = "set-user-role"
)

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SessionResponse is returned by register, login and refresh-token.
type SessionResponse struct {
	Session *domain.Session `json:"session,omitempty"`
	apperr.Fault
}

// VerifyTokenRequest represents a token verification request.
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyTokenResponse carries the resolved principal.
type VerifyTokenResponse struct {
	Principal access.Principal `json:"principal"`
	apperr.Fault
}

// GetUserRequest represents a get user request.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// UserResponse is returned by get-user and set-user-role.
type UserResponse struct {
	User *domain.User `json:"user,omitempty"`
	apperr.Fault
}

// ListUsersRequest represents an admin user listing.
type ListUsersRequest struct {
	Actor access.Principal `json:"actor"`
}

// ListUsersResponse represents a user listing.
type ListUsersResponse struct {
	Users []domain.User `json:"users"`
	Total int           `json:"total"`
	apperr.Fault
}

// DeleteUserRequest represents an admin account deletion.
type DeleteUserRequest struct {
	Actor  access.Principal `json:"actor"`
	UserID string           `json:"user_id"`
}

// DeleteUserResponse represents the outcome of a deletion.
type DeleteUserResponse struct {
	apperr.Fault
}

// SetUserRoleRequest represents an admin role change.
type SetUserRoleRequest struct {
	Actor  access.Principal `json:"actor"`
	UserID string           `json:"user_id"`
	Role   access.Role      `json:"role"`
}
