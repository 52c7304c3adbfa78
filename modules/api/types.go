package api

import (
	"strings"

	"github.com/example/task-manager/domain/access"
	"github.com/example/task-manager/domain/apperr"
	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/domain/user"
	"github.com/example/task-manager/modules/audit"
	"github.com/example/task-manager/modules/auth"
)

// Envelope is the body of every successful response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ErrorEnvelope is the body of every failed response.
type ErrorEnvelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
}

func (r *RegisterRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = auth.NormalizeEmail(r.Email)
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) normalize() {
	r.Email = auth.NormalizeEmail(r.Email)
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// CreateTaskRequest represents a task creation request.
type CreateTaskRequest struct {
	Title       string        `json:"title" validate:"required,min=1,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	Status      domain.Status `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
}

// ListTasksQuery holds the task listing query parameters.
type ListTasksQuery struct {
	Status domain.Status `query:"status" json:"status" validate:"omitempty,oneof=pending in-progress completed"`
}

// AuditQuery holds the audit listing query parameters.
type AuditQuery struct {
	Limit int `query:"limit" json:"limit" validate:"omitempty,min=1,max=1000"`
}

// RoleRequest represents an admin role change.
type RoleRequest struct {
	Role access.Role `json:"role" validate:"required,oneof=user admin"`
}

// AuthData is returned by register, login and refresh.
type AuthData struct {
	User         user.User `json:"user"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	TokenType    string    `json:"token_type"`
}

// UserData wraps a single user.
type UserData struct {
	User *user.User `json:"user"`
}

// UserListData wraps a user listing.
type UserListData struct {
	Users []user.User `json:"users"`
	Total int         `json:"total"`
}

// TaskData wraps a single task.
type TaskData struct {
	Task *domain.Task `json:"task"`
}

// TaskListData wraps a task listing.
type TaskListData struct {
	Tasks []domain.Task `json:"tasks"`
	Total int           `json:"total"`
}

// AuditListData wraps an audit listing, newest first.
type AuditListData struct {
	Entries []audit.Entry `json:"entries"`
	Total   int           `json:"total"`
}
