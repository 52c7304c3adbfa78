package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/task-manager/domain/access"
	"github.com/example/task-manager/domain/apperr"
	domain "github.com/example/task-manager/domain/user"
	"github.com/example/task-manager/modules/auth"
	"github.com/gofiber/fiber/v2"
)

// mockAuthPort implements auth.AuthPort for testing
type mockAuthPort struct {
	verifyTokenFunc func(ctx context.Context, token string) (access.Principal, error)
}

var _ auth.AuthPort = (*mockAuthPort)(nil)

var errNotImplemented = errors.New("not implemented")

func (m *mockAuthPort) VerifyToken(ctx context.Context, token string) (access.Principal, error) {
	if m.verifyTokenFunc != nil {
		return m.verifyTokenFunc(ctx, token)
	}
	return access.Principal{}, errNotImplemented
}

func (m *mockAuthPort) Register(context.Context, auth.RegisterRequest) (*domain.Session, error) {
	return nil, errNotImplemented
}

func (m *mockAuthPort) Login(context.Context, auth.LoginRequest) (*domain.Session, error) {
	return nil, errNotImplemented
}

func (m *mockAuthPort) Refresh(context.Context, string) (*domain.Session, error) {
	return nil, errNotImplemented
}

func (m *mockAuthPort) GetUser(context.Context, string) (*domain.User, error) {
	return nil, errNotImplemented
}

func (m *mockAuthPort) ListUsers(context.Context, access.Principal) ([]domain.User, error) {
	return nil, errNotImplemented
}

func (m *mockAuthPort) DeleteUser(context.Context, access.Principal, string) error {
	return errNotImplemented
}

func (m *mockAuthPort) SetUserRole(context.Context, access.Principal, string, access.Role) (*domain.User, error) {
	return nil, errNotImplemented
}

func newMiddlewareApp(port auth.AuthPort) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler(slog.New(slog.NewTextHandler(io.Discard, nil))),
	})
	app.Use(AuthMiddleware(port))
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "authenticated"})
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		authHeader     string
		mockAuth       *mockAuthPort
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "missing authorization header",
			authHeader:     "",
			mockAuth:       &mockAuthPort{},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"Not authorized, no token provided"`,
		},
		{
			name:           "invalid authorization format - no bearer",
			authHeader:     "Basic token123",
			mockAuth:       &mockAuthPort{},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"Not authorized, token failed"`,
		},
		{
			name:           "bearer without token",
			authHeader:     "Bearer ",
			mockAuth:       &mockAuthPort{},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"Not authorized, no token provided"`,
		},
		{
			name:       "rejected token",
			authHeader: "Bearer invalid-token",
			mockAuth: &mockAuthPort{
				verifyTokenFunc: func(ctx context.Context, token string) (access.Principal, error) {
					return access.Principal{}, apperr.Unauthenticated("Not authorized, token failed")
				},
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"Not authorized, token failed"`,
		},
		{
			name:       "transport failure",
			authHeader: "Bearer valid-token",
			mockAuth: &mockAuthPort{
				verifyTokenFunc: func(ctx context.Context, token string) (access.Principal, error) {
					return access.Principal{}, errors.New("verify-token request failed: nats: timeout")
				},
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"Internal server error"`,
		},
		{
			name:       "valid token",
			authHeader: "Bearer valid-token",
			mockAuth: &mockAuthPort{
				verifyTokenFunc: func(ctx context.Context, token string) (access.Principal, error) {
					return access.Principal{ID: "user-123", Role: access.RoleUser}, nil
				},
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"authenticated"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newMiddlewareApp(tt.mockAuth)

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("status = %v, want %v", resp.StatusCode, tt.expectedStatus)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("io.ReadAll() error = %v", err)
			}

			if tt.expectedBody != "" {
				bodyStr := string(body)
				if !strings.Contains(bodyStr, tt.expectedBody) {
					t.Errorf("body = %v, want to contain %v", bodyStr, tt.expectedBody)
				}
				if strings.Contains(bodyStr, "nats") {
					t.Errorf("body = %v leaks internal error detail", bodyStr)
				}
			}
		})
	}
}

func TestAuthMiddleware_PrincipalContext(t *testing.T) {
	mockAuth := &mockAuthPort{
		verifyTokenFunc: func(ctx context.Context, token string) (access.Principal, error) {
			if token != "valid-token" {
				t.Errorf("token = %q, want %q", token, "valid-token")
			}
			return access.Principal{ID: "user-456", Role: access.RoleAdmin}, nil
		},
	}

	app := fiber.New()
	app.Use(AuthMiddleware(mockAuth))

	var captured access.Principal
	app.Get("/test", func(c *fiber.Ctx) error {
		captured = principalFrom(c)
		return c.JSON(fiber.Map{"status": "ok"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "bearer valid-token")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if captured.ID != "user-456" {
		t.Errorf("principal.ID = %v, want %v", captured.ID, "user-456")
	}
	if captured.Role != access.RoleAdmin {
		t.Errorf("principal.Role = %v, want %v", captured.Role, access.RoleAdmin)
	}
}
