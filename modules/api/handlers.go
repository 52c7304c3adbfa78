package api

import (
	"github.com/example/task-manager/domain/apperr"
	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/domain/user"
	"github.com/example/task-manager/modules/audit"
	"github.com/example/task-manager/modules/auth"
	"github.com/example/task-manager/modules/task"
	"github.com/example/task-manager/pkg/validate"
	"github.com/gofiber/fiber/v2"
)

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	auth  auth.AuthPort
	tasks task.TaskPort
	audit audit.AuditPort
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authPort auth.AuthPort, taskPort task.TaskPort, auditPort audit.AuditPort) *Handlers {
	return &Handlers{
		auth:  authPort,
		tasks: taskPort,
		audit: auditPort,
	}
}

// normalizer is implemented by requests whose fields are canonicalised
// before validation.
type normalizer interface {
	normalize()
}

// parseBody decodes the JSON body into v, normalizes it and validates it.
func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apperr.Validation("Invalid request body", apperr.FieldError{
			Field:   "body",
			Message: "body must be valid JSON",
		})
	}
	if n, ok := v.(normalizer); ok {
		n.normalize()
	}
	return validate.Struct(v)
}

func authData(s *user.Session) AuthData {
	return AuthData{
		User:         s.User,
		Token:        s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		ExpiresIn:    s.Tokens.ExpiresIn,
		TokenType:    s.Tokens.TokenType,
	}
}

// Register handles user registration.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	session, err := h.auth.Register(c.UserContext(), auth.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "User registered successfully", authData(session))
}

// Login handles user login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	session, err := h.auth.Login(c.UserContext(), auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Login successful", authData(session))
}

// Refresh handles token refresh.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	session, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Token refreshed", authData(session))
}

// Me returns the authenticated user.
func (h *Handlers) Me(c *fiber.Ctx) error {
	u, err := h.auth.GetUser(c.UserContext(), principalFrom(c).ID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "User retrieved", UserData{User: u})
}

// CreateTask creates a task owned by the caller.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	var req CreateTaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	t, err := h.tasks.CreateTask(c.UserContext(), principalFrom(c), req.Title, req.Description, req.Status)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "Task created", TaskData{Task: t})
}

// ListTasks lists the tasks visible to the caller.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	var q ListTasksQuery
	if err := c.QueryParser(&q); err != nil {
		return apperr.Validation("Invalid query", apperr.FieldError{Field: "query", Message: err.Error()})
	}
	if err := validate.Struct(q); err != nil {
		return err
	}

	tasks, err := h.tasks.ListTasks(c.UserContext(), principalFrom(c), q.Status)
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return respond(c, fiber.StatusOK, "Tasks retrieved", TaskListData{Tasks: tasks, Total: len(tasks)})
}

// GetTask returns a single task.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	t, err := h.tasks.GetTask(c.UserContext(), principalFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Task retrieved", TaskData{Task: t})
}

// UpdateTask applies a partial update to a task.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	var fields domain.Fields
	if err := parseBody(c, &fields); err != nil {
		return err
	}
	if fields.Empty() {
		return apperr.Validation("Validation error", apperr.FieldError{
			Field:   "body",
			Message: "at least one of title, description or status is required",
		})
	}

	t, err := h.tasks.UpdateTask(c.UserContext(), principalFrom(c), c.Params("id"), fields)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Task updated", TaskData{Task: t})
}

// DeleteTask removes a task.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	if err := h.tasks.DeleteTask(c.UserContext(), principalFrom(c), c.Params("id")); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Task deleted", nil)
}

// ListUsers lists every user. Admin only.
func (h *Handlers) ListUsers(c *fiber.Ctx) error {
	users, err := h.auth.ListUsers(c.UserContext(), principalFrom(c))
	if err != nil {
		return err
	}
	if users == nil {
		users = []user.User{}
	}
	return respond(c, fiber.StatusOK, "Users retrieved", UserListData{Users: users, Total: len(users)})
}

// DeleteUser removes a user and, asynchronously, their tasks. Admin only.
func (h *Handlers) DeleteUser(c *fiber.Ctx) error {
	if err := h.auth.DeleteUser(c.UserContext(), principalFrom(c), c.Params("id")); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "User deleted", nil)
}

// SetUserRole changes a user's role. Admin only.
func (h *Handlers) SetUserRole(c *fiber.Ctx) error {
	var req RoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	u, err := h.auth.SetUserRole(c.UserContext(), principalFrom(c), c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "User role updated", UserData{User: u})
}

// ListAudit returns the most recent audit entries. Admin only.
func (h *Handlers) ListAudit(c *fiber.Ctx) error {
	var q AuditQuery
	if err := c.QueryParser(&q); err != nil {
		return apperr.Validation("Invalid query", apperr.FieldError{Field: "query", Message: err.Error()})
	}
	if err := validate.Struct(q); err != nil {
		return err
	}

	entries, err := h.audit.ListEntries(c.UserContext(), principalFrom(c), q.Limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return respond(c, fiber.StatusOK, "Audit entries retrieved", AuditListData{Entries: entries, Total: len(entries)})
}
