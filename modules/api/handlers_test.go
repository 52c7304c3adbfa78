package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/task-manager/config"
	"github.com/example/task-manager/domain/access"
	taskdomain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/domain/user"
	"github.com/example/task-manager/modules/audit"
	"github.com/example/task-manager/modules/auth"
	"github.com/example/task-manager/modules/task"
	"github.com/example/task-manager/pkg/database"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// localAuth serves auth.AuthPort from an in-process AuthService.
type localAuth struct{ svc *auth.AuthService }

func (l localAuth) Register(ctx context.Context, req auth.RegisterRequest) (*user.Session, error) {
	return l.svc.Register(ctx, auth.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
}

func (l localAuth) Login(ctx context.Context, req auth.LoginRequest) (*user.Session, error) {
	return l.svc.Login(ctx, auth.LoginInput{Email: req.Email, Password: req.Password})
}

func (l localAuth) Refresh(ctx context.Context, token string) (*user.Session, error) {
	return l.svc.Refresh(ctx, token)
}

func (l localAuth) VerifyToken(ctx context.Context, token string) (access.Principal, error) {
	return l.svc.VerifyToken(ctx, token)
}

func (l localAuth) GetUser(ctx context.Context, id string) (*user.User, error) {
	return l.svc.GetUser(ctx, id)
}

func (l localAuth) ListUsers(ctx context.Context, actor access.Principal) ([]user.User, error) {
	return l.svc.ListUsers(ctx, actor)
}

func (l localAuth) DeleteUser(ctx context.Context, actor access.Principal, id string) error {
	return l.svc.DeleteUser(ctx, actor, id)
}

func (l localAuth) SetUserRole(ctx context.Context, actor access.Principal, id string, role access.Role) (*user.User, error) {
	return l.svc.SetUserRole(ctx, actor, id, auth.RoleInput{Role: role})
}

// localTasks serves task.TaskPort from an in-process TaskService.
type localTasks struct{ svc *task.TaskService }

func (l localTasks) CreateTask(ctx context.Context, actor access.Principal, title, description string, status taskdomain.Status) (*taskdomain.Task, error) {
	return l.svc.Create(ctx, actor, task.CreateInput{Title: title, Description: description, Status: status})
}

func (l localTasks) GetTask(ctx context.Context, actor access.Principal, id string) (*taskdomain.Task, error) {
	return l.svc.Get(ctx, actor, id)
}

func (l localTasks) ListTasks(ctx context.Context, actor access.Principal, status taskdomain.Status) ([]taskdomain.Task, error) {
	return l.svc.List(ctx, actor, task.ListInput{Status: status})
}

func (l localTasks) UpdateTask(ctx context.Context, actor access.Principal, id string, fields taskdomain.Fields) (*taskdomain.Task, error) {
	return l.svc.Update(ctx, actor, id, fields)
}

func (l localTasks) DeleteTask(ctx context.Context, actor access.Principal, id string) error {
	return l.svc.Delete(ctx, actor, id)
}

// localAudit serves audit.AuditPort from an in-process AuditModule.
type localAudit struct{ m *audit.AuditModule }

func (l localAudit) ListEntries(ctx context.Context, actor access.Principal, limit int) ([]audit.Entry, error) {
	return l.m.List(ctx, actor, limit)
}

type testServer struct {
	t       *testing.T
	app     *fiber.App
	authSvc *auth.AuthService
}

const (
	adminEmail    = "root@example.com"
	adminPassword = "adminpass1"
)

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.Env = "production"
	cfg.JWT.SecretKey = "api-test-secret"

	usersDB, err := database.OpenSQLite(database.MemoryPath, &user.User{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(usersDB) })
	tasksDB, err := database.OpenSQLite(database.MemoryPath, &taskdomain.Task{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(tasksDB) })

	authSvc := auth.NewAuthService(
		auth.NewUserRepository(usersDB),
		auth.NewPasswordHasherWithCost(bcrypt.MinCost),
		auth.NewJWTManager(cfg.JWT),
		nil,
		logger,
	)
	require.NoError(t, authSvc.SeedAdmin(context.Background(), config.BootstrapAdmin{
		Name: "Admin", Email: adminEmail, Password: adminPassword,
	}))
	taskSvc := task.NewTaskService(task.NewTaskRepository(tasksDB), nil, logger)

	m := NewModule(cfg, logger)
	m.authPort = localAuth{svc: authSvc}
	m.taskPort = localTasks{svc: taskSvc}
	m.auditLog = localAudit{m: audit.NewModule(logger, 0)}

	return &testServer{t: t, app: m.newApp(), authSvc: authSvc}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (s *testServer) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *testServer) register(name, email string) (string, user.User) {
	s.t.Helper()

	code, env := s.do(http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
		"name": name, "email": email, "password": "password123",
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)

	var data AuthData
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.Token, data.User
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()

	code, env := s.do(http.MethodPost, "/api/v1/auth/login", "", fiber.Map{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, code, env.Message)

	var data AuthData
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.Token
}

func (s *testServer) createTask(token string, body fiber.Map) taskdomain.Task {
	s.t.Helper()

	code, env := s.do(http.MethodPost, "/api/v1/tasks", token, body)
	require.Equal(s.t, http.StatusCreated, code, env.Message)

	var data TaskData
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return *data.Task
}

func TestBannerAndNotFound(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Task API running", env.Message)

	code, env = s.do(http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "Route not found", env.Message)
}

func TestRegisterAndMe(t *testing.T) {
	s := newTestServer(t)

	token, u := s.register("Alice", "alice@example.com")
	assert.Equal(t, access.RoleUser, u.Role)

	code, env := s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), "password")

	var data UserData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "alice@example.com", data.User.Email)

	code, env = s.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Not authorized, no token provided", env.Message)
}

func TestRegister_ValidationAndConflict(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/v1/auth/register", "", fiber.Map{"name": "A", "email": "bad", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Len(t, env.Errors, 3)

	s.register("Alice", "alice@example.com")
	code, env = s.do(http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
		"name": "Alice", "email": "alice@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", env.Status)

	code, env = s.do(http.MethodPost, "/api/v1/auth/login", "", fiber.Map{"email": "alice@example.com", "password": "wrongpass"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", env.Message)
}

func TestTaskRoundTrip(t *testing.T) {
	s := newTestServer(t)
	token, u := s.register("Alice", "alice@example.com")

	created := s.createTask(token, fiber.Map{"title": "Buy milk", "status": "pending"})
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, u.ID, created.OwnerID)
	assert.False(t, created.CreatedAt.IsZero())

	code, env := s.do(http.MethodGet, "/api/v1/tasks/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, code)
	var data TaskData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Buy milk", data.Task.Title)
	assert.Equal(t, taskdomain.StatusPending, data.Task.Status)

	code, env = s.do(http.MethodPut, "/api/v1/tasks/"+created.ID, token, fiber.Map{"status": "completed", "owner": "someone-else"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, taskdomain.StatusCompleted, data.Task.Status)
	assert.Equal(t, u.ID, data.Task.OwnerID)

	code, _ = s.do(http.MethodPut, "/api/v1/tasks/"+created.ID, token, fiber.Map{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/v1/tasks", token, fiber.Map{"title": ""})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTaskDeleteScenario(t *testing.T) {
	s := newTestServer(t)
	u1Token, _ := s.register("User One", "u1@example.com")
	u2Token, _ := s.register("User Two", "u2@example.com")
	adminToken := s.login(adminEmail, adminPassword)

	x := s.createTask(u1Token, fiber.Map{"title": "X"})

	code, _ := s.do(http.MethodDelete, "/api/v1/tasks/"+x.ID, u2Token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.do(http.MethodDelete, "/api/v1/tasks/"+x.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Task deleted", env.Message)
	assert.Equal(t, "null", string(env.Data))

	code, _ = s.do(http.MethodGet, "/api/v1/tasks/"+x.ID, u1Token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListTasksScoping(t *testing.T) {
	s := newTestServer(t)
	u1Token, _ := s.register("User One", "u1@example.com")
	u2Token, _ := s.register("User Two", "u2@example.com")
	adminToken := s.login(adminEmail, adminPassword)

	s.createTask(u1Token, fiber.Map{"title": "one"})
	s.createTask(u1Token, fiber.Map{"title": "two", "status": "completed"})
	s.createTask(u2Token, fiber.Map{"title": "three", "status": "completed"})

	list := func(token, query string) (int, TaskListData) {
		code, env := s.do(http.MethodGet, "/api/v1/tasks"+query, token, nil)
		var data TaskListData
		if code == http.StatusOK {
			require.NoError(t, json.Unmarshal(env.Data, &data))
		}
		return code, data
	}

	code, mine := list(u1Token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, mine.Total)
	assert.Equal(t, "two", mine.Tasks[0].Title, "newest first")

	_, all := list(adminToken, "")
	assert.Equal(t, 3, all.Total)

	_, done := list(adminToken, "?status=completed")
	assert.Equal(t, 2, done.Total)

	code, _ = list(adminToken, "?status=archived")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUsersAdminOnlyAndDemotion(t *testing.T) {
	s := newTestServer(t)
	userToken, u := s.register("Bob", "bob@example.com")
	adminToken := s.login(adminEmail, adminPassword)

	code, _ := s.do(http.MethodGet, "/api/v1/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.do(http.MethodGet, "/api/v1/users", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), "password")
	var users UserListData
	require.NoError(t, json.Unmarshal(env.Data, &users))
	assert.Equal(t, 2, users.Total)
	assert.Equal(t, "bob@example.com", users.Users[0].Email, "newest first")

	code, _ = s.do(http.MethodPatch, "/api/v1/users/"+u.ID+"/role", adminToken, fiber.Map{"role": "root"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPatch, "/api/v1/users/"+u.ID+"/role", adminToken, fiber.Map{"role": "admin"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/api/v1/users", userToken, nil)
	assert.Equal(t, http.StatusOK, code, "promotion applies to the next request")

	code, _ = s.do(http.MethodPatch, "/api/v1/users/"+u.ID+"/role", adminToken, fiber.Map{"role": "user"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/api/v1/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, code, "demotion applies to the next request")
}

func TestDeleteUser(t *testing.T) {
	s := newTestServer(t)
	userToken, u := s.register("Bob", "bob@example.com")
	adminToken := s.login(adminEmail, adminPassword)

	code, env := s.do(http.MethodDelete, "/api/v1/users/"+u.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "User deleted", env.Message)

	code, env = s.do(http.MethodGet, "/api/v1/auth/me", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "User not found", env.Message)

	code, _ = s.do(http.MethodDelete, "/api/v1/users/"+u.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", env.Message)
}

func TestAuditAdminOnly(t *testing.T) {
	s := newTestServer(t)
	userToken, _ := s.register("Bob", "bob@example.com")
	adminToken := s.login(adminEmail, adminPassword)

	code, _ := s.do(http.MethodGet, "/api/v1/audit", userToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.do(http.MethodGet, "/api/v1/audit?limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	var data AuditListData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotNil(t, data.Entries)

	code, env = s.do(http.MethodGet, "/api/v1/audit?limit=-1", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "limit", env.Errors[0].Field)
}

func TestRegister_NormalizesEmailBeforeValidation(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
		"name": " Alice ", "email": " Alice@Example.COM ", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var data AuthData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "alice@example.com", data.User.Email)
	assert.Equal(t, "Alice", data.User.Name)

	code, env = s.do(http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"email": "  ALICE@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusOK, code, env.Message)
}

func TestRegister_PasswordLimitIsInBytes(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/v1/auth/register", "", fiber.Map{
		"name": "Alice", "email": "alice@example.com", "password": strings.Repeat("é", 40),
	})
	assert.Equal(t, http.StatusBadRequest, code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "password", env.Errors[0].Field)
}
