package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/task-manager/domain/access"
	domain "github.com/example/task-manager/domain/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// TaskPort defines the task operations available to other modules.
type TaskPort interface {
	CreateTask(ctx context.Context, actor access.Principal, title, description string, status domain.Status) (*domain.Task, error)
	GetTask(ctx context.Context, actor access.Principal, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, actor access.Principal, status domain.Status) ([]domain.Task, error)
	UpdateTask(ctx context.Context, actor access.Principal, taskID string, fields domain.Fields) (*domain.Task, error)
	DeleteTask(ctx context.Context, actor access.Principal, taskID string) error
}

// taskAdapter wraps ServiceContainer for type-safe cross-module communication.
type taskAdapter struct {
	container mono.ServiceContainer
}

// NewTaskAdapter creates a new adapter for task services.
// container is the ServiceContainer from the task module received via SetDependencyServiceContainer.
func NewTaskAdapter(container mono.ServiceContainer) TaskPort {
	if container == nil {
		panic("task adapter requires non-nil ServiceContainer")
	}
	return &taskAdapter{container: container}
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

func (a *taskAdapter) CreateTask(ctx context.Context, actor access.Principal, title, description string, status domain.Status) (*domain.Task, error) {
	req := CreateTaskRequest{Actor: actor, Title: title, Description: description, Status: status}
	var resp TaskResponse
	if err := call(ctx, a.container, ServiceCreateTask, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

func (a *taskAdapter) GetTask(ctx context.Context, actor access.Principal, taskID string) (*domain.Task, error) {
	req := GetTaskRequest{Actor: actor, TaskID: taskID}
	var resp TaskResponse
	if err := call(ctx, a.container, ServiceGetTask, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

func (a *taskAdapter) ListTasks(ctx context.Context, actor access.Principal, status domain.Status) ([]domain.Task, error) {
	req := ListTasksRequest{Actor: actor, Status: status}
	var resp ListTasksResponse
	if err := call(ctx, a.container, ServiceListTasks, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (a *taskAdapter) UpdateTask(ctx context.Context, actor access.Principal, taskID string, fields domain.Fields) (*domain.Task, error) {
	req := UpdateTaskRequest{Actor: actor, TaskID: taskID, Fields: fields}
	var resp TaskResponse
	if err := call(ctx, a.container, ServiceUpdateTask, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

func (a *taskAdapter) DeleteTask(ctx context.Context, actor access.Principal, taskID string) error {
	req := DeleteTaskRequest{Actor: actor, TaskID: taskID}
	var resp DeleteTaskResponse
	if err := call(ctx, a.container, ServiceDeleteTask, &req, &resp); err != nil {
		return err
	}
	return resp.Err()
}
