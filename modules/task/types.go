package task

import (
	"github.com/example/task-manager/domain/access"
	"github.com/example/task-manager/domain/apperr"
	domain "github.com/example/task-manager/domain/task"
)

// Service names exposed by the task module.
const (
	ServiceCreateTask = "create-task"
	ServiceGetTask    = "get-task"
	ServiceListTasks  = "list-tasks"
	ServiceUpdateTask = "update-task"
	ServiceDeleteTask = "delete-task"
)

// CreateTaskRequest represents a create task request.
type CreateTaskRequest struct {
	Actor       access.Principal `json:"actor"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Status      domain.Status    `json:"status,omitempty"`
}

// GetTaskRequest represents a get task request.
type GetTaskRequest struct {
	Actor  access.Principal `json:"actor"`
	TaskID string           `json:"task_id"`
}

// ListTasksRequest represents a list tasks request.
type ListTasksRequest struct {
	Actor  access.Principal `json:"actor"`
	Status domain.Status    `json:"status,omitempty"`
}

// UpdateTaskRequest represents an update task request.
type UpdateTaskRequest struct {
	Actor  access.Principal `json:"actor"`
	TaskID string           `json:"task_id"`
	Fields domain.Fields    `json:"fields"`
}

// DeleteTaskRequest represents a delete task request.
type DeleteTaskRequest struct {
	Actor  access.Principal `json:"actor"`
	TaskID string           `json:"task_id"`
}

// TaskResponse is returned by create, get and update.
type TaskResponse struct {
	Task *domain.Task `json:"task,omitempty"`
	apperr.Fault
}

// ListTasksResponse represents a task listing.
type ListTasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Total int           `json:"total"`
	apperr.Fault
}

// DeleteTaskResponse represents the outcome of a deletion.
type DeleteTaskResponse struct {
	Deleted bool `json:"deleted"`
	apperr.Fault
}
