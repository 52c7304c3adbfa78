package task

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/example/task-manager/domain/access"
	"github.com/example/task-manager/domain/apperr"
	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/events"
	"github.com/example/task-manager/pkg/validate"
	"github.com/go-monolith/mono"
	"github.com/google/uuid"
)

// CreateInput is the payload for task creation.
type CreateInput struct {
	Title       string        `json:"title" validate:"required,min=1,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	Status      domain.Status `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
}

// ListInput narrows a task listing.
type ListInput struct {
	Status domain.Status `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
}

// TaskService runs task operations for an authenticated principal.
type TaskService struct {
	repo     *TaskRepository
	eventBus mono.EventBus
	logger   *slog.Logger
}

// NewTaskService creates a new TaskService. eventBus may be nil.
func NewTaskService(repo *TaskRepository, eventBus mono.EventBus, logger *slog.Logger) *TaskService {
	return &TaskService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger.With("component", "task"),
	}
}

// Create stores a new task owned by actor.
func (s *TaskService) Create(ctx context.Context, actor access.Principal, in CreateInput) (*domain.Task, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthenticated("not authenticated")
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = domain.StatusPending
	}

	now := time.Now()
	task := &domain.Task{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		OwnerID:     actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, s.storeError(ctx, err, actor, "create-task", task.ID)
	}

	s.logger.InfoContext(ctx, "task created", "actor_id", actor.ID, "task_id", task.ID)
	if s.eventBus != nil {
		ev := events.TaskCreatedEvent{
			TaskID:    task.ID,
			Title:     task.Title,
			Status:    string(task.Status),
			OwnerID:   task.OwnerID,
			ActorID:   actor.ID,
			CreatedAt: task.CreatedAt,
		}
		if err := events.TaskCreatedV1.Publish(s.eventBus, ev, nil); err != nil {
			s.logger.WarnContext(ctx, "failed to publish event", "event", "TaskCreated", "task_id", task.ID, "error", err)
		}
	}
	return task, nil
}

// Get returns a task the actor may read.
func (s *TaskService) Get(ctx context.Context, actor access.Principal, id string) (*domain.Task, error) {
	task, err := s.load(ctx, actor, "get-task", id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, access.ActionRead, task); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns the tasks visible to actor, newest first. Non-admins only see
// their own tasks.
func (s *TaskService) List(ctx context.Context, actor access.Principal, in ListInput) ([]domain.Task, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	res := access.Task("", actor.ID)
	decision := access.Authorize(actor, access.ActionList, res)
	s.logDecision(ctx, actor, access.ActionList, res, decision)
	if err := decision.Err(access.ActionList, res); err != nil {
		return nil, err
	}

	filter := domain.Filter{Status: in.Status}
	if !actor.IsAdmin() {
		filter.OwnerID = actor.ID
	}

	tasks, err := s.repo.Find(ctx, filter)
	if err != nil {
		return nil, s.storeError(ctx, err, actor, "list-tasks", "")
	}
	return tasks, nil
}

// Update applies fields to a task the actor may update.
func (s *TaskService) Update(ctx context.Context, actor access.Principal, id string, fields domain.Fields) (*domain.Task, error) {
	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		fields.Title = &title
	}
	if err := validate.Struct(fields); err != nil {
		return nil, err
	}
	if fields.Empty() {
		return nil, apperr.Validation("Validation error", apperr.FieldError{
			Field:   "body",
			Message: "at least one of title, description or status is required",
		})
	}

	task, err := s.load(ctx, actor, "update-task", id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, access.ActionUpdate, task); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateByID(ctx, id, fields)
	if err != nil {
		return nil, s.storeError(ctx, err, actor, "update-task", id)
	}

	s.logger.InfoContext(ctx, "task updated", "actor_id", actor.ID, "task_id", id)
	if s.eventBus != nil {
		ev := events.TaskUpdatedEvent{
			TaskID:    updated.ID,
			OwnerID:   updated.OwnerID,
			ActorID:   actor.ID,
			Fields:    changedFields(fields),
			Status:    string(updated.Status),
			UpdatedAt: updated.UpdatedAt,
		}
		if err := events.TaskUpdatedV1.Publish(s.eventBus, ev, nil); err != nil {
			s.logger.WarnContext(ctx, "failed to publish event", "event", "TaskUpdated", "task_id", id, "error", err)
		}
	}
	return updated, nil
}

// Delete removes a task the actor may delete.
func (s *TaskService) Delete(ctx context.Context, actor access.Principal, id string) error {
	task, err := s.load(ctx, actor, "delete-task", id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, access.ActionDelete, task); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return s.storeError(ctx, err, actor, "delete-task", id)
	}
	if !deleted {
		// Lost a race with a concurrent delete.
		return apperr.NotFound("Task not found")
	}

	s.logger.InfoContext(ctx, "task deleted", "actor_id", actor.ID, "task_id", id)
	if s.eventBus != nil {
		ev := events.TaskDeletedEvent{TaskID: id, OwnerID: task.OwnerID, ActorID: actor.ID, DeletedAt: time.Now()}
		if err := events.TaskDeletedV1.Publish(s.eventBus, ev, nil); err != nil {
			s.logger.WarnContext(ctx, "failed to publish event", "event", "TaskDeleted", "task_id", id, "error", err)
		}
	}
	return nil
}

// DeleteByOwner removes every task owned by ownerID.
func (s *TaskService) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	n, err := s.repo.DeleteByOwner(ctx, ownerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "store failure", "op", "delete-owner-tasks", "target_id", ownerID, "error", err)
		return 0, apperr.Internal(err, "failed to delete tasks")
	}
	s.logger.InfoContext(ctx, "owner tasks deleted", "owner_id", ownerID, "count", n)
	return n, nil
}

func (s *TaskService) load(ctx context.Context, actor access.Principal, op, id string) (*domain.Task, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthenticated("not authenticated")
	}
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError(ctx, err, actor, op, id)
	}
	return task, nil
}

func (s *TaskService) authorize(ctx context.Context, actor access.Principal, action access.Action, task *domain.Task) error {
	res := access.Task(task.ID, task.OwnerID)
	decision := access.Authorize(actor, action, res)
	s.logDecision(ctx, actor, action, res, decision)
	return decision.Err(action, res)
}

func (s *TaskService) logDecision(ctx context.Context, actor access.Principal, action access.Action, res access.Resource, d access.Decision) {
	s.logger.InfoContext(ctx, "authorization decision",
		"actor_id", actor.ID,
		"actor_role", actor.Role,
		"action", action,
		"resource_kind", res.Kind,
		"resource_id", res.ID,
		"outcome", d.String(),
	)
}

// storeError maps repository failures onto the error taxonomy.
func (s *TaskService) storeError(ctx context.Context, err error, actor access.Principal, op, targetID string) error {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return apperr.NotFound("Task not found")
	case apperr.Is(err, apperr.KindValidation):
		return err
	}
	s.logger.ErrorContext(ctx, "store failure", "op", op, "actor_id", actor.ID, "target_id", targetID, "error", err)
	return apperr.Internal(err, "task store failure")
}

func changedFields(f domain.Fields) []string {
	var names []string
	if f.Title != nil {
		names = append(names, "title")
	}
	if f.Description != nil {
		names = append(names, "description")
	}
	if f.Status != nil {
		names = append(names, "status")
	}
	return names
}
