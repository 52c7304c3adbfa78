package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/pkg/validate"
	"gorm.io/gorm"
)

// ErrTaskNotFound is returned when a task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// TaskRepository handles task persistence using GORM.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a task after checking its field constraints.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if err := validate.Struct(task); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// FindByID finds a task by ID.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &task, nil
}

// Find returns the tasks matching filter, newest first.
func (r *TaskRepository) Find(ctx context.Context, filter domain.Filter) ([]domain.Task, error) {
	query := r.db.WithContext(ctx).Model(&domain.Task{})
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	tasks := make([]domain.Task, 0)
	if err := query.Order("created_at desc").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateByID applies the set fields to the task and returns the result. The
// merged record is validated before it is written.
func (r *TaskRepository) UpdateByID(ctx context.Context, id string, fields domain.Fields) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("failed to find task: %w", err)
		}

		if fields.Title != nil {
			task.Title = *fields.Title
		}
		if fields.Description != nil {
			task.Description = *fields.Description
		}
		if fields.Status != nil {
			task.Status = *fields.Status
		}
		task.UpdatedAt = time.Now()

		if err := validate.Struct(&task); err != nil {
			return err
		}
		if err := tx.Save(&task).Error; err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteByID removes a task. It reports whether a row was deleted.
func (r *TaskRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&domain.Task{}, "id = ?", id)
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete task: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteByOwner removes every task owned by ownerID and returns the count.
func (r *TaskRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&domain.Task{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}
