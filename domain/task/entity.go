package task

import "time"

// Status represents the state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a unit of work owned by exactly one user.
type Task struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	Title       string    `gorm:"not null;size:200" json:"title" validate:"required,min=1,max=200"`
	Description string    `gorm:"size:2000" json:"description" validate:"max=2000"`
	Status      Status    `gorm:"not null;size:16;index;default:pending" json:"status" validate:"required,oneof=pending in-progress completed"`
	OwnerID     string    `gorm:"not null;index;type:text" json:"owner" validate:"required"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// Filter narrows a task query. Empty fields do not filter.
type Filter struct {
	OwnerID string `json:"owner_id,omitempty"`
	Status  Status `json:"status,omitempty"`
}

// Fields holds the writable task fields. Nil pointers are left unchanged on
// update. The owner is not a field and never changes after creation.
type Fields struct {
	Title       *string `json:"title,omitempty" validate:"omitnil,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitnil,max=2000"`
	Status      *Status `json:"status,omitempty" validate:"omitnil,oneof=pending in-progress completed"`
}

// Empty reports whether no field is set.
func (f Fields) Empty() bool {
	return f.Title == nil && f.Description == nil && f.Status == nil
}
