package user

import (
	"time"

	"github.com/example/task-manager/domain/access"
)

// User is an account that owns tasks.
type User struct {
	ID           string      `gorm:"primaryKey;type:text" json:"id"`
	Name         string      `gorm:"not null;size:50" json:"name" validate:"required,min=2,max=50"`
	Email        string      `gorm:"uniqueIndex;not null;size:254" json:"email" validate:"required,email,max=254"`
	PasswordHash string      `gorm:"not null;type:text" json:"-"`
	Role         access.Role `gorm:"not null;size:16;default:user" json:"role" validate:"required,oneof=user admin"`
	CreatedAt    time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Principal returns the access principal for u.
func (u *User) Principal() access.Principal {
	return access.Principal{ID: u.ID, Role: u.Role}
}

// TokenPair represents access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Session is what a successful register, login or refresh hands back.
type Session struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}
