package auth

import (
	"time"

	"github.com/lumen-lms/lumen/internal/rbac"
)

// User represents an authenticated user account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         rbac.Role `json:"role"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Principal converts the account into the actor the authorizer reasons about.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{ID: u.ID, Role: u.Role, Name: u.Name, Email: u.Email}
}

// NewUser is the input to Repository.CreateUser.
type NewUser struct {
	Email        string
	Name         string
	Role         rbac.Role
	PasswordHash string
}
