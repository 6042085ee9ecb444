package users

import (
	"time"

	"github.com/lumen-lms/lumen/internal/rbac"
)

// User represents a user account for management.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      rbac.Role `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// activeAdmin reports whether u counts toward the "at least one admin" invariant.
func (u User) activeAdmin() bool {
	return u.IsActive && u.Role == rbac.RoleAdmin
}
