package users

import (
	"context"

	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

// MutateFunc computes the next state of current. activeAdmins counts every active
// ADMIN, current included.
type MutateFunc func(current User, activeAdmins int) (User, error)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]User, int, error)
	Mutate(ctx context.Context, id string, fn MutateFunc) (before, after User, err error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns one page of users.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	users, total, err := s.repo.ListUsers(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// ChangeRole assigns role to the target. Nobody may change their own role, and the
// last active ADMIN cannot be demoted.
func (s *Service) ChangeRole(ctx context.Context, actor rbac.Principal, targetID string, role rbac.Role) (before, after User, err error) {
	if !role.Valid() {
		return User{}, User{}, shared.Validation("unknown role")
	}
	if actor.ID == targetID {
		return User{}, User{}, shared.Forbidden("cannot change your own role")
	}
	return s.repo.Mutate(ctx, targetID, func(current User, activeAdmins int) (User, error) {
		if current.activeAdmin() && role != rbac.RoleAdmin && activeAdmins <= 1 {
			return User{}, shared.Conflict("cannot demote the last active admin")
		}
		current.Role = role
		return current, nil
	})
}

// SetActive suspends or reactivates the target. Accounts with ADMIN or MODERATOR
// roles can only be changed by an ADMIN.
func (s *Service) SetActive(ctx context.Context, actor rbac.Principal, targetID string, active bool) (before, after User, err error) {
	if actor.ID == targetID {
		return User{}, User{}, shared.Forbidden("cannot change your own status")
	}
	return s.repo.Mutate(ctx, targetID, func(current User, activeAdmins int) (User, error) {
		if current.Role == rbac.RoleAdmin || current.Role == rbac.RoleModerator {
			if actor.Role != rbac.RoleAdmin {
				return User{}, shared.ErrInsufficientPermissions
			}
		}
		if !active && current.activeAdmin() && activeAdmins <= 1 {
			return User{}, shared.Conflict("cannot suspend the last active admin")
		}
		current.IsActive = active
		return current, nil
	})
}
