package courses

import (
	"context"
	"strings"

	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

// Store defines course persistence.
type Store interface {
	Get(ctx context.Context, id string) (Course, error)
	Create(ctx context.Context, in NewCourse) (Course, error)
	Update(ctx context.Context, c Course) (Course, error)
	Delete(ctx context.Context, id string) error
	CountEnrollments(ctx context.Context, courseID, userID string) (int, error)
}

// Service applies ownership rules on top of Store.
type Service struct {
	store Store
}

// NewService builds a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create stores a course owned by the actor. Only an ADMIN may assign another
// instructor.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, in NewCourse) (Course, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return Course{}, shared.Validation("title is required")
	}
	if in.InstructorID == "" || in.InstructorID == actor.ID {
		in.InstructorID = actor.ID
	} else if actor.Role != rbac.RoleAdmin {
		return Course{}, shared.Forbidden("cannot create courses for another instructor")
	}
	return s.store.Create(ctx, in)
}

// Get returns the course as seen by actor. Unpublished courses are reported as
// missing to everyone but the owner and admins.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, authenticated bool, id string) (View, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	var privileged bool
	if authenticated {
		_, grantErr := rbac.OwnerOrAdmin(actor, c.InstructorID)
		privileged = grantErr == nil
	}
	if !c.Published && !privileged {
		return View{}, errCourseNotFound
	}

	view := View{Course: c}
	switch {
	case privileged:
		n, err := s.store.CountEnrollments(ctx, c.ID, "")
		if err != nil {
			return View{}, err
		}
		view.Enrollments = &n
	case authenticated && actor.Role == rbac.RoleStudent:
		n, err := s.store.CountEnrollments(ctx, c.ID, actor.ID)
		if err != nil {
			return View{}, err
		}
		enrolled := n > 0
		view.Enrolled = &enrolled
	}
	return view, nil
}

// Update applies changes when actor owns the course or is an admin. The grant says
// which of the two applied.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id string, changes Changes) (Course, rbac.Grant, error) {
	if changes.Empty() {
		return Course{}, "", shared.Validation("nothing to update")
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Course{}, "", err
	}
	grant, err := rbac.OwnerOrAdmin(actor, c.InstructorID)
	if err != nil {
		return Course{}, "", err
	}
	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return Course{}, "", shared.Validation("title is required")
		}
		c.Title = title
	}
	if changes.Description != nil {
		c.Description = *changes.Description
	}
	if changes.Published != nil {
		c.Published = *changes.Published
	}
	updated, err := s.store.Update(ctx, c)
	if err != nil {
		return Course{}, "", err
	}
	return updated, grant, nil
}

// Delete removes the course under the same ownership rule as Update.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id string) (Course, rbac.Grant, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Course{}, "", err
	}
	grant, err := rbac.OwnerOrAdmin(actor, c.InstructorID)
	if err != nil {
		return Course{}, "", err
	}
	if err := s.store.Delete(ctx, c.ID); err != nil {
		return Course{}, "", err
	}
	return c, grant, nil
}
