package courses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lumen-lms/lumen/internal/shared"
)

// DBTX is satisfied by pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists courses in PostgreSQL.
type Repository struct {
	db DBTX
}

// NewRepository constructs a repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

var errCourseNotFound = shared.NotFound("course not found")

const courseColumns = `id::text, title, description, instructor_id::text, published, created_at, updated_at`

// Get loads a course by id.
func (r *Repository) Get(ctx context.Context, id string) (Course, error) {
	uid, ok := parseUUID(id)
	if !ok {
		return Course{}, errCourseNotFound
	}
	c, err := scanCourse(r.db.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, errCourseNotFound
	}
	if err != nil {
		return Course{}, fmt.Errorf("courses: get: %w", err)
	}
	return c, nil
}

// Create inserts a course.
func (r *Repository) Create(ctx context.Context, in NewCourse) (Course, error) {
	instructor, ok := parseUUID(in.InstructorID)
	if !ok {
		return Course{}, shared.Validation("invalid instructorId")
	}
	c, err := scanCourse(r.db.QueryRow(ctx, `
INSERT INTO courses (title, description, instructor_id, published)
VALUES ($1, $2, $3, $4)
RETURNING `+courseColumns, in.Title, in.Description, instructor, in.Published))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Course{}, shared.Validation("invalid instructorId")
		}
		return Course{}, fmt.Errorf("courses: create: %w", err)
	}
	return c, nil
}

// Update writes the mutable fields of c back.
func (r *Repository) Update(ctx context.Context, c Course) (Course, error) {
	uid, ok := parseUUID(c.ID)
	if !ok {
		return Course{}, errCourseNotFound
	}
	out, err := scanCourse(r.db.QueryRow(ctx, `
UPDATE courses SET title = $2, description = $3, published = $4, updated_at = NOW()
WHERE id = $1
RETURNING `+courseColumns, uid, c.Title, c.Description, c.Published))
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, errCourseNotFound
	}
	if err != nil {
		return Course{}, fmt.Errorf("courses: update: %w", err)
	}
	return out, nil
}

// Delete removes a course and, by cascade, its enrollments.
func (r *Repository) Delete(ctx context.Context, id string) error {
	uid, ok := parseUUID(id)
	if !ok {
		return errCourseNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM courses WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("courses: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errCourseNotFound
	}
	return nil
}

// CountEnrollments counts enrollments in the course; a non-empty userID restricts the
// count to that user.
func (r *Repository) CountEnrollments(ctx context.Context, courseID, userID string) (int, error) {
	cid, ok := parseUUID(courseID)
	if !ok {
		return 0, nil
	}
	var n int
	var err error
	if userID == "" {
		err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`, cid).Scan(&n)
	} else {
		uid, ok := parseUUID(userID)
		if !ok {
			return 0, nil
		}
		err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND user_id = $2`, cid, uid).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("courses: count enrollments: %w", err)
	}
	return n, nil
}

func scanCourse(row pgx.Row) (Course, error) {
	var (
		c                    Course
		createdAt, updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.InstructorID, &c.Published, &createdAt, &updatedAt); err != nil {
		return Course{}, err
	}
	c.CreatedAt = createdAt.Time
	c.UpdatedAt = updatedAt.Time
	return c, nil
}

func parseUUID(s string) (pgtype.UUID, bool) {
	var id pgtype.UUID
	if err := id.Scan(s); err != nil {
		return pgtype.UUID{}, false
	}
	return id, true
}
