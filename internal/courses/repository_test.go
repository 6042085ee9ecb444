package courses_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lms/lumen/internal/courses"
	"github.com/lumen-lms/lumen/internal/shared"
	"github.com/lumen-lms/lumen/internal/testing/dbtest"
)

func TestRepositoryRoundTrip(t *testing.T) {
	pool := dbtest.NewPool(t)
	ctx := context.Background()

	var instructorID, studentID string
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (email, name, role, password_hash) VALUES ('inst@example.com', 'Inst', 'INSTRUCTOR', 'x') RETURNING id::text`).Scan(&instructorID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (email, name, role, password_hash) VALUES ('stu@example.com', 'Stu', 'STUDENT', 'x') RETURNING id::text`).Scan(&studentID))

	repo := courses.NewRepository(pool)
	c, err := repo.Create(ctx, courses.NewCourse{Title: "Go 101", InstructorID: instructorID})
	require.NoError(t, err)
	assert.False(t, c.Published)
	assert.False(t, c.CreatedAt.IsZero())

	_, err = repo.Create(ctx, courses.NewCourse{Title: "x", InstructorID: "00000000-0000-0000-0000-000000000000"})
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))

	c.Published = true
	c.Title = "Go 102"
	updated, err := repo.Update(ctx, c)
	require.NoError(t, err)
	assert.True(t, updated.Published)
	assert.Equal(t, "Go 102", updated.Title)

	_, err = pool.Exec(ctx, `INSERT INTO enrollments (course_id, user_id) VALUES ($1::uuid, $2::uuid)`, c.ID, studentID)
	require.NoError(t, err)

	n, err := repo.CountEnrollments(ctx, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = repo.CountEnrollments(ctx, c.ID, instructorID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, repo.Delete(ctx, c.ID))
	_, err = repo.Get(ctx, c.ID)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	assert.Equal(t, shared.KindNotFound, shared.KindOf(repo.Delete(ctx, c.ID)))
	_, err = repo.Get(ctx, "not-a-uuid")
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}
