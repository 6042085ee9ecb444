package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-lms/lumen/internal/platform/db"
	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id::text, email, name, role, is_active, created_at, updated_at`

// ListUsers returns one page of users ordered by e-mail, plus the total count.
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY LOWER(email) LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// Mutate loads the user and the number of active admins under a serializable
// transaction, lets fn compute the new state, and writes role and is_active back.
func (r *Repository) Mutate(ctx context.Context, id string, fn MutateFunc) (before, after User, err error) {
	var uid pgtype.UUID
	if err := uid.Scan(id); err != nil {
		return User{}, User{}, shared.NotFound("user not found")
	}
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, uid))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.NotFound("user not found")
			}
			return err
		}
		var admins int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = 'ADMIN' AND is_active`).Scan(&admins); err != nil {
			return fmt.Errorf("users: count admins: %w", err)
		}
		next, err := fn(current, admins)
		if err != nil {
			return err
		}
		updated, err := scanUser(tx.QueryRow(ctx,
			`UPDATE users SET role = $2, is_active = $3, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns,
			uid, string(next.Role), next.IsActive))
		if err != nil {
			return fmt.Errorf("users: update: %w", err)
		}
		before, after = current, updated
		return nil
	})
	return before, after, err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Role = rbac.Role(role)
	return u, nil
}

var _ RepositoryPort = (*Repository)(nil)
