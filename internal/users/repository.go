package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantis/verdantis/internal/platform/db"
	"github.com/verdantis/verdantis/internal/shared"
)

// Repository defines persistence operations for user management.
type Repository interface {
	List(ctx context.Context, tenantID *int64) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, user User, passwordHash string) (User, error)
	Update(ctx context.Context, user User) (User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SetSuperAdmin(ctx context.Context, id int64, super bool) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, username, email, display_name, tenant_id,
	is_super_admin, is_active, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.TenantID,
		&u.IsSuperAdmin, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	return u, err
}

// List returns users ordered by username, optionally scoped to a tenant.
func (r *PGRepository) List(ctx context.Context, tenantID *int64) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username`
	args := []any{}
	if tenantID != nil {
		query = `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 ORDER BY username`
		args = append(args, *tenantID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Get fetches a user by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// Create inserts an admin-provisioned account.
func (r *PGRepository) Create(ctx context.Context, user User, passwordHash string) (User, error) {
	now := time.Now().UTC()
	created, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, email, display_name, tenant_id,
		                    is_super_admin, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 RETURNING `+userColumns,
		user.Username, passwordHash, user.Email, user.DisplayName, user.TenantID,
		user.IsSuperAdmin, user.IsActive, now))
	if db.IsUniqueViolation(err) {
		return User{}, fmt.Errorf("username %q: %w", user.Username, shared.ErrConflict)
	}
	return created, err
}

// Update rewrites the mutable profile fields.
func (r *PGRepository) Update(ctx context.Context, user User) (User, error) {
	updated, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET email = $2, display_name = $3, updated_at = $4
		 WHERE id = $1 RETURNING `+userColumns,
		user.ID, user.Email, user.DisplayName, time.Now().UTC()))
	return updated, err
}

// SetActive toggles the account's active flag.
func (r *PGRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`,
		id, active, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetSuperAdmin toggles the account's super-admin flag.
func (r *PGRepository) SetSuperAdmin(ctx context.Context, id int64, super bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_super_admin = $2, updated_at = $3 WHERE id = $1`,
		id, super, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
