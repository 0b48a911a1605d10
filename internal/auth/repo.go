package auth

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

// Repository defines persistence operations for authentication.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByExternalID(ctx context.Context, externalID string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	LinkExternalID(ctx context.Context, userID int64, externalID string) error
	TouchLastLogin(ctx context.Context, userID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, username, password_hash, email, display_name, tenant_id,
	is_super_admin, is_active, external_id, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.DisplayName, &u.TenantID,
		&u.IsSuperAdmin, &u.IsActive, &u.ExternalID, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByID fetches a user by ID.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByUsername fetches a user by unique username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// FindByExternalID fetches a user linked to an identity-provider subject.
func (r *PGRepository) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
}

// Create inserts a new user.
func (r *PGRepository) Create(ctx context.Context, user *User) (*User, error) {
	now := time.Now().UTC()
	created, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, email, display_name, tenant_id,
		                    is_super_admin, is_active, external_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 RETURNING `+userColumns,
		user.Username, user.PasswordHash, user.Email, user.DisplayName, user.TenantID,
		user.IsSuperAdmin, user.IsActive, user.ExternalID, now))
	if db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("username %q: %w", user.Username, shared.ErrConflict)
	}
	return created, err
}

// LinkExternalID attaches an identity-provider subject to a local account.
func (r *PGRepository) LinkExternalID(ctx context.Context, userID int64, externalID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET external_id = $2, updated_at = $3 WHERE id = $1`,
		userID, externalID, time.Now().UTC())
	return err
}

// TouchLastLogin stamps the user's last successful login.
func (r *PGRepository) TouchLastLogin(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET last_login = $2 WHERE id = $1`,
		userID, time.Now().UTC())
	return err
}

var _ Repository = (*PGRepository)(nil)
