package tenants

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

// Repository defines persistence operations for tenants.
type Repository interface {
	List(ctx context.Context) ([]Tenant, error)
	Get(ctx context.Context, id int64) (Tenant, error)
	GetByName(ctx context.Context, name string) (Tenant, error)
	Create(ctx context.Context, t Tenant) (Tenant, error)
	Update(ctx context.Context, t Tenant) (Tenant, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const tenantColumns = `id, name, display_name, description, created_at, updated_at`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, shared.ErrNotFound
	}
	return t, err
}

// List returns all tenants ordered by name.
func (r *PGRepository) List(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get fetches a tenant by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

// GetByName fetches a tenant by its unique name.
func (r *PGRepository) GetByName(ctx context.Context, name string) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE name = $1`, name))
}

// Create inserts a tenant; name must be globally unique.
func (r *PGRepository) Create(ctx context.Context, t Tenant) (Tenant, error) {
	now := time.Now().UTC()
	created, err := scanTenant(r.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, display_name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4) RETURNING `+tenantColumns,
		t.Name, t.DisplayName, t.Description, now))
	if db.IsUniqueViolation(err) {
		return Tenant{}, fmt.Errorf("tenant %q: %w", t.Name, shared.ErrConflict)
	}
	return created, err
}

// Update updates a tenant's display fields.
func (r *PGRepository) Update(ctx context.Context, t Tenant) (Tenant, error) {
	updated, err := scanTenant(r.pool.QueryRow(ctx,
		`UPDATE tenants SET display_name = $2, description = $3, updated_at = $4
		 WHERE id = $1 RETURNING `+tenantColumns,
		t.ID, t.DisplayName, t.Description, time.Now().UTC()))
	return updated, err
}

var _ Repository = (*PGRepository)(nil)
