package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	csh "github.com/verdantis/verdantis/internal/compliance/shared"
	"github.com/verdantis/verdantis/internal/platform/db"
	"github.com/verdantis/verdantis/internal/shared"
)

// Repository defines persistence operations for suppliers.
type Repository interface {
	List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, tenantID, id int64) (Supplier, error)
	Create(ctx context.Context, s Supplier) (Supplier, error)
	Update(ctx context.Context, s Supplier) (Supplier, error)
	Delete(ctx context.Context, tenantID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, tenant_id, code, name, country, commodity, geo_notes, created_at, updated_at`

func scan(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.TenantID, &s.Code, &s.Name, &s.Country, &s.Commodity, &s.GeoNotes, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repository) List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Supplier, int, error) {
	where := ` WHERE tenant_id = $1`
	args := []any{tenantID}
	if filters.Search != "" {
		where += ` AND (name ILIKE $2 OR code ILIKE $2)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + columns + ` FROM suppliers` + where +
		` ORDER BY ` + filters.OrderBy() +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, filters.Limit, filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Supplier, error) {
	return scan(r.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM suppliers WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *repository) Create(ctx context.Context, s Supplier) (Supplier, error) {
	now := time.Now().UTC()
	created, err := scan(r.pool.QueryRow(ctx,
		`INSERT INTO suppliers (tenant_id, code, name, country, commodity, geo_notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING `+columns,
		s.TenantID, s.Code, s.Name, s.Country, s.Commodity, s.GeoNotes, now))
	if db.IsUniqueViolation(err) {
		return Supplier{}, fmt.Errorf("supplier code %q: %w", s.Code, shared.ErrConflict)
	}
	return created, err
}

func (r *repository) Update(ctx context.Context, s Supplier) (Supplier, error) {
	updated, err := scan(r.pool.QueryRow(ctx,
		`UPDATE suppliers SET code = $3, name = $4, country = $5, commodity = $6, geo_notes = $7, updated_at = $8
		 WHERE tenant_id = $1 AND id = $2 RETURNING `+columns,
		s.TenantID, s.ID, s.Code, s.Name, s.Country, s.Commodity, s.GeoNotes, time.Now().UTC()))
	if db.IsUniqueViolation(err) {
		return Supplier{}, fmt.Errorf("supplier code %q: %w", s.Code, shared.ErrConflict)
	}
	return updated, err
}

func (r *repository) Delete(ctx context.Context, tenantID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM suppliers WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
