package declarations

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

// Repository defines persistence operations for declarations.
type Repository interface {
	List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Declaration, int, error)
	Get(ctx context.Context, tenantID, id int64) (Declaration, error)
	Create(ctx context.Context, d Declaration) (Declaration, error)
	Update(ctx context.Context, d Declaration) (Declaration, error)
	Delete(ctx context.Context, tenantID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, tenant_id, reference, supplier_id, commodity, status, submitted_at, created_at, updated_at`

func scan(row pgx.Row) (Declaration, error) {
	var d Declaration
	err := row.Scan(&d.ID, &d.TenantID, &d.Reference, &d.SupplierID, &d.Commodity, &d.Status, &d.SubmittedAt, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Declaration{}, shared.ErrNotFound
	}
	return d, err
}

func mapWriteErr(d Declaration, err error) (Declaration, error) {
	switch {
	case db.IsUniqueViolation(err):
		return Declaration{}, fmt.Errorf("declaration reference %q: %w", d.Reference, shared.ErrConflict)
	case db.IsForeignKeyViolation(err):
		return Declaration{}, fmt.Errorf("supplier %d does not exist: %w", d.SupplierID, shared.ErrValidation)
	}
	return d, err
}

func (r *repository) List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Declaration, int, error) {
	where := ` WHERE tenant_id = $1`
	args := []any{tenantID}
	if filters.Search != "" {
		where += ` AND (reference ILIKE $2 OR commodity ILIKE $2)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM declarations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + columns + ` FROM declarations` + where +
		` ORDER BY ` + filters.OrderBy() +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, filters.Limit, filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Declaration
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Declaration, error) {
	return scan(r.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM declarations WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *repository) Create(ctx context.Context, d Declaration) (Declaration, error) {
	now := time.Now().UTC()
	created, err := scan(r.pool.QueryRow(ctx,
		`INSERT INTO declarations (tenant_id, reference, supplier_id, commodity, status, submitted_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING `+columns,
		d.TenantID, d.Reference, d.SupplierID, d.Commodity, d.Status, d.SubmittedAt, now))
	return mapWriteErr(created, err)
}

func (r *repository) Update(ctx context.Context, d Declaration) (Declaration, error) {
	updated, err := scan(r.pool.QueryRow(ctx,
		`UPDATE declarations SET reference = $3, supplier_id = $4, commodity = $5, status = $6, submitted_at = $7, updated_at = $8
		 WHERE tenant_id = $1 AND id = $2 RETURNING `+columns,
		d.TenantID, d.ID, d.Reference, d.SupplierID, d.Commodity, d.Status, d.SubmittedAt, time.Now().UTC()))
	return mapWriteErr(updated, err)
}

func (r *repository) Delete(ctx context.Context, tenantID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM declarations WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
