package customers

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

// Repository defines persistence operations for customers.
type Repository interface {
	List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Customer, int, error)
	Get(ctx context.Context, tenantID, id int64) (Customer, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, c Customer) (Customer, error)
	Delete(ctx context.Context, tenantID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, tenant_id, code, name, country, address, email, created_at, updated_at`

func scan(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.TenantID, &c.Code, &c.Name, &c.Country, &c.Address, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repository) List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Customer, int, error) {
	where := ` WHERE tenant_id = $1`
	args := []any{tenantID}
	if filters.Search != "" {
		where += ` AND (name ILIKE $2 OR code ILIKE $2)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + columns + ` FROM customers` + where +
		` ORDER BY ` + filters.OrderBy() +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, filters.Limit, filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Customer, error) {
	return scan(r.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM customers WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *repository) Create(ctx context.Context, c Customer) (Customer, error) {
	now := time.Now().UTC()
	created, err := scan(r.pool.QueryRow(ctx,
		`INSERT INTO customers (tenant_id, code, name, country, address, email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING `+columns,
		c.TenantID, c.Code, c.Name, c.Country, c.Address, c.Email, now))
	if db.IsUniqueViolation(err) {
		return Customer{}, fmt.Errorf("customer code %q: %w", c.Code, shared.ErrConflict)
	}
	return created, err
}

func (r *repository) Update(ctx context.Context, c Customer) (Customer, error) {
	updated, err := scan(r.pool.QueryRow(ctx,
		`UPDATE customers SET code = $3, name = $4, country = $5, address = $6, email = $7, updated_at = $8
		 WHERE tenant_id = $1 AND id = $2 RETURNING `+columns,
		c.TenantID, c.ID, c.Code, c.Name, c.Country, c.Address, c.Email, time.Now().UTC()))
	if db.IsUniqueViolation(err) {
		return Customer{}, fmt.Errorf("customer code %q: %w", c.Code, shared.ErrConflict)
	}
	return updated, err
}

func (r *repository) Delete(ctx context.Context, tenantID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
