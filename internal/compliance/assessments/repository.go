package assessments

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	csh "github.com/verdantis/verdantis/internal/compliance/shared"
	"github.com/verdantis/verdantis/internal/shared"
)

// Repository defines persistence operations for assessments.
type Repository interface {
	List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Assessment, int, error)
	Get(ctx context.Context, tenantID, id int64) (Assessment, error)
	Create(ctx context.Context, a Assessment) (Assessment, error)
	Update(ctx context.Context, a Assessment) (Assessment, error)
	Delete(ctx context.Context, tenantID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, tenant_id, counterparty, answers, risk_level, created_at, updated_at`

func scan(row pgx.Row) (Assessment, error) {
	var a Assessment
	err := row.Scan(&a.ID, &a.TenantID, &a.Counterparty, &a.Answers, &a.RiskLevel, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assessment{}, shared.ErrNotFound
	}
	return a, err
}

func (r *repository) List(ctx context.Context, tenantID int64, filters csh.ListFilters) ([]Assessment, int, error) {
	where := ` WHERE tenant_id = $1`
	args := []any{tenantID}
	if filters.Search != "" {
		where += ` AND counterparty ILIKE $2`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assessments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + columns + ` FROM assessments` + where +
		` ORDER BY ` + filters.OrderBy() +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, filters.Limit, filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Assessment
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Assessment, error) {
	return scan(r.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM assessments WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *repository) Create(ctx context.Context, a Assessment) (Assessment, error) {
	now := time.Now().UTC()
	return scan(r.pool.QueryRow(ctx,
		`INSERT INTO assessments (tenant_id, counterparty, answers, risk_level, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5) RETURNING `+columns,
		a.TenantID, a.Counterparty, a.Answers, a.RiskLevel, now))
}

func (r *repository) Update(ctx context.Context, a Assessment) (Assessment, error) {
	return scan(r.pool.QueryRow(ctx,
		`UPDATE assessments SET counterparty = $3, answers = $4, risk_level = $5, updated_at = $6
		 WHERE tenant_id = $1 AND id = $2 RETURNING `+columns,
		a.TenantID, a.ID, a.Counterparty, a.Answers, a.RiskLevel, time.Now().UTC()))
}

func (r *repository) Delete(ctx context.Context, tenantID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assessments WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
