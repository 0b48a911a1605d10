package policy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantis/verdantis/internal/platform/db"
)

// Statement type discriminators in the policy_rules table.
const (
	ptypePolicy   = "p"
	ptypeGrouping = "g"
)

// PGStore persists the policy set in the policy_rules table. Each statement
// is one row, written synchronously on every mutation.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL-backed Store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// LoadAll reads every persisted statement.
func (s *PGStore) LoadAll(ctx context.Context) ([]Policy, []Grouping, error) {
	rows, err := s.pool.Query(ctx, `SELECT ptype, v0, v1, v2, v3 FROM policy_rules`)
	if err != nil {
		return nil, nil, fmt.Errorf("policy: query policy_rules: %w", err)
	}
	defer rows.Close()

	var policies []Policy
	var groupings []Grouping
	for rows.Next() {
		var ptype, v0, v1, v2, v3 string
		if err := rows.Scan(&ptype, &v0, &v1, &v2, &v3); err != nil {
			return nil, nil, err
		}
		switch ptype {
		case ptypePolicy:
			policies = append(policies, Policy{Role: v0, Domain: v1, Resource: v2, Action: v3})
		case ptypeGrouping:
			groupings = append(groupings, Grouping{Member: v0, Role: v1, Domain: v2})
		}
	}
	return policies, groupings, rows.Err()
}

// AddPolicy inserts a policy row; duplicates are ignored.
func (s *PGStore) AddPolicy(ctx context.Context, p Policy) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO policy_rules (ptype, v0, v1, v2, v3) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (ptype, v0, v1, v2, v3) DO NOTHING`,
		ptypePolicy, p.Role, p.Domain, p.Resource, p.Action)
	return err
}

// RemovePolicy deletes a policy row.
func (s *PGStore) RemovePolicy(ctx context.Context, p Policy) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM policy_rules WHERE ptype = $1 AND v0 = $2 AND v1 = $3 AND v2 = $4 AND v3 = $5`,
		ptypePolicy, p.Role, p.Domain, p.Resource, p.Action)
	return err
}

// AddGrouping inserts a grouping row; duplicates are ignored.
func (s *PGStore) AddGrouping(ctx context.Context, g Grouping) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO policy_rules (ptype, v0, v1, v2, v3) VALUES ($1, $2, $3, $4, '')
		 ON CONFLICT (ptype, v0, v1, v2, v3) DO NOTHING`,
		ptypeGrouping, g.Member, g.Role, g.Domain)
	return err
}

// RemoveGrouping deletes a grouping row.
func (s *PGStore) RemoveGrouping(ctx context.Context, g Grouping) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM policy_rules WHERE ptype = $1 AND v0 = $2 AND v1 = $3 AND v2 = $4`,
		ptypeGrouping, g.Member, g.Role, g.Domain)
	return err
}

// ReplaceAll swaps the persisted set inside one transaction so readers of
// the table never observe the intermediate empty state.
func (s *PGStore) ReplaceAll(ctx context.Context, policies []Policy, groupings []Grouping) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM policy_rules`); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, p := range policies {
			batch.Queue(
				`INSERT INTO policy_rules (ptype, v0, v1, v2, v3) VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (ptype, v0, v1, v2, v3) DO NOTHING`,
				ptypePolicy, p.Role, p.Domain, p.Resource, p.Action)
		}
		for _, g := range groupings {
			batch.Queue(
				`INSERT INTO policy_rules (ptype, v0, v1, v2, v3) VALUES ($1, $2, $3, $4, '')
				 ON CONFLICT (ptype, v0, v1, v2, v3) DO NOTHING`,
				ptypeGrouping, g.Member, g.Role, g.Domain)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

var _ Store = (*PGStore)(nil)
