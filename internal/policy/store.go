package policy

import "context"

// Store persists the policy set. Every engine mutation writes through to the
// store before the in-memory index is updated, so an allow decision can
// never be lost on crash.
type Store interface {
	// LoadAll returns the complete persisted policy set.
	LoadAll(ctx context.Context) ([]Policy, []Grouping, error)

	// AddPolicy and AddGrouping are idempotent: persisting a statement that
	// already exists is a no-op.
	AddPolicy(ctx context.Context, p Policy) error
	RemovePolicy(ctx context.Context, p Policy) error
	AddGrouping(ctx context.Context, g Grouping) error
	RemoveGrouping(ctx context.Context, g Grouping) error

	// ReplaceAll atomically swaps the persisted set for the given one.
	ReplaceAll(ctx context.Context, policies []Policy, groupings []Grouping) error
}
