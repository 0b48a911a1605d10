package policy

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Tests inject a fresh instance per test
// instead of relying on process-wide state; it also serves single-node
// deployments that rebuild from the credential store at startup.
type MemoryStore struct {
	mu        sync.Mutex
	policies  map[Policy]struct{}
	groupings map[Grouping]struct{}
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies:  make(map[Policy]struct{}),
		groupings: make(map[Grouping]struct{}),
	}
}

// LoadAll returns the complete stored policy set.
func (m *MemoryStore) LoadAll(ctx context.Context) ([]Policy, []Grouping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	policies := make([]Policy, 0, len(m.policies))
	for p := range m.policies {
		policies = append(policies, p)
	}
	groupings := make([]Grouping, 0, len(m.groupings))
	for g := range m.groupings {
		groupings = append(groupings, g)
	}
	return policies, groupings, nil
}

// AddPolicy stores a policy statement.
func (m *MemoryStore) AddPolicy(ctx context.Context, p Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p] = struct{}{}
	return nil
}

// RemovePolicy deletes a policy statement.
func (m *MemoryStore) RemovePolicy(ctx context.Context, p Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.policies, p)
	return nil
}

// AddGrouping stores a role assignment statement.
func (m *MemoryStore) AddGrouping(ctx context.Context, g Grouping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groupings[g] = struct{}{}
	return nil
}

// RemoveGrouping deletes a role assignment statement.
func (m *MemoryStore) RemoveGrouping(ctx context.Context, g Grouping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groupings, g)
	return nil
}

// ReplaceAll swaps the stored set for the given one.
func (m *MemoryStore) ReplaceAll(ctx context.Context, policies []Policy, groupings []Grouping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies = make(map[Policy]struct{}, len(policies))
	for _, p := range policies {
		m.policies[p] = struct{}{}
	}
	m.groupings = make(map[Grouping]struct{}, len(groupings))
	for _, g := range groupings {
		m.groupings[g] = struct{}{}
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
