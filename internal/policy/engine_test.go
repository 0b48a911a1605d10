package policy_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantis/verdantis/internal/policy"
)

func newEngine(t *testing.T) *policy.Engine {
	t.Helper()
	engine, err := policy.NewEngine(context.Background(), policy.NewMemoryStore())
	require.NoError(t, err)
	return engine
}

func TestEnforceTenantScoped(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "user:1", Role: "role:10", Domain: "1"}))
	require.NoError(t, engine.AddPolicy(ctx, policy.Policy{Role: "role:10", Domain: "1", Resource: "page:dashboard", Action: "read"}))

	assert.True(t, engine.Enforce("user:1", "1", "page:dashboard", "read"))
	assert.False(t, engine.Enforce("user:1", "1", "page:dashboard", "write"))
	assert.False(t, engine.Enforce("user:1", "2", "page:dashboard", "read"), "no assignment in tenant 2")
	assert.False(t, engine.Enforce("user:2", "1", "page:dashboard", "read"), "unassigned user")
}

func TestEnforceGlobalPolicy(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	// alice holds viewer in tenant 1 only; viewer's grant is global.
	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "user:1", Role: "role:viewer", Domain: "1"}))
	require.NoError(t, engine.AddPolicy(ctx, policy.Policy{Role: "role:viewer", Domain: policy.Wildcard, Resource: "page:dashboard", Action: "read"}))

	assert.True(t, engine.Enforce("user:1", "1", "page:dashboard", "read"))
	assert.False(t, engine.Enforce("user:1", "1", "page:dashboard", "write"))
	assert.False(t, engine.Enforce("user:1", "2", "page:dashboard", "read"),
		"global grant does not extend the assignment beyond tenant 1")
}

func TestEnforceRoleInheritance(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	// manager's parent is admin; admin may delete api:users.
	require.NoError(t, engine.AddPolicy(ctx, policy.Policy{Role: "role:admin", Domain: "5", Resource: "api:users", Action: "delete"}))
	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "role:manager", Role: "role:admin", Domain: policy.Wildcard}))
	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "user:7", Role: "role:manager", Domain: "5"}))

	assert.True(t, engine.Enforce("user:7", "5", "api:users", "delete"))
	assert.False(t, engine.Enforce("user:7", "6", "api:users", "delete"))
}

func TestEnforceTransitiveInheritance(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	require.NoError(t, engine.AddPolicy(ctx, policy.Policy{Role: "role:1", Domain: "1", Resource: "api:reports", Action: "read"}))
	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "role:2", Role: "role:1", Domain: policy.Wildcard}))
	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "role:3", Role: "role:2", Domain: policy.Wildcard}))
	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "user:1", Role: "role:3", Domain: "1"}))

	assert.True(t, engine.Enforce("user:1", "1", "api:reports", "read"))
}

func TestSuperAdminWildcardGrant(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	require.NoError(t, engine.AddPolicy(ctx, policy.Policy{Role: policy.SuperAdminRole, Domain: policy.Wildcard, Resource: policy.Wildcard, Action: policy.Wildcard}))
	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "user:1", Role: policy.SuperAdminRole, Domain: policy.Wildcard}))

	assert.True(t, engine.Enforce("user:1", "1", "page:dashboard", "read"))
	assert.True(t, engine.Enforce("user:1", "42", "api:anything", "delete"))
	assert.False(t, engine.Enforce("user:2", "1", "page:dashboard", "read"))
}

func TestAddPolicyIdempotent(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	p := policy.Policy{Role: "role:1", Domain: "1", Resource: "api:users", Action: "read"}
	require.NoError(t, engine.AddPolicy(ctx, p))
	require.NoError(t, engine.AddPolicy(ctx, p))

	policies, _ := engine.Size()
	assert.Equal(t, 1, policies)

	g := policy.Grouping{Member: "user:1", Role: "role:1", Domain: "1"}
	require.NoError(t, engine.AddGrouping(ctx, g))
	require.NoError(t, engine.AddGrouping(ctx, g))

	_, groupings := engine.Size()
	assert.Equal(t, 1, groupings)
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	p := policy.Policy{Role: "role:1", Domain: "1", Resource: "api:users", Action: "read"}
	require.NoError(t, engine.AddPolicy(ctx, p))
	require.NoError(t, engine.RemovePolicy(ctx, p))
	require.NoError(t, engine.RemovePolicy(ctx, p))

	policies, _ := engine.Size()
	assert.Zero(t, policies)
	assert.False(t, engine.Enforce("user:1", "1", "api:users", "read"))
}

func TestReplaceAllSwapsAtomically(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "user:1", Role: "role:old", Domain: "1"}))
	require.NoError(t, engine.AddPolicy(ctx, policy.Policy{Role: "role:old", Domain: "1", Resource: "page:a", Action: "read"}))

	require.NoError(t, engine.ReplaceAll(ctx,
		[]policy.Policy{{Role: "role:new", Domain: "1", Resource: "page:b", Action: "read"}},
		[]policy.Grouping{{Member: "user:1", Role: "role:new", Domain: "1"}},
	))

	assert.False(t, engine.Enforce("user:1", "1", "page:a", "read"))
	assert.True(t, engine.Enforce("user:1", "1", "page:b", "read"))
}

func TestRolesOfAndPoliciesOf(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "user:1", Role: "role:child", Domain: "1"}))
	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "role:child", Role: "role:parent", Domain: policy.Wildcard}))
	require.NoError(t, engine.AddPolicy(ctx, policy.Policy{Role: "role:child", Domain: "1", Resource: "api:a", Action: "read"}))
	require.NoError(t, engine.AddPolicy(ctx, policy.Policy{Role: "role:child", Domain: "2", Resource: "api:b", Action: "read"}))

	assert.ElementsMatch(t, []string{"role:child", "role:parent"}, engine.RolesOf("user:1", "1"))
	assert.Empty(t, engine.RolesOf("user:1", "2"))

	assert.Equal(t, [][2]string{{"api:a", "read"}}, engine.PoliciesOf("role:child", "1"))
}

func TestConcurrentEnforceDuringRebuild(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	policies := []policy.Policy{{Role: "role:1", Domain: "1", Resource: "api:x", Action: "read"}}
	groupings := []policy.Grouping{{Member: "user:1", Role: "role:1", Domain: "1"}}
	require.NoError(t, engine.ReplaceAll(ctx, policies, groupings))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				// The statement set never changes across rebuilds, so a
				// reader must always be allowed: it sees either the old
				// snapshot or the new one, never a partially built set.
				if !engine.Enforce("user:1", "1", "api:x", "read") {
					t.Error("enforce observed a half-rebuilt policy set")
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, engine.ReplaceAll(ctx, policies, groupings))
	}
	wg.Wait()
}

type failingStore struct{}

func (failingStore) LoadAll(context.Context) ([]policy.Policy, []policy.Grouping, error) {
	return nil, nil, errors.New("disk gone")
}
func (failingStore) AddPolicy(context.Context, policy.Policy) error        { return nil }
func (failingStore) RemovePolicy(context.Context, policy.Policy) error     { return nil }
func (failingStore) AddGrouping(context.Context, policy.Grouping) error    { return nil }
func (failingStore) RemoveGrouping(context.Context, policy.Grouping) error { return nil }
func (failingStore) ReplaceAll(context.Context, []policy.Policy, []policy.Grouping) error {
	return nil
}

func TestNewEngineFailsOnUnreadableStore(t *testing.T) {
	_, err := policy.NewEngine(context.Background(), failingStore{})
	require.Error(t, err)
}

func TestEngineRestoresFromStore(t *testing.T) {
	ctx := context.Background()
	store := policy.NewMemoryStore()

	engine, err := policy.NewEngine(ctx, store)
	require.NoError(t, err)
	require.NoError(t, engine.AddGrouping(ctx, policy.Grouping{Member: "user:1", Role: "role:1", Domain: "1"}))
	require.NoError(t, engine.AddPolicy(ctx, policy.Policy{Role: "role:1", Domain: "1", Resource: "api:x", Action: "read"}))

	// A second engine over the same store sees the persisted statements.
	restored, err := policy.NewEngine(ctx, store)
	require.NoError(t, err)
	assert.True(t, restored.Enforce("user:1", "1", "api:x", "read"))
}
