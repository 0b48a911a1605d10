package policy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Engine evaluates "may subject perform action on resource within domain"
// queries against an immutable in-memory snapshot. Reads are lock-free;
// mutations persist to the Store first and then swap in a rebuilt snapshot,
// so concurrent Enforce calls never observe a half-applied change.
type Engine struct {
	store Store

	mu   sync.Mutex // serializes mutations
	snap atomic.Pointer[snapshot]
}

type grant struct {
	domain   string
	resource string
	action   string
}

type edge struct {
	role   string
	domain string
}

type snapshot struct {
	policies  map[Policy]struct{}
	groupings map[Grouping]struct{}
	grants    map[string][]grant // role -> grants
	edges     map[string][]edge  // member -> held roles
}

// NewEngine builds an Engine from the persisted policy set. An unreadable
// store is a startup failure: the engine must not come up empty and silently
// deny (or allow) everything.
func NewEngine(ctx context.Context, store Store) (*Engine, error) {
	policies, groupings, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: load persisted policy set: %w", err)
	}
	e := &Engine{store: store}
	e.snap.Store(buildSnapshot(policies, groupings))
	return e, nil
}

// Enforce reports whether subject may perform action on resource within
// domain. The subject's role closure is resolved through groupings scoped to
// the domain or to the wildcard domain; a grant matches when its domain,
// resource and action each equal the query value or the wildcard.
func (e *Engine) Enforce(subject, domain, resource, action string) bool {
	snap := e.snap.Load()
	for role := range snap.roleClosure(subject, domain) {
		for _, g := range snap.grants[role] {
			if matches(g.domain, domain) && matches(g.resource, resource) && matches(g.action, action) {
				return true
			}
		}
	}
	return false
}

// RolesOf returns the roles subject holds within domain, including roles
// reached through inheritance.
func (e *Engine) RolesOf(subject, domain string) []string {
	snap := e.snap.Load()
	closure := snap.roleClosure(subject, domain)
	roles := make([]string, 0, len(closure))
	for role := range closure {
		roles = append(roles, role)
	}
	return roles
}

// PoliciesOf returns the (resource, action) pairs directly granted to role
// within domain or globally. Inherited grants are not included; callers
// resolve inheritance through RolesOf.
func (e *Engine) PoliciesOf(role, domain string) [][2]string {
	snap := e.snap.Load()
	var out [][2]string
	for _, g := range snap.grants[role] {
		if matches(g.domain, domain) {
			out = append(out, [2]string{g.resource, g.action})
		}
	}
	return out
}

// AddPolicy grants (resource, action) to role within domain. Adding an
// existing policy is a no-op.
func (e *Engine) AddPolicy(ctx context.Context, p Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.snap.Load()
	if _, ok := snap.policies[p]; ok {
		return nil
	}
	if err := e.store.AddPolicy(ctx, p); err != nil {
		return fmt.Errorf("policy: persist policy: %w", err)
	}
	e.snap.Store(snap.withPolicy(p, true))
	return nil
}

// RemovePolicy revokes a grant. Removing an absent policy is a no-op.
func (e *Engine) RemovePolicy(ctx context.Context, p Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.snap.Load()
	if _, ok := snap.policies[p]; !ok {
		return nil
	}
	if err := e.store.RemovePolicy(ctx, p); err != nil {
		return fmt.Errorf("policy: remove policy: %w", err)
	}
	e.snap.Store(snap.withPolicy(p, false))
	return nil
}

// AddGrouping records that member holds role within domain. Adding an
// existing grouping is a no-op.
func (e *Engine) AddGrouping(ctx context.Context, g Grouping) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.snap.Load()
	if _, ok := snap.groupings[g]; ok {
		return nil
	}
	if err := e.store.AddGrouping(ctx, g); err != nil {
		return fmt.Errorf("policy: persist grouping: %w", err)
	}
	e.snap.Store(snap.withGrouping(g, true))
	return nil
}

// RemoveGrouping revokes a role assignment. Removing an absent grouping is a
// no-op.
func (e *Engine) RemoveGrouping(ctx context.Context, g Grouping) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.snap.Load()
	if _, ok := snap.groupings[g]; !ok {
		return nil
	}
	if err := e.store.RemoveGrouping(ctx, g); err != nil {
		return fmt.Errorf("policy: remove grouping: %w", err)
	}
	e.snap.Store(snap.withGrouping(g, false))
	return nil
}

// ReplaceAll swaps the entire policy set. The new snapshot is built off to
// the side and installed atomically, so readers see either the old set or
// the new one, never the clear-then-repopulate window in between.
func (e *Engine) ReplaceAll(ctx context.Context, policies []Policy, groupings []Grouping) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.ReplaceAll(ctx, policies, groupings); err != nil {
		return fmt.Errorf("policy: replace policy set: %w", err)
	}
	e.snap.Store(buildSnapshot(policies, groupings))
	return nil
}

// Size returns the number of policy and grouping statements.
func (e *Engine) Size() (policies, groupings int) {
	snap := e.snap.Load()
	return len(snap.policies), len(snap.groupings)
}

func matches(stated, queried string) bool {
	return stated == Wildcard || stated == queried
}

// roleClosure walks the grouping graph from subject, following edges whose
// domain matches. Role-to-role edges carry inheritance. The graph is assumed
// acyclic; cycles are rejected at role-creation time, but the visited set
// still guards traversal against bad data.
func (s *snapshot) roleClosure(subject, domain string) map[string]struct{} {
	closure := make(map[string]struct{})
	queue := []string{subject}
	visited := map[string]struct{}{subject: {}}
	for len(queue) > 0 {
		member := queue[0]
		queue = queue[1:]
		for _, ed := range s.edges[member] {
			if !matches(ed.domain, domain) {
				continue
			}
			if _, seen := visited[ed.role]; seen {
				continue
			}
			visited[ed.role] = struct{}{}
			closure[ed.role] = struct{}{}
			queue = append(queue, ed.role)
		}
	}
	return closure
}

func buildSnapshot(policies []Policy, groupings []Grouping) *snapshot {
	snap := &snapshot{
		policies:  make(map[Policy]struct{}, len(policies)),
		groupings: make(map[Grouping]struct{}, len(groupings)),
		grants:    make(map[string][]grant),
		edges:     make(map[string][]edge),
	}
	for _, p := range policies {
		if _, dup := snap.policies[p]; dup {
			continue
		}
		snap.policies[p] = struct{}{}
		snap.grants[p.Role] = append(snap.grants[p.Role], grant{domain: p.Domain, resource: p.Resource, action: p.Action})
	}
	for _, g := range groupings {
		if _, dup := snap.groupings[g]; dup {
			continue
		}
		snap.groupings[g] = struct{}{}
		snap.edges[g.Member] = append(snap.edges[g.Member], edge{role: g.Role, domain: g.Domain})
	}
	return snap
}

func (s *snapshot) withPolicy(p Policy, add bool) *snapshot {
	policies := make([]Policy, 0, len(s.policies)+1)
	for existing := range s.policies {
		if !add && existing == p {
			continue
		}
		policies = append(policies, existing)
	}
	if add {
		policies = append(policies, p)
	}
	groupings := make([]Grouping, 0, len(s.groupings))
	for existing := range s.groupings {
		groupings = append(groupings, existing)
	}
	return buildSnapshot(policies, groupings)
}

func (s *snapshot) withGrouping(g Grouping, add bool) *snapshot {
	policies := make([]Policy, 0, len(s.policies))
	for existing := range s.policies {
		policies = append(policies, existing)
	}
	groupings := make([]Grouping, 0, len(s.groupings)+1)
	for existing := range s.groupings {
		if !add && existing == g {
			continue
		}
		groupings = append(groupings, existing)
	}
	if add {
		groupings = append(groupings, g)
	}
	return buildSnapshot(policies, groupings)
}
