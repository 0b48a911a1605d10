package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/verdantis/verdantis/internal/policy"
)

// SyncSource is the slice of the credential store the synchronizer reads.
type SyncSource interface {
	ListAllRoles(ctx context.Context) ([]Role, error)
	ListPermissionGrants(ctx context.Context) ([]PermissionGrant, error)
	ListAllUserRoles(ctx context.Context) ([]UserRole, error)
	ListSuperAdminIDs(ctx context.Context) ([]int64, error)
}

// Synchronizer rebuilds the policy engine's statement set from the
// canonical relational tables. It is a full replace, not a diff: the engine
// is a projection that can be blown away and reconstructed at any time.
type Synchronizer struct {
	source SyncSource
	engine *policy.Engine
	logger *slog.Logger
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(source SyncSource, engine *policy.Engine, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{source: source, engine: engine, logger: logger}
}

// Sync reads the full role/permission/assignment state and swaps it into the
// engine. Run after any administrative mutation and at startup; a failed run
// leaves the engine on its previous snapshot until the next attempt.
func (s *Synchronizer) Sync(ctx context.Context) error {
	var (
		roles       []Role
		grants      []PermissionGrant
		assignments []UserRole
		superAdmins []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if roles, err = s.source.ListAllRoles(gctx); err != nil {
			return fmt.Errorf("rbac: sync roles: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if grants, err = s.source.ListPermissionGrants(gctx); err != nil {
			return fmt.Errorf("rbac: sync permissions: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if assignments, err = s.source.ListAllUserRoles(gctx); err != nil {
			return fmt.Errorf("rbac: sync assignments: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if superAdmins, err = s.source.ListSuperAdminIDs(gctx); err != nil {
			return fmt.Errorf("rbac: sync super admins: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	policies := make([]policy.Policy, 0, len(grants)+1)
	for _, g := range grants {
		domain := policy.Wildcard
		if g.TenantID != nil {
			domain = policy.Domain(*g.TenantID)
		}
		policies = append(policies, policy.Policy{
			Role:     policy.RoleSubject(g.RoleID),
			Domain:   domain,
			Resource: g.ResourceType + ":" + g.ResourceName,
			Action:   g.ActionName,
		})
	}

	groupings := make([]policy.Grouping, 0, len(assignments)+len(roles)+len(superAdmins))
	for _, ur := range assignments {
		groupings = append(groupings, policy.Grouping{
			Member: policy.UserSubject(ur.UserID),
			Role:   policy.RoleSubject(ur.RoleID),
			Domain: policy.Domain(ur.TenantID),
		})
	}

	// Role inheritance: a child role is a member of its parent in every
	// tenant, so a holder of the child reaches the parent's grants.
	for _, role := range roles {
		if role.ParentRoleID == nil {
			continue
		}
		groupings = append(groupings, policy.Grouping{
			Member: policy.RoleSubject(role.ID),
			Role:   policy.RoleSubject(*role.ParentRoleID),
			Domain: policy.Wildcard,
		})
	}

	// Super-admin access flows through the engine as a wildcard grant
	// rather than a handler-level bypass.
	if len(superAdmins) > 0 {
		policies = append(policies, policy.Policy{
			Role:     policy.SuperAdminRole,
			Domain:   policy.Wildcard,
			Resource: policy.Wildcard,
			Action:   policy.Wildcard,
		})
		for _, id := range superAdmins {
			groupings = append(groupings, policy.Grouping{
				Member: policy.UserSubject(id),
				Role:   policy.SuperAdminRole,
				Domain: policy.Wildcard,
			})
		}
	}

	if err := s.engine.ReplaceAll(ctx, policies, groupings); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("policy set rebuilt",
			slog.Int("policies", len(policies)),
			slog.Int("groupings", len(groupings)))
	}
	return nil
}
