package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/verdantis/verdantis/internal/shared"
)

// DefaultRoleName is the role granted to freshly registered users.
const DefaultRoleName = "member"

// Service orchestrates RBAC administration. Every mutation re-runs the
// synchronizer before returning so the policy engine never serves decisions
// older than the last acknowledged admin change.
type Service struct {
	repo Repository
	sync *Synchronizer
}

// NewService constructs a Service.
func NewService(repo Repository, sync *Synchronizer) *Service {
	return &Service{repo: repo, sync: sync}
}

// Resync rebuilds the policy engine from the relational tables immediately.
func (s *Service) Resync(ctx context.Context) error {
	return s.sync.Sync(ctx)
}

// AssignDefaultRole grants the default role to a user in a tenant and
// re-syncs. New registrations go through here.
func (s *Service) AssignDefaultRole(ctx context.Context, userID, tenantID int64) error {
	role, err := s.repo.GetRoleByName(ctx, DefaultRoleName)
	if err != nil {
		return fmt.Errorf("default role %q: %w", DefaultRoleName, err)
	}
	return s.AssignRole(ctx, UserRole{UserID: userID, RoleID: role.ID, TenantID: tenantID})
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a role after validating its name and parent chain.
func (s *Service) CreateRole(ctx context.Context, role Role) (Role, error) {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return Role{}, fmt.Errorf("role name required: %w", shared.ErrValidation)
	}
	if role.ParentRoleID != nil {
		if err := s.validateParentChain(ctx, 0, *role.ParentRoleID); err != nil {
			return Role{}, err
		}
	}
	created, err := s.repo.CreateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	return created, s.sync.Sync(ctx)
}

// UpdateRole updates a role; re-parenting is validated against cycles.
func (s *Service) UpdateRole(ctx context.Context, role Role) (Role, error) {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return Role{}, fmt.Errorf("role name required: %w", shared.ErrValidation)
	}
	if role.ParentRoleID != nil {
		if err := s.validateParentChain(ctx, role.ID, *role.ParentRoleID); err != nil {
			return Role{}, err
		}
	}
	updated, err := s.repo.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	return updated, s.sync.Sync(ctx)
}

// DeleteRole removes a role; its permissions and assignments cascade away.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	return s.sync.Sync(ctx)
}

// validateParentChain rejects a parent assignment that would close a cycle,
// walking the would-be ancestor chain before anything is written. Evaluation
// assumes acyclic data, so this is the only place cycles are caught.
func (s *Service) validateParentChain(ctx context.Context, roleID, parentID int64) error {
	const maxDepth = 32
	current := parentID
	for depth := 0; depth < maxDepth; depth++ {
		if current == roleID {
			return fmt.Errorf("role %d: parent chain forms a cycle: %w", roleID, shared.ErrValidation)
		}
		parent, err := s.repo.GetRole(ctx, current)
		if err != nil {
			return fmt.Errorf("parent role %d: %w", current, err)
		}
		if parent.ParentRoleID == nil {
			return nil
		}
		current = *parent.ParentRoleID
	}
	return fmt.Errorf("role %d: parent chain exceeds depth %d: %w", roleID, maxDepth, shared.ErrValidation)
}

// ListResources returns all resources.
func (s *Service) ListResources(ctx context.Context) ([]Resource, error) {
	return s.repo.ListResources(ctx)
}

// CreateResource inserts a resource.
func (s *Service) CreateResource(ctx context.Context, res Resource) (Resource, error) {
	res.Type = strings.TrimSpace(res.Type)
	res.Name = strings.TrimSpace(res.Name)
	if res.Type == "" || res.Name == "" {
		return Resource{}, fmt.Errorf("resource type and name required: %w", shared.ErrValidation)
	}
	return s.repo.CreateResource(ctx, res)
}

// DeleteResource removes a resource and re-syncs, since cascaded permission
// rows may have gone with it.
func (s *Service) DeleteResource(ctx context.Context, id int64) error {
	if err := s.repo.DeleteResource(ctx, id); err != nil {
		return err
	}
	return s.sync.Sync(ctx)
}

// ListActions returns all actions.
func (s *Service) ListActions(ctx context.Context) ([]Action, error) {
	return s.repo.ListActions(ctx)
}

// CreateAction inserts an action.
func (s *Service) CreateAction(ctx context.Context, act Action) (Action, error) {
	act.Name = strings.TrimSpace(act.Name)
	if act.Name == "" {
		return Action{}, fmt.Errorf("action name required: %w", shared.ErrValidation)
	}
	return s.repo.CreateAction(ctx, act)
}

// DeleteAction removes an action and re-syncs.
func (s *Service) DeleteAction(ctx context.Context, id int64) error {
	if err := s.repo.DeleteAction(ctx, id); err != nil {
		return err
	}
	return s.sync.Sync(ctx)
}

// ListPermissions returns a role's permission grants.
func (s *Service) ListPermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.repo.ListPermissions(ctx, roleID)
}

// CreatePermission grants a role an action on a resource.
func (s *Service) CreatePermission(ctx context.Context, perm Permission) (Permission, error) {
	created, err := s.repo.CreatePermission(ctx, perm)
	if err != nil {
		return Permission{}, err
	}
	return created, s.sync.Sync(ctx)
}

// DeletePermission revokes a grant.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return err
	}
	return s.sync.Sync(ctx)
}

// ListUserRoles returns a user's role assignments.
func (s *Service) ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error) {
	return s.repo.ListUserRoles(ctx, userID)
}

// AssignRole grants a user a role within a tenant.
func (s *Service) AssignRole(ctx context.Context, ur UserRole) error {
	if err := s.repo.AssignRole(ctx, ur); err != nil {
		return err
	}
	return s.sync.Sync(ctx)
}

// UnassignRole removes a user's role assignment.
func (s *Service) UnassignRole(ctx context.Context, ur UserRole) error {
	if err := s.repo.UnassignRole(ctx, ur); err != nil {
		return err
	}
	return s.sync.Sync(ctx)
}
