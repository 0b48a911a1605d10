package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantis/verdantis/internal/platform/db"
	"github.com/verdantis/verdantis/internal/shared"
)

// Repository defines persistence operations for the RBAC model.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	ListResources(ctx context.Context) ([]Resource, error)
	CreateResource(ctx context.Context, res Resource) (Resource, error)
	DeleteResource(ctx context.Context, id int64) error

	ListActions(ctx context.Context) ([]Action, error)
	CreateAction(ctx context.Context, act Action) (Action, error)
	DeleteAction(ctx context.Context, id int64) error

	ListPermissions(ctx context.Context, roleID int64) ([]Permission, error)
	CreatePermission(ctx context.Context, perm Permission) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error

	ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error)
	AssignRole(ctx context.Context, ur UserRole) error
	UnassignRole(ctx context.Context, ur UserRole) error

	// Synchronizer source queries.
	ListAllRoles(ctx context.Context) ([]Role, error)
	ListPermissionGrants(ctx context.Context) ([]PermissionGrant, error)
	ListAllUserRoles(ctx context.Context) ([]UserRole, error)
	ListSuperAdminIDs(ctx context.Context) ([]int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleColumns = `id, name, display_name, description, tenant_id, parent_role_id, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.DisplayName, &r.Description, &r.TenantID, &r.ParentRoleID, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrNotFound
	}
	return role, err
}

// GetRoleByName fetches a role by its unique name.
func (r *PGRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrNotFound
	}
	return role, err
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, display_name, description, tenant_id, parent_role_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING `+roleColumns,
		role.Name, role.DisplayName, role.Description, role.TenantID, role.ParentRoleID, now)
	created, err := scanRole(row)
	if db.IsUniqueViolation(err) {
		return Role{}, fmt.Errorf("role %q: %w", role.Name, shared.ErrConflict)
	}
	return created, err
}

// UpdateRole updates an existing role.
func (r *PGRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, display_name = $3, description = $4, parent_role_id = $5, updated_at = $6
		 WHERE id = $1 RETURNING `+roleColumns,
		role.ID, role.Name, role.DisplayName, role.Description, role.ParentRoleID, time.Now().UTC())
	updated, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrNotFound
	}
	if db.IsUniqueViolation(err) {
		return Role{}, fmt.Errorf("role %q: %w", role.Name, shared.ErrConflict)
	}
	return updated, err
}

// DeleteRole removes a role; permissions and assignments cascade.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListResources returns all resources ordered by type and name.
func (r *PGRepository) ListResources(ctx context.Context) ([]Resource, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, type, name, display_name, description FROM resources ORDER BY type, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resources []Resource
	for rows.Next() {
		var res Resource
		if err := rows.Scan(&res.ID, &res.Type, &res.Name, &res.DisplayName, &res.Description); err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

// CreateResource inserts a resource; (type, name) must be unique.
func (r *PGRepository) CreateResource(ctx context.Context, res Resource) (Resource, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO resources (type, name, display_name, description) VALUES ($1, $2, $3, $4) RETURNING id`,
		res.Type, res.Name, res.DisplayName, res.Description).Scan(&res.ID)
	if db.IsUniqueViolation(err) {
		return Resource{}, fmt.Errorf("resource %s: %w", res.Key(), shared.ErrConflict)
	}
	return res, err
}

// DeleteResource removes a resource by ID.
func (r *PGRepository) DeleteResource(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListActions returns all actions ordered by name.
func (r *PGRepository) ListActions(ctx context.Context) ([]Action, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, display_name, description FROM actions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var act Action
		if err := rows.Scan(&act.ID, &act.Name, &act.DisplayName, &act.Description); err != nil {
			return nil, err
		}
		actions = append(actions, act)
	}
	return actions, rows.Err()
}

// CreateAction inserts an action; name must be unique.
func (r *PGRepository) CreateAction(ctx context.Context, act Action) (Action, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO actions (name, display_name, description) VALUES ($1, $2, $3) RETURNING id`,
		act.Name, act.DisplayName, act.Description).Scan(&act.ID)
	if db.IsUniqueViolation(err) {
		return Action{}, fmt.Errorf("action %q: %w", act.Name, shared.ErrConflict)
	}
	return act, err
}

// DeleteAction removes an action by ID.
func (r *PGRepository) DeleteAction(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM actions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListPermissions returns the permissions granted to a role.
func (r *PGRepository) ListPermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role_id, resource_id, action_id, tenant_id FROM permissions WHERE role_id = $1 ORDER BY id`,
		roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.RoleID, &p.ResourceID, &p.ActionID, &p.TenantID); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CreatePermission inserts a permission grant.
func (r *PGRepository) CreatePermission(ctx context.Context, perm Permission) (Permission, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (role_id, resource_id, action_id, tenant_id) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (role_id, resource_id, action_id, tenant_id) DO UPDATE SET role_id = EXCLUDED.role_id
		 RETURNING id`,
		perm.RoleID, perm.ResourceID, perm.ActionID, perm.TenantID).Scan(&perm.ID)
	return perm, err
}

// DeletePermission removes a permission grant by ID.
func (r *PGRepository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListUserRoles returns all role assignments for a user.
func (r *PGRepository) ListUserRoles(ctx context.Context, userID int64) ([]UserRole, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, role_id, tenant_id FROM user_roles WHERE user_id = $1 ORDER BY tenant_id, role_id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUserRoles(rows)
}

// AssignRole records that a user holds a role within a tenant; duplicates
// are ignored.
func (r *PGRepository) AssignRole(ctx context.Context, ur UserRole) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id, tenant_id) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, role_id, tenant_id) DO NOTHING`,
		ur.UserID, ur.RoleID, ur.TenantID)
	return err
}

// UnassignRole removes a role assignment.
func (r *PGRepository) UnassignRole(ctx context.Context, ur UserRole) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2 AND tenant_id = $3`,
		ur.UserID, ur.RoleID, ur.TenantID)
	return err
}

// ListAllRoles is ListRoles under the synchronizer source name.
func (r *PGRepository) ListAllRoles(ctx context.Context) ([]Role, error) {
	return r.ListRoles(ctx)
}

// ListPermissionGrants resolves every permission to its resource key and
// action name for the synchronizer.
func (r *PGRepository) ListPermissionGrants(ctx context.Context) ([]PermissionGrant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.role_id, p.tenant_id, res.type, res.name, a.name
		 FROM permissions p
		 JOIN resources res ON res.id = p.resource_id
		 JOIN actions a ON a.id = p.action_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []PermissionGrant
	for rows.Next() {
		var g PermissionGrant
		if err := rows.Scan(&g.RoleID, &g.TenantID, &g.ResourceType, &g.ResourceName, &g.ActionName); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// ListAllUserRoles returns every role assignment.
func (r *PGRepository) ListAllUserRoles(ctx context.Context) ([]UserRole, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, role_id, tenant_id FROM user_roles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUserRoles(rows)
}

// ListSuperAdminIDs returns the IDs of active super-admin users.
func (r *PGRepository) ListSuperAdminIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE is_super_admin AND is_active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectUserRoles(rows pgx.Rows) ([]UserRole, error) {
	var assignments []UserRole
	for rows.Next() {
		var ur UserRole
		if err := rows.Scan(&ur.UserID, &ur.RoleID, &ur.TenantID); err != nil {
			return nil, err
		}
		assignments = append(assignments, ur)
	}
	return assignments, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
