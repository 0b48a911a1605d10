// Package rbac owns the relational role/permission model and keeps the
// policy engine in sync with it. The tables here are the source of truth;
// the engine holds a derived index rebuilt by the Synchronizer.
package rbac

import "time"

// Role groups permissions. TenantID nil means the role is global. A role
// inherits everything its parent holds, transitively; parent chains are
// validated acyclic when the role is written.
type Role struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DisplayName  string    `json:"display_name"`
	Description  string    `json:"description"`
	TenantID     *int64    `json:"tenant_id"`
	ParentRoleID *int64    `json:"parent_role_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Resource is an authorizable object, unique on (type, name). The policy
// engine addresses it as the composite key "type:name".
type Resource struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Key returns the composite resource key used in policy statements.
func (r Resource) Key() string {
	return r.Type + ":" + r.Name
}

// Action is a verb applied to resources, unique on name.
type Action struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Permission grants a role an action on a resource. TenantID nil means the
// grant applies in every tenant.
type Permission struct {
	ID         int64  `json:"id"`
	RoleID     int64  `json:"role_id"`
	ResourceID int64  `json:"resource_id"`
	ActionID   int64  `json:"action_id"`
	TenantID   *int64 `json:"tenant_id"`
}

// UserRole assigns a role to a user within a tenant. The same user may hold
// different roles in different tenants.
type UserRole struct {
	UserID   int64 `json:"user_id"`
	RoleID   int64 `json:"role_id"`
	TenantID int64 `json:"tenant_id"`
}

// PermissionGrant is the denormalized join the synchronizer consumes:
// one row per permission with its resource key and action name resolved.
type PermissionGrant struct {
	RoleID       int64
	TenantID     *int64
	ResourceType string
	ResourceName string
	ActionName   string
}
