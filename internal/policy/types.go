// Package policy implements the tenant-scoped authorization engine. It holds
// a derived, rebuildable index of role grants and role assignments; the
// relational credential store remains the system of record.
package policy

import "strconv"

// Wildcard matches any tenant, resource or action in a policy statement.
const Wildcard = "*"

// SuperAdminRole is the built-in role that carries the wildcard grant.
// The synchronizer groups super-admin users into it so that privileged
// access flows through the same enforcement path as everything else.
const SuperAdminRole = "role:superadmin"

// Policy states that a role may perform an action on a resource within a
// domain (tenant). Domain may be Wildcard for grants that apply everywhere.
type Policy struct {
	Role     string
	Domain   string
	Resource string
	Action   string
}

// Grouping states that a member (a user, or a role inheriting from its
// parent) holds a role while acting within a domain.
type Grouping struct {
	Member string
	Role   string
	Domain string
}

// UserSubject returns the subject key for a user ID.
func UserSubject(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

// RoleSubject returns the subject key for a role ID.
func RoleSubject(id int64) string {
	return "role:" + strconv.FormatInt(id, 10)
}

// Domain returns the domain key for a tenant ID. A zero tenant means the
// statement is global and maps to the wildcard domain.
func Domain(tenantID int64) string {
	if tenantID == 0 {
		return Wildcard
	}
	return strconv.FormatInt(tenantID, 10)
}
