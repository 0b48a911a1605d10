package shared

import "context"

// Identity is the resolved (user, tenant) pair attached to an authenticated
// request. It is an explicit typed value rather than loose request fields so
// downstream handlers cannot observe a half-resolved state.
type Identity struct {
	UserID       int64
	Username     string
	Email        string
	DisplayName  string
	IsSuperAdmin bool
	HomeTenantID int64

	// TenantID is the active tenant for this request. Zero means the user
	// has no tenant context (home tenant unset and no switch in effect).
	TenantID   int64
	TenantName string
}

type identityContextKey struct{}

// ContextWithIdentity stores the resolved identity in context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the resolved identity, nil when the request
// is anonymous.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
