package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/verdantis/verdantis/internal/platform/httpx"
	"github.com/verdantis/verdantis/internal/policy"
	"github.com/verdantis/verdantis/internal/shared"
)

// TenantHeader lets a client address a tenant other than the session's
// active one. The policy engine still decides whether the subject holds
// anything there.
const TenantHeader = "X-Tenant-ID"

// Middleware gates requests on the policy engine.
type Middleware struct {
	Engine        *policy.Engine
	Logger        *slog.Logger
	DefaultTenant int64
}

// Require produces a gate that permits the request only when the resolved
// identity is allowed (resource, action) in the effective tenant. Missing
// identity rejects 401; a deny rejects 403 with no detail about which
// permission was missing.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := shared.IdentityFromContext(r.Context())
			if identity == nil {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}

			tenantID := m.effectiveTenant(r, identity)
			if !m.Engine.Enforce(policy.UserSubject(identity.UserID), policy.Domain(tenantID), resource, action) {
				if m.Logger != nil {
					m.Logger.Debug("authorization denied",
						slog.Int64("user", identity.UserID),
						slog.Int64("tenant", tenantID),
						slog.String("resource", resource),
						slog.String("action", action))
				}
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithTenant(r.Context(), tenantID)))
		})
	}
}

func (m Middleware) effectiveTenant(r *http.Request, identity *shared.Identity) int64 {
	if raw := r.Header.Get(TenantHeader); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	if identity.TenantID != 0 {
		return identity.TenantID
	}
	return m.DefaultTenant
}
