package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/verdantis/verdantis/internal/platform/httpx"
	"github.com/verdantis/verdantis/internal/policy"
	"github.com/verdantis/verdantis/internal/shared"
)

// TokenVerifier validates a bearer token and returns the stable external
// subject it asserts.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (subject string, err error)
}

// verifyTimeout bounds how long a single bearer verification may block the
// request it rides on.
const verifyTimeout = 5 * time.Second

// Resolver turns an incoming session or bearer token into an Identity on the
// request context. It never rejects a request itself; anonymous requests pass
// through without an identity and downstream gates decide.
type Resolver struct {
	Repo      Repository
	Tenants   TenantDirectory
	Engine    *policy.Engine
	Verifier  TokenVerifier
	Logger    *slog.Logger
	SuperRole string
}

func (rs *Resolver) superRole() string {
	if rs.SuperRole == "" {
		return policy.SuperAdminRole
	}
	return rs.SuperRole
}

// Middleware resolves the caller's identity, preferring an established
// session over a bearer token. A valid bearer on a request without a session
// is upgraded into one.
func (rs *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := shared.SessionFromContext(ctx)

		var user *User
		if sess != nil {
			if id := sess.User(); id != 0 {
				u, err := rs.Repo.FindByID(ctx, id)
				if err != nil {
					// The session references a user that no longer exists or
					// was deactivated; the stale session must not linger.
					sess.Destroy()
					if !errors.Is(err, shared.ErrNotFound) && rs.Logger != nil {
						rs.Logger.Error("resolve session user", slog.Any("error", err))
					}
				} else if u.IsActive {
					user = u
				} else {
					sess.Destroy()
				}
			}
		}

		if user == nil {
			if token := bearerToken(r); token != "" && rs.Verifier != nil {
				user = rs.resolveBearer(ctx, sess, token)
			}
		}

		if user != nil {
			identity, err := rs.buildIdentity(ctx, sess, user)
			if err != nil {
				if rs.Logger != nil {
					rs.Logger.Error("build identity", slog.Int64("user", user.ID), slog.Any("error", err))
				}
			} else {
				ctx = shared.ContextWithIdentity(ctx, identity)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (rs *Resolver) resolveBearer(ctx context.Context, sess *shared.Session, token string) *User {
	vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	subject, err := rs.Verifier.Verify(vctx, token)
	if err != nil {
		if rs.Logger != nil {
			rs.Logger.Debug("bearer token rejected", slog.Any("error", err))
		}
		return nil
	}
	user, err := rs.Repo.FindByExternalID(ctx, subject)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) && rs.Logger != nil {
			rs.Logger.Error("lookup external subject", slog.Any("error", err))
		}
		return nil
	}
	if !user.IsActive {
		return nil
	}
	if sess != nil {
		sess.SetUser(user.ID)
	}
	if err := rs.Repo.TouchLastLogin(ctx, user.ID); err != nil && rs.Logger != nil {
		rs.Logger.Warn("touch last login", slog.Any("error", err))
	}
	return user
}

// buildIdentity assembles the caller's Identity, resolving the active tenant
// in order of preference: the tenant stored on the session, then the user's
// home tenant, then none.
func (rs *Resolver) buildIdentity(ctx context.Context, sess *shared.Session, user *User) (*shared.Identity, error) {
	identity := &shared.Identity{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}
	if user.TenantID != nil {
		identity.HomeTenantID = *user.TenantID
	}

	identity.IsSuperAdmin = user.IsSuperAdmin
	if !identity.IsSuperAdmin {
		subject := policy.UserSubject(user.ID)
		for _, role := range rs.Engine.RolesOf(subject, policy.Wildcard) {
			if role == rs.superRole() {
				identity.IsSuperAdmin = true
				break
			}
		}
	}

	sessTenant := int64(0)
	if sess != nil {
		sessTenant = sess.Tenant()
	}
	tenantID := identity.HomeTenantID
	if sessTenant != 0 {
		tenantID = sessTenant
	}
	for tenantID != 0 {
		tenant, err := rs.Tenants.Get(ctx, tenantID)
		if err == nil {
			identity.TenantID = tenant.ID
			identity.TenantName = tenant.Name
			if sess != nil && sessTenant != 0 && sessTenant != tenant.ID {
				sess.SetTenant(tenant.ID)
			}
			break
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		// The active tenant vanished. Fall back to the user's home tenant;
		// only a user with no surviving home tenant ends up with none.
		if tenantID != identity.HomeTenantID && identity.HomeTenantID != 0 {
			tenantID = identity.HomeTenantID
			continue
		}
		if sess != nil && sessTenant != 0 {
			sess.SetTenant(0)
		}
		tenantID = 0
	}
	return identity, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireUser rejects requests that carry no resolved identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.IdentityFromContext(r.Context()) == nil {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
