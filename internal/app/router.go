package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/verdantis/verdantis/internal/auth"
	"github.com/verdantis/verdantis/internal/compliance/assessments"
	"github.com/verdantis/verdantis/internal/compliance/customers"
	"github.com/verdantis/verdantis/internal/compliance/declarations"
	"github.com/verdantis/verdantis/internal/compliance/suppliers"
	"github.com/verdantis/verdantis/internal/observability"
	"github.com/verdantis/verdantis/internal/rbac"
	"github.com/verdantis/verdantis/internal/shared"
	"github.com/verdantis/verdantis/internal/tenants"
	"github.com/verdantis/verdantis/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Resolver       *auth.Resolver

	AuthHandler         *auth.Handler
	RBACHandler         *rbac.Handler
	TenantsHandler      *tenants.Handler
	UsersHandler        *users.Handler
	SuppliersHandler    *suppliers.Handler
	CustomersHandler    *customers.Handler
	DeclarationsHandler *declarations.Handler
	AssessmentsHandler  *assessments.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.Resolver.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	params.AuthHandler.MountRoutes(r)

	r.Route("/api", func(api chi.Router) {
		params.RBACHandler.MountRoutes(api)
		params.TenantsHandler.MountRoutes(api)
		params.UsersHandler.MountRoutes(api)
		params.SuppliersHandler.MountRoutes(api)
		params.CustomersHandler.MountRoutes(api)
		params.DeclarationsHandler.MountRoutes(api)
		params.AssessmentsHandler.MountRoutes(api)
	})

	return r
}
