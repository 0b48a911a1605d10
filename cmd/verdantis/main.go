package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/verdantis/verdantis/internal/app"
	"github.com/verdantis/verdantis/internal/auth"
	"github.com/verdantis/verdantis/internal/compliance/assessments"
	"github.com/verdantis/verdantis/internal/compliance/customers"
	"github.com/verdantis/verdantis/internal/compliance/declarations"
	"github.com/verdantis/verdantis/internal/compliance/suppliers"
	"github.com/verdantis/verdantis/internal/observability"
	"github.com/verdantis/verdantis/internal/platform/cache"
	"github.com/verdantis/verdantis/internal/platform/db"
	"github.com/verdantis/verdantis/internal/policy"
	"github.com/verdantis/verdantis/internal/rbac"
	"github.com/verdantis/verdantis/internal/shared"
	"github.com/verdantis/verdantis/internal/tenants"
	"github.com/verdantis/verdantis/internal/users"
	"github.com/verdantis/verdantis/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	policyStore := policy.NewPGStore(pool)
	engine, err := policy.NewEngine(ctx, policyStore)
	if err != nil {
		logger.Error("init policy engine", slog.Any("error", err))
		os.Exit(1)
	}

	rbacRepo := rbac.NewRepository(pool)
	synchronizer := rbac.NewSynchronizer(rbacRepo, engine, logger)
	if err := synchronizer.Sync(ctx); err != nil {
		logger.Error("initial policy sync", slog.Any("error", err))
		os.Exit(1)
	}
	rbacService := rbac.NewService(rbacRepo, synchronizer)
	rbacMiddleware := rbac.Middleware{Engine: engine, Logger: logger, DefaultTenant: cfg.DefaultTenantID}

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	rbacHandler := rbac.NewHandler(logger, rbacService, rbacMiddleware, jobClient)

	tenantsRepo := tenants.NewRepository(pool)
	tenantsService := tenants.NewService(tenantsRepo)
	tenantsHandler := tenants.NewHandler(logger, tenantsService, rbacMiddleware)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, tenantsRepo, rbacService, cfg.DefaultTenant, logger)

	var oidcClient *auth.OIDCClient
	if cfg.OIDCEnabled() {
		oidcClient, err = auth.NewOIDCClient(ctx, auth.OIDCConfig{
			IssuerURL:    cfg.OIDCIssuerURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		})
		if err != nil {
			logger.Error("init oidc client", slog.Any("error", err))
			os.Exit(1)
		}
	}

	resolver := &auth.Resolver{
		Repo:    authRepo,
		Tenants: tenantsRepo,
		Engine:  engine,
		Logger:  logger,
	}
	if oidcClient != nil {
		resolver.Verifier = oidcClient
	}

	authHandler := auth.NewHandler(logger, authService, oidcClient, engine)

	usersService := users.NewService(users.NewRepository(pool), rbacRepo, synchronizer)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	suppliersHandler := suppliers.NewHandler(logger, suppliers.NewService(suppliers.NewRepository(pool)), rbacMiddleware)
	customersHandler := customers.NewHandler(logger, customers.NewService(customers.NewRepository(pool)), rbacMiddleware)
	declarationsHandler := declarations.NewHandler(logger, declarations.NewService(declarations.NewRepository(pool)), rbacMiddleware)
	assessmentsHandler := assessments.NewHandler(logger, assessments.NewService(assessments.NewRepository(pool)), rbacMiddleware)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		Resolver:            resolver,
		AuthHandler:         authHandler,
		RBACHandler:         rbacHandler,
		TenantsHandler:      tenantsHandler,
		UsersHandler:        usersHandler,
		SuppliersHandler:    suppliersHandler,
		CustomersHandler:    customersHandler,
		DeclarationsHandler: declarationsHandler,
		AssessmentsHandler:  assessmentsHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
