package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/verdantis/verdantis/internal/app"
	"github.com/verdantis/verdantis/internal/observability"
	"github.com/verdantis/verdantis/internal/platform/db"
	"github.com/verdantis/verdantis/internal/policy"
	"github.com/verdantis/verdantis/internal/rbac"
	"github.com/verdantis/verdantis/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	engine, err := policy.NewEngine(ctx, policy.NewPGStore(pool))
	if err != nil {
		logger.Error("init policy engine", slog.Any("error", err))
		os.Exit(1)
	}
	synchronizer := rbac.NewSynchronizer(rbac.NewRepository(pool), engine, logger)
	metrics := observability.NewMetrics()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPolicyResync, Handler: jobs.NewPolicyResyncHandler(synchronizer, engine, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.PolicyResyncCron, Task: jobs.NewPolicyResyncTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
