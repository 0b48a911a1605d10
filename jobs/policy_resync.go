package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/verdantis/verdantis/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPolicyResync rebuilds the policy engine from the credential store.
	// It runs on a cron as a self-healing pass; admin mutations already sync
	// inline, so this only repairs drift after crashes or manual DB edits.
	TaskPolicyResync = "policy:resync"
)

// Resyncer rebuilds the policy engine and reports its size.
type Resyncer interface {
	Sync(ctx context.Context) error
}

// EngineSizer reports the number of loaded statements.
type EngineSizer interface {
	Size() (policies, groupings int)
}

// NewPolicyResyncTask constructs the resync task. It carries no payload.
func NewPolicyResyncTask() *asynq.Task {
	return asynq.NewTask(TaskPolicyResync, nil)
}

// NewPolicyResyncHandler returns the Asynq handler for TaskPolicyResync.
func NewPolicyResyncHandler(sync Resyncer, engine EngineSizer, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		err := sync.Sync(ctx)
		policies, groupings := 0, 0
		if engine != nil {
			policies, groupings = engine.Size()
		}
		metrics.RecordResync(err, policies, groupings)
		if err != nil {
			logger.Error("policy resync failed", slog.Any("error", err))
			return err
		}
		logger.Info("policy resync complete",
			slog.Int("policies", policies),
			slog.Int("groupings", groupings))
		return nil
	}
}
