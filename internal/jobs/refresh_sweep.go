package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Sweeper deletes expired refresh tokens and reports how many were removed.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// NewRefreshSweepTask creates the task registered on the sweep cron.
func NewRefreshSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRefreshSweep, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(0), asynq.Timeout(time.Minute))
}

// RefreshSweepJob handles TaskTypeRefreshSweep.
type RefreshSweepJob struct {
	sweeper Sweeper
	logger  *zap.Logger
}

// NewRefreshSweepJob constructs the job handler.
func NewRefreshSweepJob(sweeper Sweeper, logger *zap.Logger) *RefreshSweepJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshSweepJob{sweeper: sweeper, logger: logger.Named("jobs.refresh_sweep")}
}

// Handle runs one sweep. Failures are not retried; the next scheduled run covers them.
func (j *RefreshSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.sweeper == nil {
		return errors.New("refresh sweep: dependencies not configured")
	}
	start := time.Now()
	n, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		j.logger.Error("sweep expired refresh tokens", zap.Error(err))
		return err
	}
	j.logger.Info("expired refresh tokens removed", zap.Int64("removed", n), zap.Duration("duration", time.Since(start)))
	return nil
}
