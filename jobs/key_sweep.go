package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// KeySweeper deactivates access keys that outlived their maximum age.
type KeySweeper interface {
	DeactivateExpired(ctx context.Context) (int64, error)
}

// SessionPruner removes session rows past their expiry.
type SessionPruner interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// NewKeySweepHandler returns the asynq handler for TaskKeySweep.
func NewKeySweepHandler(sweeper KeySweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		count, err := sweeper.DeactivateExpired(ctx)
		if err != nil {
			return fmt.Errorf("key sweep: %w", err)
		}
		if logger != nil {
			logger.Info("key sweep completed", slog.Int64("deactivated", count))
		}
		return nil
	}
}

// NewSessionPruneHandler returns the asynq handler for TaskSessionPrune.
func NewSessionPruneHandler(pruner SessionPruner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		count, err := pruner.DeleteExpiredSessions(ctx)
		if err != nil {
			return fmt.Errorf("session prune: %w", err)
		}
		if logger != nil {
			logger.Info("session prune completed", slog.Int64("removed", count))
		}
		return nil
	}
}
