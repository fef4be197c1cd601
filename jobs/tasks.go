package jobs

import "github.com/hibiken/asynq"

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskKeySweep deactivates access keys past their maximum age.
	TaskKeySweep = "keys:sweep"
	// TaskSessionPrune removes expired session rows.
	TaskSessionPrune = "sessions:prune"
)

// NewKeySweepTask constructs the periodic key sweep task.
func NewKeySweepTask() *asynq.Task {
	return asynq.NewTask(TaskKeySweep, nil)
}

// NewSessionPruneTask constructs the periodic session prune task.
func NewSessionPruneTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPrune, nil)
}
