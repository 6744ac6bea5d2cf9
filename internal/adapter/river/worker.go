package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// TransitionWorker processes committed-transition jobs from the River queue.
// For now it logs the transition; future versions will dispatch founder
// notifications and downstream webhooks.
type TransitionWorker struct {
	river.WorkerDefaults[TransitionJobArgs]
}

// Work processes a single transition job.
func (w *TransitionWorker) Work(ctx context.Context, job *river.Job[TransitionJobArgs]) error {
	slog.InfoContext(ctx, "processing transition",
		"loan_id", job.Args.LoanID,
		"event", job.Args.Event,
		"from", job.Args.FromState,
		"to", job.Args.ToState,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
