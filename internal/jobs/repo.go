package jobs

import "context"

// Repo defines persistence operations for the job tracker. Implementations
// must enforce terminal immutability and keep progress monotonic.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	// SetProgress moves the job to state with the given progress. Progress
	// never decreases; a lower value is ignored in favor of the current one.
	SetProgress(ctx context.Context, jobID, state string, progress int) error
	// Complete marks the job complete at progress 100 with its produced links.
	Complete(ctx context.Context, jobID, documentID, dealID string, score *int) error
	// Fail marks the job errored at progress 100 with a message.
	Fail(ctx context.Context, jobID, message string) error
}
