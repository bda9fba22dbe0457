package jobs

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use. With a
// non-zero TTL, terminal jobs older than the TTL are dropped by Cleanup.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Job
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo without eviction.
func NewMemoryRepo() *MemoryRepo {
	return NewMemoryRepoTTL(0)
}

// NewMemoryRepoTTL constructs a MemoryRepo that evicts terminal jobs after ttl.
func NewMemoryRepoTTL(ttl time.Duration) *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]Job),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = job
	return nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// SetProgress moves the job to state with the given progress, keeping
// progress monotonic. Mutating a terminal job fails with ErrTerminal.
func (r *MemoryRepo) SetProgress(ctx context.Context, jobID, state string, progress int) error {
	return r.mutate(ctx, jobID, func(job *Job) {
		job.State = state
		if progress > job.Progress {
			job.Progress = clampProgress(progress)
		}
	})
}

// Complete marks the job complete at progress 100 with its produced links.
func (r *MemoryRepo) Complete(ctx context.Context, jobID, documentID, dealID string, score *int) error {
	return r.mutate(ctx, jobID, func(job *Job) {
		job.State = StateComplete
		job.Progress = 100
		if documentID != "" {
			job.DocumentID = documentID
		}
		if dealID != "" {
			job.DealID = dealID
		}
		if score != nil {
			v := *score
			job.Score = &v
		}
	})
}

// Fail marks the job errored at progress 100 with a message.
func (r *MemoryRepo) Fail(ctx context.Context, jobID, message string) error {
	return r.mutate(ctx, jobID, func(job *Job) {
		job.State = StateError
		job.Progress = 100
		job.ErrorMessage = message
	})
}

// Cleanup removes terminal jobs older than the configured TTL. A zero TTL
// disables eviction entirely.
func (r *MemoryRepo) Cleanup() int {
	if r.ttl <= 0 {
		return 0
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, job := range r.byID {
		if job.Terminal() && now.Sub(job.UpdatedAt) > r.ttl {
			delete(r.byID, id)
			removed++
		}
	}
	return removed
}

func (r *MemoryRepo) mutate(ctx context.Context, jobID string, apply func(*Job)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Terminal() {
		return ErrTerminal
	}
	apply(&job)
	job.UpdatedAt = r.now().UTC()
	r.byID[jobID] = job
	return nil
}

func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

var _ Repo = (*MemoryRepo)(nil)
