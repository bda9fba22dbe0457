package deals

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores deals in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Deal
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Deal)}
}

// Create stores the deal.
func (r *MemoryRepo) Create(ctx context.Context, deal Deal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[deal.ID] = deal
	return nil
}

// GetByID returns a deal by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, dealID string) (Deal, error) {
	if err := ctx.Err(); err != nil {
		return Deal{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	deal, ok := r.byID[dealID]
	if !ok {
		return Deal{}, ErrNotFound
	}
	return deal, nil
}

// List returns all deals, newest first.
func (r *MemoryRepo) List(ctx context.Context) ([]Deal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Deal, 0, len(r.byID))
	for _, deal := range r.byID {
		out = append(out, deal)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
