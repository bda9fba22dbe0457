package deals

import "context"

// Repo defines persistence operations for deals.
type Repo interface {
	Create(ctx context.Context, deal Deal) error
	GetByID(ctx context.Context, dealID string) (Deal, error)
	List(ctx context.Context) ([]Deal, error)
}
