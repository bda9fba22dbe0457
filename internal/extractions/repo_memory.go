package extractions

import (
	"context"
	"sync"
)

// MemoryRepo stores extractions in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu    sync.RWMutex
	byDoc map[string]Extraction
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byDoc: make(map[string]Extraction)}
}

// Put stores the extraction. A second write for the same document id fails.
func (r *MemoryRepo) Put(ctx context.Context, extraction Extraction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byDoc[extraction.DocumentID]; ok {
		return ErrAlreadyExists
	}
	r.byDoc[extraction.DocumentID] = extraction
	return nil
}

// GetByDocumentID returns the extraction for a document.
func (r *MemoryRepo) GetByDocumentID(ctx context.Context, documentID string) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	extraction, ok := r.byDoc[documentID]
	if !ok {
		return Extraction{}, ErrNotFound
	}
	return extraction, nil
}

var _ Repo = (*MemoryRepo)(nil)
