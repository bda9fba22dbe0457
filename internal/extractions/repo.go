package extractions

import "context"

// Repo defines persistence operations for extraction artifacts.
// Extractions are write-once: Put rejects a second write for a document id.
type Repo interface {
	Put(ctx context.Context, extraction Extraction) error
	GetByDocumentID(ctx context.Context, documentID string) (Extraction, error)
}
