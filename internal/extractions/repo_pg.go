package extractions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres. The extraction body is stored as a
// JSONB payload alongside the keyed columns.
type PGRepo struct {
	DB *sql.DB
}

// Put inserts a new extraction. Duplicate document ids fail.
func (r *PGRepo) Put(ctx context.Context, extraction Extraction) error {
	payload, err := json.Marshal(extraction)
	if err != nil {
		return fmt.Errorf("marshal extraction: %w", err)
	}

	const query = `
INSERT INTO extractions (document_id, document_type, payload, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (document_id) DO NOTHING`

	res, err := r.DB.ExecContext(ctx, query, extraction.DocumentID, extraction.DocumentType, payload, extraction.CreatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetByDocumentID returns the extraction for a document.
func (r *PGRepo) GetByDocumentID(ctx context.Context, documentID string) (Extraction, error) {
	const query = `SELECT payload FROM extractions WHERE document_id = $1`

	var payload []byte
	err := r.DB.QueryRowContext(ctx, query, documentID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Extraction{}, ErrNotFound
		}
		return Extraction{}, err
	}

	var extraction Extraction
	if err := json.Unmarshal(payload, &extraction); err != nil {
		return Extraction{}, fmt.Errorf("unmarshal extraction payload: %w", err)
	}
	return extraction, nil
}

var _ Repo = (*PGRepo)(nil)
