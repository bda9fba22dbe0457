package deals

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"dealflow-backend/internal/underwriting"
)

// PGRepo implements Repo using Postgres. The normalized summary is stored as
// a JSONB column.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new deal.
func (r *PGRepo) Create(ctx context.Context, deal Deal) error {
	summary, err := json.Marshal(deal.Summary)
	if err != nil {
		return fmt.Errorf("marshal deal summary: %w", err)
	}

	const query = `
INSERT INTO deals (id, name, stage, dqi, target_raise, funding_percent, document_id, summary, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var docID sql.NullString
	if deal.DocumentID != "" {
		docID = sql.NullString{String: deal.DocumentID, Valid: true}
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		deal.ID,
		deal.Name,
		deal.Stage,
		deal.DQI,
		deal.TargetRaise,
		deal.FundingPercent,
		docID,
		summary,
		deal.CreatedAt,
	)
	return err
}

// GetByID returns a deal by its ID.
func (r *PGRepo) GetByID(ctx context.Context, dealID string) (Deal, error) {
	const query = `
SELECT id, name, stage, dqi, target_raise, funding_percent, document_id, summary, created_at
FROM deals
WHERE id = $1`

	deal, err := scanDeal(r.DB.QueryRowContext(ctx, query, dealID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Deal{}, ErrNotFound
		}
		return Deal{}, err
	}
	return deal, nil
}

// List returns all deals, newest first.
func (r *PGRepo) List(ctx context.Context) ([]Deal, error) {
	const query = `
SELECT id, name, stage, dqi, target_raise, funding_percent, document_id, summary, created_at
FROM deals
ORDER BY created_at DESC, id`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Deal{}
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, deal)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeal(row rowScanner) (Deal, error) {
	var (
		deal    Deal
		docID   sql.NullString
		summary []byte
	)
	if err := row.Scan(
		&deal.ID,
		&deal.Name,
		&deal.Stage,
		&deal.DQI,
		&deal.TargetRaise,
		&deal.FundingPercent,
		&docID,
		&summary,
		&deal.CreatedAt,
	); err != nil {
		return Deal{}, err
	}
	if docID.Valid {
		deal.DocumentID = docID.String
	}
	if len(summary) > 0 {
		var s underwriting.Summary
		if err := json.Unmarshal(summary, &s); err != nil {
			return Deal{}, fmt.Errorf("unmarshal deal summary: %w", err)
		}
		deal.Summary = s
	}
	return deal, nil
}

var _ Repo = (*PGRepo)(nil)
