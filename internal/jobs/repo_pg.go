package jobs

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres. The state-machine guards mirror the
// memory repo: terminal rows are never mutated and progress never decreases.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO jobs (id, kind, state, progress, document_id, deal_id, score, error_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		job.ID,
		job.Kind,
		job.State,
		job.Progress,
		nullString(job.DocumentID),
		nullString(job.DealID),
		nullInt(job.Score),
		nullString(job.ErrorMessage),
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID returns a job by its ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	const query = `
SELECT id, kind, state, progress, document_id, deal_id, score, error_message, created_at, updated_at
FROM jobs
WHERE id = $1`

	var (
		job      Job
		docID    sql.NullString
		dealID   sql.NullString
		score    sql.NullInt64
		errorMsg sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID,
		&job.Kind,
		&job.State,
		&job.Progress,
		&docID,
		&dealID,
		&score,
		&errorMsg,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	if docID.Valid {
		job.DocumentID = docID.String
	}
	if dealID.Valid {
		job.DealID = dealID.String
	}
	if score.Valid {
		v := int(score.Int64)
		job.Score = &v
	}
	if errorMsg.Valid {
		job.ErrorMessage = errorMsg.String
	}
	return job, nil
}

// SetProgress moves the job to state with monotonic progress.
func (r *PGRepo) SetProgress(ctx context.Context, jobID, state string, progress int) error {
	const query = `
UPDATE jobs
SET state = $2, progress = GREATEST(progress, $3), updated_at = $4
WHERE id = $1 AND state NOT IN ('complete', 'error')`

	return r.guardedExec(ctx, jobID, query, state, clampProgress(progress), time.Now().UTC())
}

// Complete marks the job complete at progress 100 with its produced links.
func (r *PGRepo) Complete(ctx context.Context, jobID, documentID, dealID string, score *int) error {
	const query = `
UPDATE jobs
SET state = 'complete',
    progress = 100,
    document_id = COALESCE($2, document_id),
    deal_id = COALESCE($3, deal_id),
    score = COALESCE($4, score),
    updated_at = $5
WHERE id = $1 AND state NOT IN ('complete', 'error')`

	return r.guardedExec(ctx, jobID, query, nullString(documentID), nullString(dealID), nullInt(score), time.Now().UTC())
}

// Fail marks the job errored at progress 100 with a message.
func (r *PGRepo) Fail(ctx context.Context, jobID, message string) error {
	const query = `
UPDATE jobs
SET state = 'error', progress = 100, error_message = $2, updated_at = $3
WHERE id = $1 AND state NOT IN ('complete', 'error')`

	return r.guardedExec(ctx, jobID, query, message, time.Now().UTC())
}

func (r *PGRepo) guardedExec(ctx context.Context, jobID, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, append([]any{jobID}, args...)...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the row is missing or it is already terminal.
		if _, getErr := r.GetByID(ctx, jobID); getErr != nil {
			return getErr
		}
		return ErrTerminal
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

var _ Repo = (*PGRepo)(nil)
