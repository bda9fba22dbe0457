package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealflow-backend/internal/deals"
	"dealflow-backend/internal/documents"
	"dealflow-backend/internal/extractions"
	"dealflow-backend/internal/intake"
	"dealflow-backend/internal/jobs"
	"dealflow-backend/internal/queue"
	"dealflow-backend/internal/shared/metrics"
	"dealflow-backend/internal/shared/telemetry"
	"dealflow-backend/internal/underwriting"
)

const progressCeiling = 95

// ErrExtractionTimeout marks a pipeline run whose extraction never appeared
// within the bounded poll window. Fatal for that run; the caller resubmits.
var ErrExtractionTimeout = errors.New("extraction timed out")

// Service orchestrates the full intake -> extraction -> mapping -> scoring ->
// deal-creation pipeline behind a single pollable job.
type Service struct {
	Jobs        jobs.Repo
	Docs        documents.Repo
	Intake      *intake.Service
	Extractions extractions.Repo
	Deals       deals.Repo

	// Queue, when set, hands processing to a worker instead of an
	// in-process goroutine.
	Queue queue.Client

	PollAttempts int
	PollInterval time.Duration
}

// Start submits the upload through intake, creates a pipeline job, and
// returns it immediately. Processing continues asynchronously; the caller
// polls the returned job id.
func (s *Service) Start(ctx context.Context, fileName string, r io.Reader) (jobs.Job, error) {
	intakeJob, err := s.Intake.Submit(ctx, fileName, r)
	if err != nil {
		return jobs.Job{}, err
	}

	runeJob := jobs.Job{
		ID:        uuid.NewString(),
		Kind:      jobs.KindRune,
		State:     jobs.StateQueued,
		Progress:  jobs.InitialProgress,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.Jobs.Create(ctx, runeJob); err != nil {
		return jobs.Job{}, fmt.Errorf("create pipeline job: %w", err)
	}

	if s.Queue != nil {
		msg := queue.Message{
			RuneJobID:   runeJob.ID,
			IntakeJobID: intakeJob.ID,
			RequestID:   telemetry.RequestIDFromContext(ctx),
			EnqueuedAt:  time.Now().UTC().Format(time.RFC3339),
			Version:     1,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			s.fail(ctx, runeJob.ID, "", fmt.Errorf("enqueue pipeline job: %w", err), nil)
			return runeJob, nil
		}
		return runeJob, nil
	}

	go s.ProcessRuneJob(telemetry.BackgroundWithRequestID(ctx), runeJob.ID, intakeJob.ID)

	return runeJob, nil
}

// ProcessRuneJob drives one pipeline run to a terminal state. It mirrors the
// intake job's progress, waits a bounded window for the extraction, then maps,
// scores, and creates the deal.
func (s *Service) ProcessRuneJob(ctx context.Context, runeJobID, intakeJobID string) {
	startedAt := time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, runeJobID, "", fmt.Errorf("panic: %v", r), &startedAt)
		}
	}()

	// Queue delivery is at-least-once: a replayed message for a finished run
	// must not create a second deal.
	if job, err := s.Jobs.GetByID(ctx, runeJobID); err == nil && job.Terminal() {
		telemetry.Info("pipeline.redelivery_skipped", map[string]any{
			"request_id": telemetry.RequestIDFromContext(ctx),
			"job_id":     runeJobID,
			"status":     job.State,
		})
		return
	}

	metrics.IncPipelineStarted()
	telemetry.Info("pipeline.status", map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"job_id":            runeJobID,
		"status":            jobs.StateProcessing,
		"status_transition": "queued->processing",
	})

	documentID := ""
	var extraction extractions.Extraction
	found := false

	attempts := s.PollAttempts
	if attempts <= 0 {
		attempts = 20
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	for attempt := 0; attempt < attempts; attempt++ {
		intakeJob, err := s.Jobs.GetByID(ctx, intakeJobID)
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			// Not yet visible: tolerated inside the poll window.
		case err != nil:
			s.fail(ctx, runeJobID, documentID, fmt.Errorf("intake job lookup: %w", err), &startedAt)
			return
		default:
			if intakeJob.State == jobs.StateError {
				s.fail(ctx, runeJobID, intakeJob.DocumentID, fmt.Errorf("intake failed: %s", intakeJob.ErrorMessage), &startedAt)
				return
			}
			documentID = intakeJob.DocumentID
			mirrored := intakeJob.Progress
			if mirrored > progressCeiling {
				mirrored = progressCeiling
			}
			if err := s.Jobs.SetProgress(ctx, runeJobID, jobs.StateProcessing, mirrored); err != nil && !errors.Is(err, jobs.ErrTerminal) {
				s.fail(ctx, runeJobID, documentID, fmt.Errorf("mirror progress: %w", err), &startedAt)
				return
			}
		}

		if documentID != "" {
			ext, err := s.Extractions.GetByDocumentID(ctx, documentID)
			if err == nil {
				extraction = ext
				found = true
			} else if !errors.Is(err, extractions.ErrNotFound) {
				s.fail(ctx, runeJobID, documentID, fmt.Errorf("extraction lookup: %w", err), &startedAt)
				return
			}
		}
		if found {
			break
		}
		time.Sleep(interval)
	}

	if !found {
		metrics.IncExtractionTimeout()
		s.fail(ctx, runeJobID, documentID, ErrExtractionTimeout, &startedAt)
		return
	}

	summary := underwriting.Map(extraction, time.Now().UTC())
	score := underwriting.Score(extraction)

	deal := deals.Deal{
		ID:             uuid.NewString(),
		Name:           s.dealName(ctx, documentID),
		Stage:          deals.StageDraft,
		DQI:            score,
		TargetRaise:    deals.TargetRaiseFor(summary),
		FundingPercent: 0,
		DocumentID:     documentID,
		Summary:        summary,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.Deals.Create(ctx, deal); err != nil {
		s.fail(ctx, runeJobID, documentID, fmt.Errorf("create deal: %w", err), &startedAt)
		return
	}

	if err := s.Jobs.Complete(ctx, runeJobID, documentID, deal.ID, &score); err != nil {
		s.fail(ctx, runeJobID, documentID, fmt.Errorf("complete pipeline job: %w", err), &startedAt)
		return
	}

	completedAt := time.Now().UTC()
	metrics.IncPipelineCompleted()
	metrics.ObservePipelineDurationMs(float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0)
	telemetry.Info("pipeline.status", map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"job_id":            runeJobID,
		"document_id":       documentID,
		"deal_id":           deal.ID,
		"dqi":               score,
		"status":            jobs.StateComplete,
		"status_transition": "processing->complete",
		"duration_ms":       float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0,
	})
}

func (s *Service) fail(ctx context.Context, runeJobID, documentID string, err error, startedAt *time.Time) {
	fromState := jobs.StateProcessing
	if job, lookupErr := s.Jobs.GetByID(context.Background(), runeJobID); lookupErr == nil && !job.Terminal() {
		fromState = job.State
	}
	msg := sanitizeError(err)
	if updateErr := s.Jobs.Fail(context.Background(), runeJobID, msg); updateErr != nil {
		telemetry.Error("pipeline.fail", map[string]any{
			"job_id": runeJobID,
			"error":  updateErr.Error(),
			"cause":  msg,
		})
	}
	metrics.IncPipelineFailed()
	fields := map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"job_id":            runeJobID,
		"status":            jobs.StateError,
		"status_transition": fromState + "->" + jobs.StateError,
		"error":             msg,
	}
	if documentID != "" {
		fields["document_id"] = documentID
	}
	if startedAt != nil {
		fields["duration_ms"] = float64(time.Now().UTC().Sub(*startedAt).Microseconds()) / 1000.0
	}
	telemetry.Info("pipeline.status", fields)
}

func (s *Service) dealName(ctx context.Context, documentID string) string {
	doc, err := s.Docs.GetByID(ctx, documentID)
	if err != nil {
		return "Untitled Deal"
	}
	base := strings.TrimSuffix(doc.FileName, filepath.Ext(doc.FileName))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	base = strings.TrimSpace(base)
	if base == "" {
		return "Untitled Deal"
	}
	return base
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
