package intake

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealflow-backend/internal/docparse"
	"dealflow-backend/internal/documents"
	"dealflow-backend/internal/extractions"
	"dealflow-backend/internal/jobs"
	"dealflow-backend/internal/shared/metrics"
	"dealflow-backend/internal/shared/storage/object"
	"dealflow-backend/internal/shared/telemetry"
	"dealflow-backend/internal/shared/util"
)

const (
	progressProcessing = 35
	progressExtracted  = 80
)

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".xlsx": true,
}

// Service accepts documents, tracks an intake job per upload, and produces
// an extraction asynchronously.
type Service struct {
	Jobs        jobs.Repo
	Docs        documents.Repo
	Extractions extractions.Repo
	Store       object.ObjectStore
	Engine      Engine

	// DelayMin/DelayMax bound the scheduling delay before extraction
	// starts. Zero values run extraction immediately (tests).
	DelayMin time.Duration
	DelayMax time.Duration
}

// Submit validates and stores the upload, creates a queued intake job, and
// kicks off asynchronous extraction. The caller polls the returned job.
func (s *Service) Submit(ctx context.Context, fileName string, r io.Reader) (jobs.Job, error) {
	cleanName, err := util.SanitizeFileName(fileName)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	ext := strings.ToLower(filepath.Ext(cleanName))
	if !allowedExtensions[ext] {
		return jobs.Job{}, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, cleanName, r)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("store upload: %w", err)
	}

	doc := documents.Document{
		ID:         uuid.NewString(),
		FileName:   cleanName,
		MimeType:   docparse.NormalizeMimeType(mimeType, cleanName, nil),
		SizeBytes:  size,
		StorageKey: storageKey,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Docs.Create(ctx, doc); err != nil {
		return jobs.Job{}, fmt.Errorf("record document: %w", err)
	}

	job := jobs.Job{
		ID:         uuid.NewString(),
		Kind:       jobs.KindIntake,
		State:      jobs.StateQueued,
		Progress:   jobs.InitialProgress,
		DocumentID: doc.ID,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return jobs.Job{}, fmt.Errorf("create job: %w", err)
	}

	go s.completeAsync(telemetry.BackgroundWithRequestID(ctx), job.ID, doc)

	return job, nil
}

func (s *Service) completeAsync(ctx context.Context, jobID string, doc documents.Document) {
	defer func() {
		if r := recover(); r != nil {
			s.failJob(ctx, jobID, doc.ID, fmt.Errorf("panic: %v", r))
		}
	}()

	if delay := s.scheduleDelay(); delay > 0 {
		time.Sleep(delay)
	}

	if err := s.Jobs.SetProgress(ctx, jobID, jobs.StateProcessing, progressProcessing); err != nil {
		s.failJob(ctx, jobID, doc.ID, fmt.Errorf("set processing: %w", err))
		return
	}
	metrics.IncIntakeStarted()
	telemetry.Info("intake.status", map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"job_id":            jobID,
		"document_id":       doc.ID,
		"status":            jobs.StateProcessing,
		"status_transition": "queued->processing",
	})

	// Text recovery is best effort: the engine synthesizes from structured
	// figures and does not require the raw text to succeed.
	text, err := docparse.Text(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName)
	if err != nil {
		telemetry.Warn("intake.parse", map[string]any{
			"request_id":  telemetry.RequestIDFromContext(ctx),
			"job_id":      jobID,
			"document_id": doc.ID,
			"error":       err.Error(),
		})
		text = ""
	}

	extraction, err := s.Engine.Extract(ctx, doc, text)
	if err != nil {
		s.failJob(ctx, jobID, doc.ID, fmt.Errorf("extraction engine: %w", err))
		return
	}
	extraction.DocumentID = doc.ID
	if extraction.CreatedAt.IsZero() {
		extraction.CreatedAt = time.Now().UTC()
	}

	if err := s.Jobs.SetProgress(ctx, jobID, jobs.StateProcessing, progressExtracted); err != nil {
		s.failJob(ctx, jobID, doc.ID, fmt.Errorf("set progress: %w", err))
		return
	}

	if err := s.Extractions.Put(ctx, extraction); err != nil {
		s.failJob(ctx, jobID, doc.ID, fmt.Errorf("store extraction: %w", err))
		return
	}

	if err := s.Jobs.Complete(ctx, jobID, doc.ID, "", nil); err != nil {
		s.failJob(ctx, jobID, doc.ID, fmt.Errorf("complete job: %w", err))
		return
	}
	metrics.IncIntakeCompleted()
	telemetry.Info("intake.status", map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"job_id":            jobID,
		"document_id":       doc.ID,
		"status":            jobs.StateComplete,
		"status_transition": "processing->complete",
	})
}

func (s *Service) failJob(ctx context.Context, jobID, documentID string, err error) {
	msg := sanitizeError(err)
	if updateErr := s.Jobs.Fail(context.Background(), jobID, msg); updateErr != nil {
		telemetry.Error("intake.fail", map[string]any{
			"job_id": jobID,
			"error":  updateErr.Error(),
			"cause":  msg,
		})
	}
	metrics.IncIntakeFailed()
	telemetry.Info("intake.status", map[string]any{
		"request_id":        telemetry.RequestIDFromContext(ctx),
		"job_id":            jobID,
		"document_id":       documentID,
		"status":            jobs.StateError,
		"status_transition": "processing->error",
		"error":             msg,
	})
}

func (s *Service) scheduleDelay() time.Duration {
	if s.DelayMax <= 0 || s.DelayMax < s.DelayMin {
		return s.DelayMin
	}
	if s.DelayMax == s.DelayMin {
		return s.DelayMin
	}
	return s.DelayMin + time.Duration(rand.Int63n(int64(s.DelayMax-s.DelayMin)))
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
