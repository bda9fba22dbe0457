package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"dealflow-backend/internal/deals"
	"dealflow-backend/internal/documents"
	"dealflow-backend/internal/extractions"
	"dealflow-backend/internal/intake"
	"dealflow-backend/internal/jobs"
	"dealflow-backend/internal/queue"
	"dealflow-backend/internal/shared/storage/object/local"
)

func newTestPipeline(t *testing.T) *Service {
	t.Helper()
	jobRepo := jobs.NewMemoryRepo()
	docRepo := documents.NewMemoryRepo()
	extRepo := extractions.NewMemoryRepo()

	intakeSvc := &intake.Service{
		Jobs:        jobRepo,
		Docs:        docRepo,
		Extractions: extRepo,
		Store:       local.New(t.TempDir()),
		Engine:      intake.StubEngine{},
	}
	return &Service{
		Jobs:         jobRepo,
		Docs:         docRepo,
		Intake:       intakeSvc,
		Extractions:  extRepo,
		Deals:        deals.NewMemoryRepo(),
		PollAttempts: 50,
		PollInterval: 10 * time.Millisecond,
	}
}

func waitForTerminal(t *testing.T, repo jobs.Repo, jobID string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.GetByID(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return jobs.Job{}
}

func TestPipelineEndToEnd(t *testing.T) {
	svc := newTestPipeline(t)

	job, err := svc.Start(context.Background(), "riverside-plaza.pdf", strings.NewReader("%PDF-1.4 stub"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if job.Kind != jobs.KindRune {
		t.Fatalf("expected rune job, got %q", job.Kind)
	}
	if job.State != jobs.StateQueued || job.Progress != jobs.InitialProgress {
		t.Fatalf("expected queued@%d, got %s@%d", jobs.InitialProgress, job.State, job.Progress)
	}

	final := waitForTerminal(t, svc.Jobs, job.ID)
	if final.State != jobs.StateComplete {
		t.Fatalf("expected complete, got %q (error=%q)", final.State, final.ErrorMessage)
	}
	if final.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", final.Progress)
	}
	if final.DocumentID == "" || final.DealID == "" {
		t.Fatalf("expected document and deal linkage, got %+v", final)
	}
	if final.Score == nil || *final.Score < 0 || *final.Score > 100 {
		t.Fatalf("expected dqi in [0,100], got %v", final.Score)
	}

	deal, err := svc.Deals.GetByID(context.Background(), final.DealID)
	if err != nil {
		t.Fatalf("get deal: %v", err)
	}
	if deal.Stage != deals.StageDraft {
		t.Fatalf("expected stage %q, got %q", deals.StageDraft, deal.Stage)
	}
	if deal.FundingPercent != 0 {
		t.Fatalf("expected funding 0, got %v", deal.FundingPercent)
	}
	if deal.DQI != *final.Score {
		t.Fatalf("deal dqi %d does not match job score %d", deal.DQI, *final.Score)
	}
	if deal.Summary.NOI == nil {
		t.Fatal("expected mapped NOI")
	}
	if want := *deal.Summary.NOI * deals.TargetRaiseMultiple; deal.TargetRaise != want {
		t.Fatalf("expected target raise %v, got %v", want, deal.TargetRaise)
	}
	if deal.Name != "riverside plaza" {
		t.Fatalf("unexpected deal name %q", deal.Name)
	}
}

func TestPipelineExtractionTimeout(t *testing.T) {
	svc := newTestPipeline(t)
	// The pipeline watches a store the intake never writes to, so the
	// extraction never materializes.
	svc.Extractions = extractions.NewMemoryRepo()
	svc.PollAttempts = 4
	svc.PollInterval = 5 * time.Millisecond

	job, err := svc.Start(context.Background(), "stalled-deal.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	final := waitForTerminal(t, svc.Jobs, job.ID)
	if final.State != jobs.StateError {
		t.Fatalf("expected error state, got %q", final.State)
	}
	if final.Progress != 100 {
		t.Fatalf("expected progress 100 on terminal job, got %d", final.Progress)
	}
	if final.DealID != "" {
		t.Fatalf("expected no deal linkage, got %q", final.DealID)
	}
	if !strings.Contains(final.ErrorMessage, "timed out") {
		t.Fatalf("expected timeout message, got %q", final.ErrorMessage)
	}
}

func TestPipelineIntakeFailurePropagates(t *testing.T) {
	svc := newTestPipeline(t)
	svc.Intake.Engine = stubFailEngine{}

	job, err := svc.Start(context.Background(), "bad-deal.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	final := waitForTerminal(t, svc.Jobs, job.ID)
	if final.State != jobs.StateError {
		t.Fatalf("expected error state, got %q", final.State)
	}
	if !strings.Contains(final.ErrorMessage, "intake failed") {
		t.Fatalf("expected intake failure message, got %q", final.ErrorMessage)
	}
}

func TestTerminalJobLookupsAreIdempotent(t *testing.T) {
	svc := newTestPipeline(t)

	job, err := svc.Start(context.Background(), "stable-deal.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	final := waitForTerminal(t, svc.Jobs, job.ID)

	for i := 0; i < 5; i++ {
		again, err := svc.Jobs.GetByID(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if !reflect.DeepEqual(final, again) {
			t.Fatalf("terminal job mutated between reads: %+v vs %+v", final, again)
		}
	}
}

func TestPipelineRedeliveryDoesNotDuplicateDeal(t *testing.T) {
	svc := newTestPipeline(t)

	intakeJob, err := svc.Intake.Submit(context.Background(), "harbor-court.pdf", strings.NewReader("%PDF-1.4 stub"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	runeJob := jobs.Job{
		ID:        "rune-redelivered",
		Kind:      jobs.KindRune,
		State:     jobs.StateQueued,
		Progress:  jobs.InitialProgress,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := svc.Jobs.Create(context.Background(), runeJob); err != nil {
		t.Fatalf("create rune job: %v", err)
	}

	svc.ProcessRuneJob(context.Background(), runeJob.ID, intakeJob.ID)
	first, err := svc.Jobs.GetByID(context.Background(), runeJob.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if first.State != jobs.StateComplete {
		t.Fatalf("expected complete, got %q (error=%q)", first.State, first.ErrorMessage)
	}

	// Same message delivered again after the run finished.
	svc.ProcessRuneJob(context.Background(), runeJob.ID, intakeJob.ID)

	all, err := svc.Deals.List(context.Background())
	if err != nil {
		t.Fatalf("list deals: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one deal, got %d", len(all))
	}
	again, err := svc.Jobs.GetByID(context.Background(), runeJob.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if !reflect.DeepEqual(first, again) {
		t.Fatalf("terminal job mutated by redelivery: %+v vs %+v", first, again)
	}
}

func TestPipelineEnqueueFailureMarksJobError(t *testing.T) {
	svc := newTestPipeline(t)
	svc.Queue = failingQueue{}

	job, err := svc.Start(context.Background(), "unreachable-queue.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	final := waitForTerminal(t, svc.Jobs, job.ID)
	if final.State != jobs.StateError {
		t.Fatalf("expected error state, got %q", final.State)
	}
	if !strings.Contains(final.ErrorMessage, "enqueue pipeline job") {
		t.Fatalf("expected enqueue failure message, got %q", final.ErrorMessage)
	}
	if final.DealID != "" {
		t.Fatalf("expected no deal linkage, got %q", final.DealID)
	}
}

type failingQueue struct{}

func (failingQueue) Send(ctx context.Context, msg queue.Message) error {
	return errors.New("sqs unavailable")
}

type stubFailEngine struct{}

func (stubFailEngine) Extract(ctx context.Context, doc documents.Document, text string) (extractions.Extraction, error) {
	return extractions.Extraction{}, context.DeadlineExceeded
}
