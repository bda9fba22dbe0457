package jobs

import "time"

// Job states. A job moves queued -> processing -> complete, or to error from
// either non-terminal state. Complete and error are terminal.
const (
	StateQueued     = "queued"
	StateProcessing = "processing"
	StateComplete   = "complete"
	StateError      = "error"
)

// Job kinds.
const (
	KindIntake = "intake"
	KindRune   = "rune"
)

// InitialProgress is the progress a freshly queued job reports.
const InitialProgress = 5

// Job tracks one asynchronous unit of work: a raw intake job or an
// orchestrated RUNE pipeline run.
type Job struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	State        string    `json:"state"`
	Progress     int       `json:"progress"`
	DocumentID   string    `json:"documentId,omitempty"`
	DealID       string    `json:"dealId,omitempty"`
	Score        *int      `json:"score,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Terminal reports whether the job reached a final state.
func (j Job) Terminal() bool {
	return j.State == StateComplete || j.State == StateError
}
