package deals

import (
	"time"

	"dealflow-backend/internal/underwriting"
)

// StageDraft is the stage every pipeline-created deal starts in. Later stage
// transitions are driven by downstream funding flows.
const StageDraft = "Draft"

// TargetRaiseMultiple converts normalized NOI into a target raise amount,
// a fixed capitalization-rate multiple.
const TargetRaiseMultiple = 10.0

// Deal is the terminal artifact of a successful pipeline run.
type Deal struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Stage          string               `json:"stage"`
	DQI            int                  `json:"dqi"`
	TargetRaise    float64              `json:"targetRaise"`
	FundingPercent float64              `json:"fundingPercent"`
	DocumentID     string               `json:"documentId,omitempty"`
	Summary        underwriting.Summary `json:"summary"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// TargetRaiseFor derives the raise amount from a normalized summary: NOI
// times the fixed multiple when NOI is known, zero otherwise.
func TargetRaiseFor(summary underwriting.Summary) float64 {
	if summary.NOI == nil {
		return 0
	}
	return *summary.NOI * TargetRaiseMultiple
}
