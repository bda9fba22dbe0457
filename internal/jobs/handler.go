package jobs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dealflow-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the job tracker.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs/:jobId/status", h.status)
}

func (h *Handler) status(c *gin.Context) {
	jobID := c.Param("jobId")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}

	job, err := h.Repo.GetByID(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		}
		return
	}
	c.Set("jobId", job.ID)

	resp := gin.H{
		"state":    job.State,
		"progress": job.Progress,
	}
	if job.State == StateComplete && job.DocumentID != "" {
		resp["doc_id"] = job.DocumentID
	}
	if job.ErrorMessage != "" {
		resp["error"] = job.ErrorMessage
	}

	respond.JSON(c, http.StatusOK, resp)
}
