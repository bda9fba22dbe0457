package pipeline

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dealflow-backend/internal/intake"
	"dealflow-backend/internal/jobs"
	"dealflow-backend/internal/shared/server/middleware"
	"dealflow-backend/internal/shared/server/respond"
	"dealflow-backend/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the pipeline service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches pipeline routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/rune/intake", h.start)
	rg.GET("/rune/jobs/:id", h.status)
}

func (h *Handler) start(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	ctx := telemetry.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	job, err := h.Svc.Start(ctx, fileHeader.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, intake.ErrInvalidInput), errors.Is(err, intake.ErrUnsupportedType):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start pipeline", nil)
		}
		return
	}

	respond.Accepted(c, gin.H{"rune_job_id": job.ID})
}

func (h *Handler) status(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}

	job, err := h.Svc.Jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrNotFound):
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
	if job.DocumentID != "" {
		resp["docId"] = job.DocumentID
	}
	if job.DealID != "" {
		resp["dealId"] = job.DealID
	}
	if job.Score != nil {
		resp["dqi"] = *job.Score
	}
	if job.ErrorMessage != "" {
		resp["error"] = job.ErrorMessage
	}

	respond.JSON(c, http.StatusOK, resp)
}
