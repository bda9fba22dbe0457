package intake

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dealflow-backend/internal/extractions"
	"dealflow-backend/internal/shared/server/middleware"
	"dealflow-backend/internal/shared/server/respond"
	"dealflow-backend/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the intake service.
type Handler struct {
	Svc            *Service
	Extractions    extractions.Repo
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, extRepo extractions.Repo, maxUploadBytes int64) *Handler {
	return &Handler{Svc: svc, Extractions: extRepo, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches intake routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/upload", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:docId/entities", h.entities)
}

func (h *Handler) list(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	docs, err := h.Svc.Docs.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		return
	}
	respond.OK(c, docs)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func (h *Handler) upload(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "file exceeds the upload size limit", nil)
			return
		}
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
	job, err := h.Svc.Submit(ctx, fileHeader.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnsupportedType):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start intake", nil)
		}
		return
	}

	respond.Accepted(c, gin.H{"job_id": job.ID})
}

func (h *Handler) entities(c *gin.Context) {
	docID := c.Param("docId")
	if docID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}

	ext, err := h.Extractions.GetByDocumentID(c.Request.Context(), docID)
	if err != nil {
		switch {
		case errors.Is(err, extractions.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "extraction not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch extraction", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, ext)
}
