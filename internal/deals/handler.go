package deals

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dealflow-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the deal store.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches deal routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/deals", h.list)
	rg.GET("/deals/:id", h.get)
}

func (h *Handler) list(c *gin.Context) {
	out, err := h.Repo.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list deals", nil)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) get(c *gin.Context) {
	dealID := c.Param("id")
	if dealID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "deal id is required", nil)
		return
	}

	deal, err := h.Repo.GetByID(c.Request.Context(), dealID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "deal not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch deal", nil)
		}
		return
	}
	c.Set("dealId", deal.ID)

	respond.OK(c, deal)
}
