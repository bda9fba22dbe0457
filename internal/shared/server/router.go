package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dealflow-backend/internal/deals"
	"dealflow-backend/internal/intake"
	"dealflow-backend/internal/jobs"
	"dealflow-backend/internal/pipeline"
	"dealflow-backend/internal/shared/config"
	"dealflow-backend/internal/shared/metrics"
	"dealflow-backend/internal/shared/server/middleware"
	"dealflow-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config          config.Config
	IntakeHandler   *intake.Handler
	JobsHandler     *jobs.Handler
	PipelineHandler *pipeline.Handler
	DealsHandler    *deals.Handler
}

// Rate-limit groups. Status polling is split from uploads so a tight poller
// cannot starve submissions.
const (
	rateGroupUpload = "UPLOAD"
	rateGroupPoll   = "POLL"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				rateGroupUpload: {Rate: 2, Burst: 10},
				rateGroupPoll:   {Rate: 20, Burst: 60},
			},
			GroupFor: rateGroupFor,
		}),
	)

	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())

	root := r.Group("")
	if deps.IntakeHandler != nil {
		deps.IntakeHandler.RegisterRoutes(root)
	}
	if deps.JobsHandler != nil {
		deps.JobsHandler.RegisterRoutes(root)
	}
	if deps.PipelineHandler != nil {
		deps.PipelineHandler.RegisterRoutes(root)
	}
	if deps.DealsHandler != nil {
		deps.DealsHandler.RegisterRoutes(root)
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	if c.Request.Method == http.MethodPost {
		return rateGroupUpload
	}
	return rateGroupPoll
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
