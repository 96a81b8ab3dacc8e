package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/transitdw/internal/api/handler"
	"github.com/timmy/transitdw/internal/api/middleware"
	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/metrics"
	"github.com/timmy/transitdw/internal/repository"
)

// Dependencies are the services the router wires into handlers.
type Dependencies struct {
	Gateway *repository.Gateway
	Runner  handler.Runner      // nil disables POST /api/v1/runs
	Metrics *metrics.Collectors // nil disables /metrics
	Logger  *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Dependencies, server config.ServerConfig) *gin.Engine {
	switch server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(server.CORS))

	healthHandler := handler.NewHealthHandler(deps.Gateway)
	jobHandler := handler.NewJobHandler(
		repository.NewJobRunRepository(deps.Gateway),
		repository.NewStagingRepository(deps.Gateway),
	)
	analyticsHandler := handler.NewAnalyticsHandler(repository.NewAnalyticsRepository(deps.Gateway))

	r.GET("/health", healthHandler.Health)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		// Job runs
		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/:id", jobHandler.GetJob)
		v1.GET("/jobs/:id/rejects", jobHandler.ListRejects)

		// Analytics
		v1.GET("/analytics/summary", analyticsHandler.Summary)

		if deps.Runner != nil {
			runHandler := handler.NewRunHandler(deps.Runner)
			v1.POST("/runs", runHandler.TriggerRun)
			v1.GET("/runs/status", runHandler.GetRunStatus)
		}
	}

	return r
}
