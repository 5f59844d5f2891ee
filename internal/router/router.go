package router

import (
	"github.com/gin-gonic/gin"

	"bloodagent/internal/config"
	"bloodagent/internal/handler"
	"bloodagent/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	pipelineH *handler.PipelineHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	// A batch may carry several files, so the body cap is a multiple of the per-file limit.
	maxBody := (cfg.Server.MaxUploadMB << 20) * 16
	r.POST("/run-agent", middleware.BodyLimit(maxBody), pipelineH.RunAgent)
	r.GET("/results/:id", pipelineH.GetResult)
	r.GET("/results/:id/csv", pipelineH.ExportCSV)

	return r
}
