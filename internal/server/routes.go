package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/wyckoff-journal/internal/config"
	"github.com/fleveque/wyckoff-journal/internal/handler"
	"github.com/fleveque/wyckoff-journal/internal/middleware"
)

// Handlers groups the handlers RegisterRoutes mounts.
type Handlers struct {
	Health   *handler.HealthHandler
	Catalog  *handler.CatalogHandler
	Analysis *handler.AnalysisHandler
	Journal  *handler.JournalHandler
	Stats    *handler.StatsHandler
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, h Handlers) {
	r.GET("/healthz", h.Health.Healthz)

	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	{
		// Group middleware only runs on matched routes, so preflight needs a
		// route of its own; CORS answers it before this handler runs.
		api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		api.GET("/catalog", h.Catalog.Get)
		api.GET("/session", h.Analysis.Session)
		api.GET("/journal", h.Journal.List)
		api.GET("/journal/export", h.Journal.Export)
		api.POST("/journal/import", h.Journal.Import)
		api.POST("/journal/archive", h.Journal.Archive)
		api.GET("/stats", h.Stats.Stats)
	}

	// Every generation is a paid provider call.
	generate := api.Group("")
	generate.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		generate.POST("/analyses", h.Analysis.Create)
	}
}
