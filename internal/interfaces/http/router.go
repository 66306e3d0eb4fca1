// Package http wires the gin route tree and the HTTP server lifecycle.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/diagnovera/diagnovera/internal/config"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/prometheus"
	"github.com/diagnovera/diagnovera/internal/interfaces/http/handlers"
	"github.com/diagnovera/diagnovera/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.
type RouterConfig struct {
	DiagnosisHandler *handlers.DiagnosisHandler
	LibraryHandler   *handlers.LibraryHandler
	HealthHandler    *handlers.HealthHandler

	Server  config.ServerConfig
	Logger  logging.Logger
	Metrics *prometheus.AppMetrics
	// MetricsCollector, when set, exposes GET /metrics.
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogger(log))
	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	{
		if cfg.DiagnosisHandler != nil {
			api.POST("/diagnose", cfg.DiagnosisHandler.Diagnose)
			api.GET("/diagnoses/:id", cfg.DiagnosisHandler.Get)
			api.GET("/encounters/:encounterID/diagnoses", cfg.DiagnosisHandler.ListByEncounter)
		}
		if cfg.LibraryHandler != nil {
			lib := api.Group("/library")
			lib.GET("/profiles", cfg.LibraryHandler.List)
			lib.POST("/profiles/build", cfg.LibraryHandler.Build)
			lib.GET("/profiles/:diseaseID", cfg.LibraryHandler.Get)
			lib.PUT("/profiles/:diseaseID", cfg.LibraryHandler.Upsert)
			lib.DELETE("/profiles/:diseaseID", cfg.LibraryHandler.Delete)
		}
	}

	return r
}
