// Package http assembles the gin route tree and the HTTP server
// lifecycle around it.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/internal/interfaces/http/handlers"
	"github.com/turtacn/RxDossier/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware for the route
// tree. Nil handlers leave their routes unregistered, nil middleware is
// skipped.
type RouterConfig struct {
	AnalysisHandler *handlers.AnalysisHandler
	ReportHandler   *handlers.ReportHandler
	HealthHandler   *handlers.HealthHandler

	RateLimiter *middleware.RateLimiter
	CORS        *middleware.CORSConfig

	// MetricsHandler serves the metrics endpoint when set (promhttp).
	MetricsHandler http.Handler
	// MetricsPath overrides the default /metrics route.
	MetricsPath string

	Logger logging.Logger
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	if cfg.Logger != nil {
		router.Use(middleware.RequestLogging(cfg.Logger, "/healthz", "/readyz", metricsPath))
	}
	if cfg.CORS != nil {
		router.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.RateLimiter != nil {
		router.Use(cfg.RateLimiter.Handler())
	}

	if cfg.HealthHandler != nil {
		router.GET("/healthz", cfg.HealthHandler.Liveness)
		router.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		router.GET(metricsPath, gin.WrapH(cfg.MetricsHandler))
	}

	v1 := router.Group("/api/v1")
	{
		if cfg.AnalysisHandler != nil {
			v1.POST("/analyses", cfg.AnalysisHandler.Submit)
		}
		if cfg.ReportHandler != nil {
			v1.GET("/reports", cfg.ReportHandler.List)
			v1.GET("/reports/:id", cfg.ReportHandler.Get)
			v1.GET("/reports/:id/export", cfg.ReportHandler.Export)
		}
	}

	return router
}
