package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/internal/interfaces/http/handlers"
	"github.com/turtacn/RxDossier/internal/interfaces/http/middleware"
	"github.com/turtacn/RxDossier/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouter_HealthEndpoints(t *testing.T) {
	router := NewRouter(RouterConfig{
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.ReadinessCheck{
			"database": func(context.Context) error { return nil },
		}, logging.NewNopLogger()),
		Logger: logging.NewNopLogger(),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
}

func TestRouter_ReadinessFailure(t *testing.T) {
	router := NewRouter(RouterConfig{
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.ReadinessCheck{
			"redis": func(context.Context) error {
				return errors.New(errors.ErrCodeDatabaseError, "connection refused")
			},
		}, logging.NewNopLogger()),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_RateLimitExceeded(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             2,
		SkipPaths:         []string{"/healthz"},
	})
	defer limiter.Stop()

	router := NewRouter(RouterConfig{
		HealthHandler: handlers.NewHealthHandler(nil, logging.NewNopLogger()),
		RateLimiter:   limiter,
	})

	var last int
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/run-1", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		router.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)

	// skip paths stay reachable regardless of the bucket state
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	cors := &middleware.CORSConfig{AllowOrigins: []string{"https://dossier.example.com"}}
	router := NewRouter(RouterConfig{CORS: cors})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyses", nil)
	req.Header.Set("Origin", "https://dossier.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dossier.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// unknown origins get no allow header
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/analyses", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
