package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kiosk-llm/relay/internal/metrics"
	"github.com/kiosk-llm/relay/sdk/api/handlers"
	"github.com/kiosk-llm/relay/sdk/config"
	"github.com/prometheus/client_golang/prometheus"
)

func TestNewServerWithOptions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Debug = true

	var engineSeen bool
	collector := metrics.NewCollector(prometheus.NewRegistry())
	s := NewServer(cfg,
		WithEngineConfigurator(func(*gin.Engine) { engineSeen = true }),
		WithMiddleware(func(c *gin.Context) {
			c.Header("X-Embedded", "yes")
			c.Next()
		}),
		WithRouterConfigurator(func(e *gin.Engine, h *handlers.BaseAPIHandler, _ *config.Config) {
			e.GET("/embedded", func(c *gin.Context) { c.String(http.StatusOK, h.Backend()) })
		}),
		WithMetricsCollector(collector),
	)
	if !engineSeen {
		t.Fatal("engine configurator not called")
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/embedded", nil))
	if rec.Body.String() != "local" || rec.Header().Get("X-Embedded") != "yes" {
		t.Fatalf("body = %q headers = %v", rec.Body.String(), rec.Header())
	}

	collector.RecordClientDisconnect("local")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "relay_client_disconnects_total") {
		t.Fatalf("metrics status = %d body = %s", rec.Code, rec.Body.String())
	}
}
