package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hostpulse/internal/config"
	"hostpulse/internal/controllers"
	"hostpulse/internal/middleware"
	"hostpulse/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRouterWiring(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	state := services.NewState()
	issuer, err := services.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour, logger)
	require.NoError(t, err)
	security := middleware.NewSecurityLogger(logger)

	r := NewRouter(config.Default().Server, Deps{
		Metrics:     controllers.NewMetricsController(state),
		Connections: controllers.NewConnectionsController(state),
		Alerts:      controllers.NewAlertsController(state, ackNone{}),
		WebSocket:   controllers.NewWebSocketController(services.NewWebSocketHub(state, logger), issuer, security, logger),
		Security:    security,
		Limiter:     middleware.NewRateLimiter(100, 200),
	})

	for path, want := range map[string]int{
		"/metrics/":          http.StatusServiceUnavailable,
		"/metrics/history":   http.StatusOK,
		"/metrics/bandwidth": http.StatusOK,
		"/connections/":      http.StatusOK,
		"/alerts/":           http.StatusOK,
		"/export/alerts":     http.StatusOK,
		"/ws":                http.StatusUnauthorized,
		"/ws?token=a.b.c":    http.StatusUnauthorized,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"), path)
	}
}

type ackNone struct{}

func (ackNone) Acknowledge(string) bool { return false }
