package ginutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "bidi_test_total", Help: "test"})
	require.NoError(t, reg.Register(c))
	c.Inc()

	router := InitRouter()
	EnableMetrics(router, reg)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bidi_test_total 1")
}

func TestLogSwitch(t *testing.T) {
	router := InitRouter()
	defer log.ChangeLogLevel(log.LevelDebug)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/log/level/warn", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, log.IsDebugEnabled())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/log/level/verbose", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecovery(t *testing.T) {
	router := InitRouter()
	router.GET("/boom", func(*gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
