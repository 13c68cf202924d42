package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/isoworld/internal/eventbus"
	"github.com/annel0/isoworld/internal/logging"
)

func newRouter(t *testing.T, reg *prometheus.Registry) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pm, err := NewPrometheusMiddleware("test", reg)
	require.NoError(t, err)

	r := gin.New()
	r.Use(NewRequestLogger(nil).Handler(), pm.Handler())
	r.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, eventbus.CorrelationID(c.Request.Context()))
	})
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	RegisterMetricsEndpoint(r, reg)
	return r
}

func TestRequestLogger_PropagatesCorrelationID(t *testing.T) {
	r := newRouter(t, prometheus.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(CorrelationHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.NotEmpty(t, w.Body.String(), "без заголовка идентификатор генерируется")
}

func TestPrometheusMiddleware_CountsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newRouter(t, reg)

	for _, path := range []string{"/ok", "/fail", "/fail"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "test_http_request_errors_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "test_http_request_duration_seconds"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "test_http_requests_inflight"))
}

func TestPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMiddleware("dup", reg)
	require.NoError(t, err)
	_, err = NewPrometheusMiddleware("dup", reg)
	assert.Error(t, err)
}

func TestRequestLogger_WritesToComponentLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf strings.Builder
	l := logging.NewWriterLogger("http", &buf, logging.DEBUG)

	r := gin.New()
	r.Use(NewRequestLogger(l).Handler())
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Contains(t, buf.String(), "[DEBUG] [http] [HTTP] ▶ GET /boom")
	assert.Contains(t, buf.String(), "[ERROR] [http] [HTTP] ◀ GET /boom 500")
}
