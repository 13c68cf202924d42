package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMiddleware HTTP-метрики отладочного API:
//
//	<ns>_http_request_duration_seconds{method,path,status}
//	<ns>_http_requests_inflight
//	<ns>_http_request_errors_total{method,path,status}
type PrometheusMiddleware struct {
	reqDuration *prometheus.HistogramVec
	reqInflight prometheus.Gauge
	reqErrors   *prometheus.CounterVec
}

// NewPrometheusMiddleware создаёт метрики и регистрирует их в reg
// (nil - реестр по умолчанию).
func NewPrometheusMiddleware(namespace string, reg prometheus.Registerer) (*PrometheusMiddleware, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	pm := &PrometheusMiddleware{
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "path", "status"}),
		reqInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "Запросы в обработке.",
		}),
		reqErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "Запросы, завершившиеся статусом 4xx/5xx.",
		}, []string{"method", "path", "status"}),
	}

	for _, c := range []prometheus.Collector{pm.reqDuration, pm.reqInflight, pm.reqErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return pm, nil
}

// Handler gin.HandlerFunc для router.Use()
func (pm *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		pm.reqInflight.Inc()
		defer pm.reqInflight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := routePath(c)
		method := c.Request.Method

		pm.reqDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		if c.Writer.Status() >= 400 {
			pm.reqErrors.WithLabelValues(method, path, status).Inc()
		}
	}
}

// MetricsHandler http.Handler, отдающий метрики из g (nil - реестр по умолчанию)
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RegisterMetricsEndpoint добавляет GET /metrics
func RegisterMetricsEndpoint(r gin.IRouter, g prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(MetricsHandler(g)))
}
