package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/isoworld/internal/eventbus"
	"github.com/annel0/isoworld/internal/logging"
)

// CorrelationHeader заголовок, которым клиент связывает запрос с событиями шины
const CorrelationHeader = "X-Correlation-ID"

// RequestLogger пишет по строке на начало и конец запроса и кладёт
// идентификатор корреляции в контекст запроса: события, порождённые
// обработчиком (смена зоны, переход), получают тот же CorrelationID.
type RequestLogger struct {
	log *logging.Logger
}

// NewRequestLogger пишет в l; nil - в логгер по умолчанию
func NewRequestLogger(l *logging.Logger) *RequestLogger { return &RequestLogger{log: l} }

func (rl *RequestLogger) write(level logging.LogLevel, format string, args ...interface{}) {
	if rl.log == nil {
		switch level {
		case logging.DEBUG:
			logging.Debug(format, args...)
		case logging.ERROR:
			logging.Error(format, args...)
		default:
			logging.Info(format, args...)
		}
		return
	}
	switch level {
	case logging.DEBUG:
		rl.log.Debug(format, args...)
	case logging.ERROR:
		rl.log.Error(format, args...)
	default:
		rl.log.Info(format, args...)
	}
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestID(c)
		c.Set("correlation_id", id)
		c.Header(CorrelationHeader, id)
		c.Request = c.Request.WithContext(eventbus.WithCorrelationID(c.Request.Context(), id))

		start := time.Now()
		method := c.Request.Method
		path := routePath(c)

		rl.write(logging.DEBUG, "[HTTP] ▶ %s %s ip=%s id=%s", method, path, c.ClientIP(), id)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		if status >= 500 {
			rl.write(logging.ERROR, "[HTTP] ◀ %s %s %d %s id=%s", method, path, status, latency, id)
			return
		}
		rl.write(logging.INFO, "[HTTP] ◀ %s %s %d %s id=%s", method, path, status, latency, id)
	}
}

// requestID берёт идентификатор из заголовка, затем из активного span
// OpenTelemetry, иначе генерирует новый.
func requestID(c *gin.Context) string {
	if id := c.GetHeader(CorrelationHeader); id != "" {
		return id
	}
	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}

func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path // не сматченные маршруты
}
