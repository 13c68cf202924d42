// Package api - отладочный HTTP API: запросы к активной зоне, пробные
// шаги, проекция координат, смена карты и поток событий шины.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/isoworld/internal/eventbus"
	"github.com/annel0/isoworld/internal/game"
	"github.com/annel0/isoworld/internal/logging"
	"github.com/annel0/isoworld/internal/middleware"
)

// ServiceName имя сервиса в трассировке и префикс HTTP-метрик
const ServiceName = "isoworld_api"

// Config настройки отладочного API
type Config struct {
	Addr       string              // адрес прослушивания, например ":8088"
	Session    *game.Session       // сессия игрока
	Bus        eventbus.EventBus   // шина для /ws/events; nil - поток отключён
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	HTTPLogger *logging.Logger // журнал запросов; nil - логгер по умолчанию
}

// RestServer отладочный HTTP-сервер
type RestServer struct {
	router     *gin.Engine
	session    *game.Session
	bus        eventbus.EventBus
	addr       string
	metrics    *ServerMetrics
	httpServer *http.Server
}

// GenericResponse общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создаёт сервер и настраивает маршруты
func NewRestServer(cfg Config) (*RestServer, error) {
	if cfg.Session == nil {
		return nil, errors.New("api: сессия не задана")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))
	router.Use(middleware.NewRequestLogger(cfg.HTTPLogger).Handler())

	promMw, err := middleware.NewPrometheusMiddleware(ServiceName, cfg.Registerer)
	if err != nil {
		return nil, err
	}
	router.Use(promMw.Handler())
	middleware.RegisterMetricsEndpoint(router, cfg.Gatherer)

	rs := &RestServer{
		router:  router,
		session: cfg.Session,
		bus:     cfg.Bus,
		addr:    cfg.Addr,
		metrics: NewServerMetrics(),
	}
	rs.setupRoutes()
	return rs, nil
}

func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)
	rs.router.GET("/ws/events", rs.handleEvents)

	api := rs.router.Group("/api")
	{
		api.GET("/zone", rs.handleZone)
		api.POST("/zone/:name", rs.handleChangeZone)
		api.GET("/walkable", rs.handleWalkable)
		api.GET("/layers", rs.handleLayers)
		api.GET("/spawn/:key", rs.handleSpawn)
		api.GET("/transition", rs.handleTransition)
		api.GET("/player", rs.handlePlayer)
		api.POST("/move", rs.handleMove)
		api.POST("/fall", rs.handleFall)
		api.POST("/free", rs.handleFreeMode)
		api.GET("/project", rs.handleProject)
		api.GET("/pick", rs.handlePick)
		api.GET("/stats", rs.handleStats)
	}
}

// Handler http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler { return rs.router }

// Start запускает сервер в отдельной горутине
func (rs *RestServer) Start() {
	rs.httpServer = &http.Server{
		Addr:              rs.addr,
		Handler:           rs.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка отладочного API: %v", err)
		}
	}()

	logging.Info("✅ Отладочный API запущен на %s", rs.addr)
}

// Stop останавливает сервер, дожидаясь активных запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	logging.Info("🛑 Остановка отладочного API...")
	return rs.httpServer.Shutdown(ctx)
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	zone := ""
	if z := rs.session.Zone(); z != nil {
		zone = z.Name()
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"zone":   zone,
		"time":   time.Now().Unix(),
	})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, GenericResponse{Success: false, Message: msg})
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: data})
}
