package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/annel0/isoworld/internal/api"
	"github.com/annel0/isoworld/internal/config"
	"github.com/annel0/isoworld/internal/eventbus"
	"github.com/annel0/isoworld/internal/game"
	"github.com/annel0/isoworld/internal/logging"
	"github.com/annel0/isoworld/internal/metrics"
	"github.com/annel0/isoworld/internal/middleware"
	"github.com/annel0/isoworld/internal/observability"
	"github.com/annel0/isoworld/internal/physics"
	"github.com/annel0/isoworld/internal/render"
	"github.com/annel0/isoworld/internal/storage"
	"github.com/annel0/isoworld/internal/world"
)

const autosaveInterval = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $ISOWORLD_CONFIG)")
	flag.Parse()

	// .env необязателен
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️ .env не прочитан: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if err := initLogging(cfg.Logging); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.GetLoggerManager().CloseAll()
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func initLogging(lc config.LoggingConfig) error {
	logging.SetLogDir(lc.Dir)
	logger, err := logging.NewLogger("isoworld")
	if err != nil {
		return err
	}
	logger.SetLevels(logging.ParseLevel(lc.ConsoleLevel), logging.ParseLevel(lc.FileLevel))
	logging.SetDefaultLogger(logger)
	return nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("🎮 Запуск isoworld: карта %s, точка %s", cfg.Engine.StartMap, cfg.Engine.StartSpawn)

	// === ТРАССИРОВКА ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			logging.Warn("⚠️ OpenTelemetry не инициализирован: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logging.Warn("⚠️ Остановка OpenTelemetry: %v", err)
				}
			}()
		}
	}

	// === МЕТРИКИ ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics, err := metrics.NewEngine(reg)
	if err != nil {
		return fmt.Errorf("метрики движка: %w", err)
	}

	// === ШИНА СОБЫТИЙ ===
	bus := openBus(cfg.EventBus)
	defer bus.Close()

	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		logging.Warn("⚠️ Логирование событий не запущено: %v", err)
	}
	busExporter, err := eventbus.NewMetricsExporter(bus, reg)
	if err != nil {
		return fmt.Errorf("метрики шины: %w", err)
	}
	busExporter.Start(10 * time.Second)
	defer busExporter.Stop()

	// === ХРАНИЛИЩЕ ===
	repo, _ := storage.Open(ctx, cfg.Storage)
	defer repo.Close()

	// === ЗОНЫ ===
	tables, err := config.LoadZones(cfg.Engine.ZonesFile)
	if err != nil {
		// Без таблицы зоны работают, но без точек появления и переходов
		logging.Warn("⚠️ %v", err)
		tables = map[string]world.ZoneTable{}
	}
	source := &world.FileSource{
		MapsDir:     cfg.Engine.MapsDir,
		Tables:      tables,
		Rules:       cfg.Engine.WalkRules(),
		SpawnRadius: cfg.Engine.SpawnRadius,
	}
	manager := world.NewManager(source, world.WithEventBus(bus), world.WithMetrics(engineMetrics))

	// === СЕССИЯ ===
	projector := render.NewProjector(cfg.Engine.TileSize(), cfg.Engine.ScreenWidth, cfg.Engine.ScreenHeight)
	projector.LayerHeight = cfg.Engine.LayerPixelHeight
	session := game.NewSession(manager, game.Options{
		Entity:    cfg.Engine.Entity,
		Validator: physics.NewValidator(physics.WithEpsilon(cfg.Engine.Epsilon), physics.WithMetrics(engineMetrics)),
		Repo:      repo,
		Bus:       bus,
		Metrics:   engineMetrics,
		Projector: projector,
		Viewport:  render.Viewport{Width: cfg.Engine.ScreenWidth, Height: cfg.Engine.ScreenHeight},
	})
	if err := session.Spawn(ctx, cfg.Engine.StartMap, cfg.Engine.StartSpawn); err != nil {
		return err
	}

	// === HTTP ===
	metricsSrv := serveMetrics(cfg.Server.GetMetricsPort(), reg)

	var restServer *api.RestServer
	if cfg.Server.Enabled {
		httpLog := logging.GetHTTPLogger()
		if err := logging.GetLoggerManager().SetLogLevel(httpLog.Component(),
			logging.ParseLevel(cfg.Logging.ConsoleLevel), logging.ParseLevel(cfg.Logging.FileLevel)); err != nil {
			logging.Warn("⚠️ %v", err)
		}

		restServer, err = api.NewRestServer(api.Config{
			Addr:       fmt.Sprintf(":%d", cfg.Server.GetHTTPPort()),
			Session:    session,
			Bus:        bus,
			Registerer: reg,
			Gatherer:   reg,
			HTTPLogger: httpLog,
		})
		if err != nil {
			return fmt.Errorf("отладочный API: %w", err)
		}
		restServer.Start()
	}

	logging.Info("✅ isoworld запущен, зона %s", session.Zone().Name())

	autosave(ctx, session)

	// === GRACEFUL SHUTDOWN ===
	logging.Info("📡 Получен сигнал завершения, остановка...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if restServer != nil {
		if err := restServer.Stop(shutdownCtx); err != nil {
			logging.Error("❌ Ошибка остановки API: %v", err)
		}
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}
	if err := session.Save(shutdownCtx); err != nil {
		logging.Error("❌ Позиция не сохранена: %v", err)
	}

	logging.Info("👋 isoworld остановлен")
	return nil
}

// openBus JetStream или шина в памяти; недоступный NATS не фатален
func openBus(bc config.EventBusConfig) eventbus.EventBus {
	if bc.Backend == config.BusJetStream {
		bus, err := eventbus.NewJetStreamBus(bc.URL, bc.Stream, bc.RetentionDuration())
		if err == nil {
			logging.Info("📨 Шина событий: JetStream %s (%s)", bc.URL, bc.Stream)
			return bus
		}
		logging.Warn("⚠️ JetStream недоступен (%v), используется шина в памяти", err)
	}
	logging.Info("📨 Шина событий: память (%d)", bc.Capacity)
	return eventbus.NewMemoryBus(bc.Capacity)
}

// serveMetrics отдельный порт /metrics, доступный и при выключенном API
func serveMetrics(port int, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", middleware.MetricsHandler(g))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Сервер метрик: %v", err)
		}
	}()
	logging.Info("📈 Метрики: http://localhost:%d/metrics", port)
	return srv
}

// autosave периодически сохраняет позицию, пока ctx не отменён
func autosave(ctx context.Context, session *game.Session) {
	ticker := time.NewTicker(autosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := session.Save(ctx); err != nil {
				logging.Warn("⚠️ Автосохранение: %v", err)
			}
		}
	}
}
