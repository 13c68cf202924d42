// Package config загружает конфигурацию движка (YAML) и таблицы зон.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/isoworld/internal/iso"
	"github.com/annel0/isoworld/internal/tilemap"
)

// Переменные окружения
const (
	EnvConfigPath  = "ISOWORLD_CONFIG"
	EnvHTTPPort    = "ISOWORLD_HTTP_PORT"
	EnvMetricsPort = "ISOWORLD_METRICS_PORT"
)

// Backend-ы хранилища и шины
const (
	StorageMemory   = "memory"
	StorageBadger   = "badger"
	StorageRedis    = "redis"
	StorageMySQL    = "mysql"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"

	BusMemory    = "memory"
	BusJetStream = "jetstream"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EngineConfig параметры карты, проекции и движения
type EngineConfig struct {
	TileWidth        int     `yaml:"tile_width"`
	TileHeight       int     `yaml:"tile_height"`
	LayerPixelHeight int     `yaml:"layer_pixel_height"`
	ScreenWidth      int     `yaml:"screen_width"`
	ScreenHeight     int     `yaml:"screen_height"`
	Epsilon          float64 `yaml:"epsilon"`
	SpawnRadius      int     `yaml:"spawn_radius"`
	BlockedTiles     []int   `yaml:"blocked_tiles"`
	AllowedTiles     []int   `yaml:"allowed_tiles"`
	MapsDir          string  `yaml:"maps_dir"`
	ZonesFile        string  `yaml:"zones_file"`
	StartMap         string  `yaml:"start_map"`
	StartSpawn       string  `yaml:"start_spawn"`
	Entity           string  `yaml:"entity"` // ключ игрока в хранилище позиций
}

// StorageConfig хранилище позиций
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	BadgerDir     string `yaml:"badger_dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	MySQLDSN      string `yaml:"mysql_dsn"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// EventBusConfig шина событий
type EventBusConfig struct {
	Backend   string `yaml:"backend"`
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Capacity  int    `yaml:"capacity"`
}

// ServerConfig порты отладочного API и метрик
type ServerConfig struct {
	Enabled     bool `yaml:"enabled"`
	HTTPPort    int  `yaml:"http_port"`
	MetricsPort int  `yaml:"metrics_port"`
}

// TelemetryConfig трассировка OpenTelemetry
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// LoggingConfig каталог и уровни логов
type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// Default конфигурация, с которой движок запускается без файла
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			TileWidth:        iso.DefaultTileWidth,
			TileHeight:       iso.DefaultTileHeight,
			LayerPixelHeight: 16,
			ScreenWidth:      1280,
			ScreenHeight:     720,
			Epsilon:          0.2,
			SpawnRadius:      5,
			MapsDir:          "maps",
			ZonesFile:        "configs/zones.yaml",
			StartMap:         "clairiere",
			StartSpawn:       "player",
			Entity:           "player",
		},
		Storage: StorageConfig{
			Backend:   StorageMemory,
			BadgerDir: "data/positions",
			RedisAddr: "localhost:6379",
		},
		EventBus: EventBusConfig{
			Backend:   BusMemory,
			URL:       "nats://127.0.0.1:4222",
			Stream:    "ISOWORLD",
			Retention: 24,
			Capacity:  1024,
		},
		Server: ServerConfig{
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "isoworld",
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "INFO",
			FileLevel:    "TRACE",
		},
	}
}

// Load читает YAML файл поверх Default.
// Если path == "", берётся ENV ISOWORLD_CONFIG; если и он пуст - Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("конфигурация %s: %w", path, err)
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя молча исправить
func (c *Config) Validate() error {
	if err := c.Engine.TileSize().Validate(); err != nil {
		return err
	}
	if c.Engine.Epsilon <= 0 || c.Engine.Epsilon >= 1 {
		return fmt.Errorf("epsilon должен быть в (0, 1), получено %v", c.Engine.Epsilon)
	}
	if c.Engine.SpawnRadius < 0 {
		return fmt.Errorf("spawn_radius не может быть отрицательным")
	}
	switch c.Storage.Backend {
	case StorageMemory, StorageBadger, StorageRedis, StorageMySQL, StoragePostgres, StorageMongo:
	default:
		return fmt.Errorf("неизвестное хранилище %q", c.Storage.Backend)
	}
	switch c.EventBus.Backend {
	case BusMemory, BusJetStream:
	default:
		return fmt.Errorf("неизвестная шина событий %q", c.EventBus.Backend)
	}
	return nil
}

// TileSize размер клетки
func (e EngineConfig) TileSize() iso.TileSize {
	return iso.TileSize{Width: e.TileWidth, Height: e.TileHeight}
}

// WalkRules правила проходимости тайлов
func (e EngineConfig) WalkRules() *tilemap.WalkRules {
	return tilemap.RulesFromInts(e.BlockedTiles, e.AllowedTiles)
}

// RetentionDuration срок хранения событий в JetStream
func (e EventBusConfig) RetentionDuration() time.Duration {
	return time.Duration(e.Retention) * time.Hour
}

// GetHTTPPort возвращает порт отладочного API с поддержкой fallback значений
func (s *ServerConfig) GetHTTPPort() int {
	return getPortWithEnvFallback(s.HTTPPort, EnvHTTPPort, 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, EnvMetricsPort, 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}
