package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/isoworld/internal/config"
	"github.com/annel0/isoworld/internal/logging"
)

// connectTimeout время на подключение к внешнему хранилищу
const connectTimeout = 5 * time.Second

// Open создаёт хранилище по конфигурации. Если выбранное хранилище недоступно,
// возвращается хранилище в памяти, а ошибка пишется в лог. Второе значение -
// имя фактически используемого backend-а.
func Open(ctx context.Context, cfg config.StorageConfig) (PositionRepo, string) {
	repo, err := open(ctx, cfg)
	if err != nil {
		logging.Warn("⚠️ Хранилище %s недоступно (%v), позиции хранятся в памяти", cfg.Backend, err)
		return NewMemoryPositionRepo(), config.StorageMemory
	}
	logging.Info("💾 Хранилище позиций: %s", cfg.Backend)
	return repo, cfg.Backend
}

func open(ctx context.Context, cfg config.StorageConfig) (PositionRepo, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Backend {
	case "", config.StorageMemory:
		return NewMemoryPositionRepo(), nil
	case config.StorageBadger:
		return NewBadgerPositionRepo(cfg.BadgerDir)
	case config.StorageRedis:
		return NewRedisPositionRepo(ctx, &RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: DefaultRedisConfig().KeyPrefix,
		})
	case config.StorageMySQL:
		return NewMariaPositionRepo(ctx, cfg.MySQLDSN)
	case config.StoragePostgres:
		return NewPostgresPositionRepo(ctx, cfg.PostgresDSN)
	case config.StorageMongo:
		return NewMongoPositionRepo(ctx, MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
	default:
		return nil, fmt.Errorf("неизвестное хранилище %q", cfg.Backend)
	}
}
