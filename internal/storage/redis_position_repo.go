package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/isoworld/internal/logging"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей (0 - бессрочно)
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "isoworld:pos:",
	}
}

// RedisPositionRepo хранит позиции в Redis (JSON по ключу <prefix><сущность>)
type RedisPositionRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisPositionRepo подключается к Redis и проверяет соединение
func NewRedisPositionRepo(ctx context.Context, cfg *RedisConfig) (*RedisPositionRepo, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRedisConfig().KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("🔴 Connected to Redis at %s", cfg.Addr)
	return &RedisPositionRepo{client: client, keyPrefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

func (r *RedisPositionRepo) key(entity string) string {
	return r.keyPrefix + entity
}

// Save сохраняет позицию
func (r *RedisPositionRepo) Save(ctx context.Context, entity string, pos SavedPosition) error {
	return r.BatchSave(ctx, map[string]SavedPosition{entity: pos})
}

// Load загружает позицию
func (r *RedisPositionRepo) Load(ctx context.Context, entity string) (SavedPosition, bool, error) {
	if err := validateEntity(entity); err != nil {
		return SavedPosition{}, false, err
	}

	data, err := r.client.Get(ctx, r.key(entity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return SavedPosition{}, false, nil
	}
	if err != nil {
		return SavedPosition{}, false, fmt.Errorf("failed to get position: %w", err)
	}

	var pos SavedPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return SavedPosition{}, false, fmt.Errorf("failed to unmarshal position: %w", err)
	}
	return pos, true, nil
}

// Delete удаляет позицию
func (r *RedisPositionRepo) Delete(ctx context.Context, entity string) error {
	if err := validateEntity(entity); err != nil {
		return err
	}

	n, err := r.client.Del(ctx, r.key(entity)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, entity)
	}
	return nil
}

// BatchSave записывает позиции одной транзакцией MULTI/EXEC
func (r *RedisPositionRepo) BatchSave(ctx context.Context, positions map[string]SavedPosition) error {
	if len(positions) == 0 {
		return nil
	}

	values := make(map[string][]byte, len(positions))
	for entity, pos := range positions {
		p, err := prepare(entity, pos)
		if err != nil {
			return err
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal position for %s: %w", entity, err)
		}
		values[entity] = data
	}

	pipe := r.client.TxPipeline()
	for entity, data := range values {
		pipe.Set(ctx, r.key(entity), data, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisPositionRepo) Close() error {
	return r.client.Close()
}
