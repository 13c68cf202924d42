package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// badgerKeyPrefix префикс ключей позиций
const badgerKeyPrefix = "pos:"

// BadgerPositionRepo хранит позиции во встроенной BadgerDB (JSON по ключу pos:<сущность>).
type BadgerPositionRepo struct {
	db *badger.DB
}

// NewBadgerPositionRepo открывает BadgerDB в каталоге dir.
// Пустой dir - база в памяти (тесты).
func NewBadgerPositionRepo(dir string) (*BadgerPositionRepo, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	return &BadgerPositionRepo{db: db}, nil
}

func badgerKey(entity string) []byte {
	return []byte(badgerKeyPrefix + entity)
}

// Save сохраняет позицию
func (r *BadgerPositionRepo) Save(ctx context.Context, entity string, pos SavedPosition) error {
	return r.BatchSave(ctx, map[string]SavedPosition{entity: pos})
}

// Load загружает позицию
func (r *BadgerPositionRepo) Load(ctx context.Context, entity string) (SavedPosition, bool, error) {
	if err := validateEntity(entity); err != nil {
		return SavedPosition{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return SavedPosition{}, false, err
	}

	var pos SavedPosition
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(entity))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &pos)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return SavedPosition{}, false, nil
	}
	if err != nil {
		return SavedPosition{}, false, fmt.Errorf("ошибка загрузки позиции %s: %w", entity, err)
	}
	return pos, true, nil
}

// Delete удаляет позицию
func (r *BadgerPositionRepo) Delete(ctx context.Context, entity string) error {
	if err := validateEntity(entity); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		key := badgerKey(entity)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrPositionNotFound, entity)
			}
			return err
		}
		return txn.Delete(key)
	})
}

// BatchSave сохраняет позиции одной транзакцией
func (r *BadgerPositionRepo) BatchSave(ctx context.Context, positions map[string]SavedPosition) error {
	if len(positions) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	values := make(map[string][]byte, len(positions))
	for entity, pos := range positions {
		p, err := prepare(entity, pos)
		if err != nil {
			return err
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("ошибка сериализации позиции %s: %w", entity, err)
		}
		values[entity] = data
	}

	return r.db.Update(func(txn *badger.Txn) error {
		for entity, data := range values {
			if err := txn.Set(badgerKey(entity), data); err != nil {
				return fmt.Errorf("ошибка сохранения позиции %s: %w", entity, err)
			}
		}
		return nil
	})
}

// Close закрывает базу
func (r *BadgerPositionRepo) Close() error {
	return r.db.Close()
}
