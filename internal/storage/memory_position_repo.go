package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryPositionRepo реализует PositionRepo в памяти.
// Используется как fallback, когда внешнее хранилище недоступно,
// или для тестов и локальной разработки.
// ВНИМАНИЕ: Данные теряются при перезапуске!
type MemoryPositionRepo struct {
	mu   sync.RWMutex
	data map[string]SavedPosition
}

// NewMemoryPositionRepo создает новый репозиторий позиций в памяти.
func NewMemoryPositionRepo() *MemoryPositionRepo {
	return &MemoryPositionRepo{
		data: make(map[string]SavedPosition),
	}
}

// Save сохраняет позицию в памяти.
func (r *MemoryPositionRepo) Save(ctx context.Context, entity string, pos SavedPosition) error {
	pos, err := prepare(entity, pos)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[entity] = pos
	return nil
}

// Load загружает позицию из памяти.
func (r *MemoryPositionRepo) Load(ctx context.Context, entity string) (SavedPosition, bool, error) {
	if err := validateEntity(entity); err != nil {
		return SavedPosition{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return SavedPosition{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, exists := r.data[entity]
	return pos, exists, nil
}

// Delete удаляет сохраненную позицию из памяти.
func (r *MemoryPositionRepo) Delete(ctx context.Context, entity string) error {
	if err := validateEntity(entity); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[entity]; !exists {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, entity)
	}

	delete(r.data, entity)
	return nil
}

// BatchSave сохраняет несколько позиций: либо все, либо ни одной.
func (r *MemoryPositionRepo) BatchSave(ctx context.Context, positions map[string]SavedPosition) error {
	if len(positions) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Валидация всех записей перед сохранением
	prepared := make(map[string]SavedPosition, len(positions))
	for entity, pos := range positions {
		p, err := prepare(entity, pos)
		if err != nil {
			return err
		}
		prepared[entity] = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for entity, pos := range prepared {
		r.data[entity] = pos
	}
	return nil
}

// Count возвращает количество сохраненных позиций (для отладки).
func (r *MemoryPositionRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Close ничего не делает
func (r *MemoryPositionRepo) Close() error { return nil }
