// Package storage сохраняет позицию сущности между сессиями: имя текущей
// карты и координаты. Других постоянных данных у движка нет.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPositionNotFound для сущности нет сохранённой позиции
	ErrPositionNotFound = errors.New("позиция не найдена")

	// ErrInvalidPosition некорректный ключ сущности или позиция
	ErrInvalidPosition = errors.New("недействительная позиция")
)

// MaxLayer верхняя граница слоя в хранилище (TINYINT UNSIGNED)
const MaxLayer = 255

// SavedPosition сохранённая позиция сущности
type SavedPosition struct {
	Map       string    `json:"map"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Layer     int       `json:"layer"` // -1 - слой не задан
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate проверяет позицию перед записью
func (p SavedPosition) Validate() error {
	if p.Map == "" {
		return fmt.Errorf("%w: не указана карта", ErrInvalidPosition)
	}
	if p.Layer < -1 || p.Layer > MaxLayer {
		return fmt.Errorf("%w: layer %d (должен быть -1..%d)", ErrInvalidPosition, p.Layer, MaxLayer)
	}
	return nil
}

// PositionRepo определяет интерфейс для сохранения и загрузки позиций сущностей.
// Ключ - постоянное имя сущности ("player", имя NPC).
type PositionRepo interface {
	// Save сохраняет позицию; пустой UpdatedAt заполняется текущим временем.
	Save(ctx context.Context, entity string, pos SavedPosition) error

	// Load загружает позицию. false - позиции нет (первый запуск).
	Load(ctx context.Context, entity string) (SavedPosition, bool, error)

	// Delete удаляет позицию; ErrPositionNotFound, если её не было.
	Delete(ctx context.Context, entity string) error

	// BatchSave сохраняет несколько позиций за один раз (автосохранение).
	BatchSave(ctx context.Context, positions map[string]SavedPosition) error

	// Close освобождает соединения.
	Close() error
}

func validateEntity(entity string) error {
	if entity == "" {
		return fmt.Errorf("%w: пустой ключ сущности", ErrInvalidPosition)
	}
	return nil
}

// prepare проверяет запись и проставляет время
func prepare(entity string, pos SavedPosition) (SavedPosition, error) {
	if err := validateEntity(entity); err != nil {
		return pos, err
	}
	if err := pos.Validate(); err != nil {
		return pos, fmt.Errorf("%s: %w", entity, err)
	}
	if pos.UpdatedAt.IsZero() {
		pos.UpdatedAt = time.Now().UTC()
	}
	return pos, nil
}
