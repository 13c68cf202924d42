package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// sqlDialect запросы таблицы entity_positions для конкретной СУБД
type sqlDialect struct {
	name   string
	schema string
	upsert string // entity, map, x, y, layer, updated_at
	load   string // entity
	delete string // entity
}

// sqlPositionRepo общая часть MariaDB и PostgreSQL репозиториев
type sqlPositionRepo struct {
	db      *sql.DB
	dialect sqlDialect
}

func openSQL(ctx context.Context, driver, dsn string, d sqlDialect) (*sqlPositionRepo, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к %s: %w", d.name, err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с %s: %w", d.name, err)
	}

	// Создаем таблицу, если она не существует
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка создания таблицы entity_positions: %w", err)
	}

	return &sqlPositionRepo{db: db, dialect: d}, nil
}

func (r *sqlPositionRepo) Save(ctx context.Context, entity string, pos SavedPosition) error {
	pos, err := prepare(entity, pos)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, r.dialect.upsert, entity, pos.Map, pos.X, pos.Y, pos.Layer, pos.UpdatedAt); err != nil {
		return fmt.Errorf("ошибка сохранения позиции %s: %w", entity, err)
	}
	return nil
}

func (r *sqlPositionRepo) Load(ctx context.Context, entity string) (SavedPosition, bool, error) {
	if err := validateEntity(entity); err != nil {
		return SavedPosition{}, false, err
	}

	var pos SavedPosition
	err := r.db.QueryRowContext(ctx, r.dialect.load, entity).
		Scan(&pos.Map, &pos.X, &pos.Y, &pos.Layer, &pos.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Позиция не найдена - первый запуск
		return SavedPosition{}, false, nil
	}
	if err != nil {
		return SavedPosition{}, false, fmt.Errorf("ошибка загрузки позиции %s: %w", entity, err)
	}
	pos.UpdatedAt = pos.UpdatedAt.UTC()
	return pos, true, nil
}

func (r *sqlPositionRepo) Delete(ctx context.Context, entity string) error {
	if err := validateEntity(entity); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, r.dialect.delete, entity)
	if err != nil {
		return fmt.Errorf("ошибка удаления позиции %s: %w", entity, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, entity)
	}
	return nil
}

// BatchSave сохраняет позиции в одной транзакции.
func (r *sqlPositionRepo) BatchSave(ctx context.Context, positions map[string]SavedPosition) error {
	if len(positions) == 0 {
		return nil
	}

	prepared := make(map[string]SavedPosition, len(positions))
	for entity, pos := range positions {
		p, err := prepare(entity, pos)
		if err != nil {
			return err
		}
		prepared[entity] = p
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() // Откат в случае ошибки

	stmt, err := tx.PrepareContext(ctx, r.dialect.upsert)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for entity, pos := range prepared {
		if _, err := stmt.ExecContext(ctx, entity, pos.Map, pos.X, pos.Y, pos.Layer, pos.UpdatedAt); err != nil {
			return fmt.Errorf("ошибка сохранения позиции %s в batch: %w", entity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

func (r *sqlPositionRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
