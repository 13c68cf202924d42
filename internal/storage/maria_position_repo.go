package storage

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MariaPositionRepo реализует PositionRepo для MariaDB/MySQL.
// Использует таблицу entity_positions.
type MariaPositionRepo struct {
	*sqlPositionRepo
}

var mariaDialect = sqlDialect{
	name: "MariaDB",
	schema: `
		CREATE TABLE IF NOT EXISTS entity_positions (
			entity     VARCHAR(64)  PRIMARY KEY,
			map        VARCHAR(128) NOT NULL,
			x          DOUBLE       NOT NULL,
			y          DOUBLE       NOT NULL,
			layer      SMALLINT     NOT NULL DEFAULT -1,
			updated_at DATETIME(6)  NOT NULL,
			INDEX idx_updated_at (updated_at)
		) ENGINE=InnoDB
	`,
	upsert: `
		INSERT INTO entity_positions (entity, map, x, y, layer, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			map = VALUES(map),
			x = VALUES(x),
			y = VALUES(y),
			layer = VALUES(layer),
			updated_at = VALUES(updated_at)
	`,
	load:   `SELECT map, x, y, layer, updated_at FROM entity_positions WHERE entity = ?`,
	delete: `DELETE FROM entity_positions WHERE entity = ?`,
}

// NewMariaPositionRepo подключается к MariaDB и создает таблицу, если её нет.
// dsn - user:pass@tcp(host:port)/dbname; parseTime включается принудительно.
func NewMariaPositionRepo(ctx context.Context, dsn string) (*MariaPositionRepo, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("некорректный DSN MariaDB: %w", err)
	}
	cfg.ParseTime = true

	repo, err := openSQL(ctx, "mysql", cfg.FormatDSN(), mariaDialect)
	if err != nil {
		return nil, err
	}
	return &MariaPositionRepo{repo}, nil
}
