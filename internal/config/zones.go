package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/annel0/isoworld/internal/world"
)

// ErrZonesLoad таблицы зон не прочитаны
var ErrZonesLoad = errors.New("ошибка загрузки таблиц зон")

// ZonesFile корень zones.yaml
type ZonesFile struct {
	Zones map[string]ZoneConfig `yaml:"zones"`
}

// ZoneConfig таблица одной карты
type ZoneConfig struct {
	Spawns      map[string]SpawnConfig `yaml:"spawns"`
	Transitions []TransitionConfig     `yaml:"transitions"`
	FallMap     string                 `yaml:"fall_map"`
}

// SpawnConfig точка появления; слой необязателен
type SpawnConfig struct {
	X     int  `yaml:"x"`
	Y     int  `yaml:"y"`
	Layer *int `yaml:"layer"`
}

// TransitionConfig точка перехода
type TransitionConfig struct {
	X           int    `yaml:"x"`
	Y           int    `yaml:"y"`
	TargetMap   string `yaml:"target_map"`
	TargetSpawn string `yaml:"target_spawn"`
}

// Table переводит описание зоны в таблицу движка
func (z ZoneConfig) Table() world.ZoneTable {
	table := world.ZoneTable{
		Spawns:  make(map[string]world.SpawnPoint, len(z.Spawns)),
		FallMap: z.FallMap,
	}
	for key, sp := range z.Spawns {
		layer := world.NoLayer
		if sp.Layer != nil {
			layer = *sp.Layer
		}
		table.Spawns[key] = world.SpawnPoint{Key: key, X: sp.X, Y: sp.Y, Layer: layer}
	}
	for _, tp := range z.Transitions {
		table.Transitions = append(table.Transitions, world.TransitionPoint{
			X:           tp.X,
			Y:           tp.Y,
			TargetMap:   tp.TargetMap,
			TargetSpawn: tp.TargetSpawn,
		})
	}
	return table
}

// ParseZones разбирает zones.yaml
func ParseZones(data []byte) (map[string]world.ZoneTable, error) {
	var file ZonesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrZonesLoad, err)
	}

	tables := make(map[string]world.ZoneTable, len(file.Zones))
	for name, zc := range file.Zones {
		if err := world.ValidateZoneName(name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrZonesLoad, err)
		}
		for i, tp := range zc.Transitions {
			if tp.TargetMap == "" {
				return nil, fmt.Errorf("%w: %s: переход #%d без target_map", ErrZonesLoad, name, i)
			}
		}
		tables[name] = zc.Table()
	}
	return tables, nil
}

// LoadZones читает таблицы зон из файла. Пустой путь - пустые таблицы.
func LoadZones(path string) (map[string]world.ZoneTable, error) {
	if path == "" {
		return map[string]world.ZoneTable{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrZonesLoad, err)
	}
	return ParseZones(data)
}
