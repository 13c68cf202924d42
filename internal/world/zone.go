package world

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/annel0/isoworld/internal/tilemap"
	"github.com/annel0/isoworld/internal/vec"
)

// SpawnPoint именованная точка появления. Layer в таблице может быть NoLayer,
// у точек загруженной зоны слой всегда задан.
type SpawnPoint struct {
	Key   string `json:"key"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Layer int    `json:"layer"`
}

// Cell клетка точки появления
func (sp SpawnPoint) Cell() vec.Vec2 {
	return vec.Vec2{X: sp.X, Y: sp.Y}
}

// TransitionPoint клетка, шаг на которую переносит на другую карту.
// Срабатывает независимо от слоя сущности.
type TransitionPoint struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	TargetMap   string `json:"target_map"`
	TargetSpawn string `json:"target_spawn"`
}

// ZoneTable данные зоны, не входящие в файл карты
type ZoneTable struct {
	Spawns      map[string]SpawnPoint
	Transitions []TransitionPoint
	FallMap     string
}

// Substitution запись о замене непроходимой точки появления
type Substitution struct {
	Key     string   `json:"key"`
	From    vec.Vec2 `json:"from"`
	To      vec.Vec2 `json:"to"`
	Dropped bool     `json:"dropped"`
}

// ZoneState стадия жизни зоны
type ZoneState int32

const (
	StateUnloaded ZoneState = iota
	StateLoaded
	StateReplaced
)

func (s ZoneState) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateReplaced:
		return "replaced"
	default:
		return "unloaded"
	}
}

// Zone - загруженная карта вместе с таблицами точек появления и переходов.
// После NewZone данные не меняются; смена зоны создаёт новый объект.
type Zone struct {
	name     string
	tiles    *tilemap.TileMap
	fallback bool

	spawns        map[string]SpawnPoint
	transitions   map[vec.Vec2]TransitionPoint
	transList     []TransitionPoint
	fallMap       string
	substitutions []Substitution

	state atomic.Int32
}

// NewZone собирает зону и проверяет точки появления: непроходимая точка
// заменяется ближайшей проходимой клеткой в радиусе spawnRadius, а если
// такой нет, удаляется из таблицы.
func NewZone(name string, tiles *tilemap.TileMap, table ZoneTable, spawnRadius int) *Zone {
	if tiles == nil {
		tiles = tilemap.Default()
	}

	z := &Zone{
		name:        name,
		tiles:       tiles,
		spawns:      make(map[string]SpawnPoint, len(table.Spawns)),
		transitions: make(map[vec.Vec2]TransitionPoint, len(table.Transitions)),
		fallMap:     table.FallMap,
	}

	for _, tp := range table.Transitions {
		cell := vec.Vec2{X: tp.X, Y: tp.Y}
		// При дубликатах действует первая запись
		if _, dup := z.transitions[cell]; dup {
			continue
		}
		z.transitions[cell] = tp
		z.transList = append(z.transList, tp)
	}

	keys := make([]string, 0, len(table.Spawns))
	for key := range table.Spawns {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sp := table.Spawns[key]
		sp.Key = key
		if valid, ok := z.validateSpawn(sp, spawnRadius); ok {
			z.spawns[key] = valid
		}
	}

	z.state.Store(int32(StateLoaded))
	return z
}

// Name имя карты
func (z *Zone) Name() string { return z.name }

// Tiles карта клеток зоны
func (z *Zone) Tiles() *tilemap.TileMap { return z.tiles }

// Fallback сообщает, что файл карты не загрузился и используется сетка по умолчанию
func (z *Zone) Fallback() bool { return z.fallback }

// State текущая стадия жизни зоны
func (z *Zone) State() ZoneState { return ZoneState(z.state.Load()) }

func (z *Zone) markReplaced() {
	z.state.Store(int32(StateReplaced))
}

// IsWalkable сообщает, проходима ли клетка хотя бы на одном слое
func (z *Zone) IsWalkable(x, y int) bool {
	return len(z.tiles.WalkableLayers(x, y)) > 0
}

// IsWalkableOn сообщает, проходима ли клетка на конкретном слое
func (z *Zone) IsWalkableOn(layer, x, y int) bool {
	return z.tiles.WalkableAt(layer, x, y)
}

// WalkableLayers проходимые слои клетки по возрастанию
func (z *Zone) WalkableLayers(x, y int) []int {
	return z.tiles.WalkableLayers(x, y)
}

// LayersAt то же, что WalkableLayers
func (z *Zone) LayersAt(x, y int) []int {
	return z.WalkableLayers(x, y)
}

// HighestWalkableLayer самый высокий проходимый слой клетки
func (z *Zone) HighestWalkableLayer(x, y int) (int, bool) {
	layers := z.tiles.WalkableLayers(x, y)
	if len(layers) == 0 {
		return NoLayer, false
	}
	return layers[len(layers)-1], true
}

// HasAnyTile есть ли в клетке хоть один непустой тайл
func (z *Zone) HasAnyTile(x, y int) bool {
	return z.tiles.HasAnyTile(x, y)
}

// Resolve разрешает слой в клетке зоны
func (z *Zone) Resolve(x, y, current int) Resolution {
	return Resolve(z, x, y, current)
}

// Spawn возвращает проверенную точку появления
func (z *Zone) Spawn(key string) (SpawnPoint, error) {
	sp, ok := z.spawns[key]
	if !ok {
		return SpawnPoint{}, fmt.Errorf("%w: %q в зоне %s", ErrSpawnNotFound, key, z.name)
	}
	return sp, nil
}

// SpawnKeys ключи точек появления по алфавиту
func (z *Zone) SpawnKeys() []string {
	keys := make([]string, 0, len(z.spawns))
	for k := range z.spawns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TransitionAt ищет переход ровно в клетке (x, y)
func (z *Zone) TransitionAt(x, y int) (TransitionPoint, bool) {
	tp, ok := z.transitions[vec.Vec2{X: x, Y: y}]
	return tp, ok
}

// Transitions копия таблицы переходов в порядке загрузки
func (z *Zone) Transitions() []TransitionPoint {
	return append([]TransitionPoint(nil), z.transList...)
}

// FallTarget карта, на которой появляется упавшая с карты сущность.
// По умолчанию - сама зона.
func (z *Zone) FallTarget() string {
	if z.fallMap == "" {
		return z.name
	}
	return z.fallMap
}

// Substitutions замены точек появления, сделанные при загрузке
func (z *Zone) Substitutions() []Substitution {
	return append([]Substitution(nil), z.substitutions...)
}
