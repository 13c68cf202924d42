package tilemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/annel0/isoworld/internal/logging"
	"github.com/annel0/isoworld/internal/vec"
)

// ErrMapLoad описание карты отсутствует или повреждено
var ErrMapLoad = errors.New("ошибка загрузки карты")

// Размер карты по умолчанию: 21x21 с центром в (0,0)
const (
	DefaultGridSize   = 21
	defaultGridOrigin = -(DefaultGridSize / 2)
	defaultTileID     = TileID(1)
)

// Parse разбирает JSON описание карты
func Parse(data []byte) (*Descriptor, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: пустое описание", ErrMapLoad)
	}

	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMapLoad, err)
	}
	return &desc, nil
}

// Load строит TileMap из описания.
// Короткие данные слоя дополняются нулями, лишние отбрасываются.
func Load(desc *Descriptor, rules *WalkRules) (*TileMap, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: описание отсутствует", ErrMapLoad)
	}

	width, height := 0, 0
	var grids [][][]TileID
	var names []string

	for i, layer := range desc.Layers {
		if !layer.IsTileLayer() {
			continue
		}

		lw, lh := layer.Width, layer.Height
		if lw <= 0 {
			lw = desc.Width
		}
		if lh <= 0 {
			lh = desc.Height
		}

		// Первый тайловый слой задаёт размер карты
		if grids == nil {
			width, height = lw, lh
			if width <= 0 || height <= 0 {
				return nil, fmt.Errorf("%w: слой %d без размеров", ErrMapLoad, i)
			}
		} else if lw != width || lh != height {
			logging.Warn("[TILEMAP] слой %q %dx%d приведён к размеру карты %dx%d", layer.Name, lw, lh, width, height)
		}

		flat, err := layer.DecodeData(lw * lh)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMapLoad, err)
		}
		if len(flat) != lw*lh {
			logging.Debug("[TILEMAP] слой %q: %d значений вместо %d", layer.Name, len(flat), lw*lh)
		}

		grids = append(grids, toGrid(flat, lw, width, height))
		names = append(names, layer.Name)
	}

	if grids == nil {
		return nil, fmt.Errorf("%w: нет тайловых слоёв", ErrMapLoad)
	}

	tm := newTileMap(width, height, vec.Vec2{}, grids, names, rules)
	tm.TileWidth = desc.TileWidth
	tm.TileHeight = desc.TileHeight
	return tm, nil
}

// toGrid раскладывает плоский массив (строками, ширина stride) в сетку width x height
func toGrid(flat []TileID, stride, width, height int) [][]TileID {
	grid := make([][]TileID, height)
	for y := 0; y < height; y++ {
		row := make([]TileID, width)
		for x := 0; x < width && x < stride; x++ {
			idx := y*stride + x
			if idx < len(flat) {
				row[x] = flat[idx]
			}
		}
		grid[y] = row
	}
	return grid
}

// LoadBytes разбирает и загружает карту из JSON
func LoadBytes(data []byte, rules *WalkRules) (*TileMap, error) {
	desc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Load(desc, rules)
}

// LoadFile читает карту с диска
func LoadFile(path string, rules *WalkRules) (*TileMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMapLoad, err)
	}
	return LoadBytes(data, rules)
}

// LoadOrDefault загружает карту, а при любой ошибке логирует её и
// возвращает плоскую проходимую карту по умолчанию. Второе значение
// сообщает, была ли подстановка.
func LoadOrDefault(path string, rules *WalkRules) (*TileMap, bool) {
	tm, err := LoadFile(path, rules)
	if err != nil {
		logging.Warn("[TILEMAP] %s: %v, используется карта по умолчанию %dx%d", path, err, DefaultGridSize, DefaultGridSize)
		return Default(), true
	}
	return tm, false
}

// Default возвращает однослойную проходимую карту 21x21 с центром в (0,0)
func Default() *TileMap {
	grid := make([][]TileID, DefaultGridSize)
	for y := range grid {
		row := make([]TileID, DefaultGridSize)
		for x := range row {
			row[x] = defaultTileID
		}
		grid[y] = row
	}

	origin := vec.Vec2{X: defaultGridOrigin, Y: defaultGridOrigin}
	return newTileMap(DefaultGridSize, DefaultGridSize, origin, [][][]TileID{grid}, []string{"default"}, nil)
}

// FromGrids строит карту из готовых слоёв [z][y][x]. Размер задаёт первый слой,
// остальные приводятся к нему так же, как при загрузке из файла.
func FromGrids(grids [][][]TileID, rules *WalkRules) (*TileMap, error) {
	if len(grids) == 0 || len(grids[0]) == 0 || len(grids[0][0]) == 0 {
		return nil, fmt.Errorf("%w: пустая сетка", ErrMapLoad)
	}

	height, width := len(grids[0]), len(grids[0][0])
	normalized := make([][][]TileID, len(grids))
	names := make([]string, len(grids))
	for z, grid := range grids {
		flat := make([]TileID, 0, width*height)
		for y := 0; y < height; y++ {
			row := make([]TileID, width)
			if y < len(grid) {
				copy(row, grid[y])
			}
			flat = append(flat, row...)
		}
		normalized[z] = toGrid(flat, width, width, height)
		names[z] = fmt.Sprintf("layer%d", z)
	}
	return newTileMap(width, height, vec.Vec2{}, normalized, names, rules), nil
}
