// Package tilemap разбирает слоистые карты клеток (формат Tiled JSON)
// в плотные сетки и классифицирует клетки по проходимости.
package tilemap

import (
	"github.com/annel0/isoworld/internal/vec"
)

// TileID ссылается на изображение тайла. 0 - пустая клетка.
type TileID uint32

// Empty пустая клетка: не рисуется и не проходима
const Empty TileID = 0

// TileMap хранит слои одной карты. Индекс слоя совпадает с высотой (z).
// После загрузки не изменяется.
type TileMap struct {
	Width  int
	Height int

	// Origin - координаты сетки клетки [0][0]. У загруженных карт (0,0),
	// у карты по умолчанию (-10,-10), чтобы она была центрирована на начале координат.
	Origin vec.Vec2

	// Размер клетки из файла карты (0, если не задан)
	TileWidth  int
	TileHeight int

	// Имена слоёв в порядке индексов
	LayerNames []string

	layers   [][][]TileID // [z][y][x]
	walkable [][][]bool   // [z][y][x], вычисляется один раз при загрузке
}

// newTileMap собирает карту из готовых сеток и считает проходимость
func newTileMap(width, height int, origin vec.Vec2, grids [][][]TileID, names []string, rules *WalkRules) *TileMap {
	tm := &TileMap{
		Width:      width,
		Height:     height,
		Origin:     origin,
		LayerNames: names,
		layers:     grids,
		walkable:   make([][][]bool, len(grids)),
	}

	for z, grid := range grids {
		w := make([][]bool, height)
		for y := 0; y < height; y++ {
			w[y] = make([]bool, width)
			for x := 0; x < width; x++ {
				w[y][x] = rules.IsWalkable(grid[y][x])
			}
		}
		tm.walkable[z] = w
	}
	return tm
}

// LayerCount возвращает количество слоёв
func (tm *TileMap) LayerCount() int {
	return len(tm.layers)
}

// index переводит координаты сетки в индексы массива
func (tm *TileMap) index(x, y int) (int, int, bool) {
	col := x - tm.Origin.X
	row := y - tm.Origin.Y
	if col < 0 || row < 0 || col >= tm.Width || row >= tm.Height {
		return 0, 0, false
	}
	return col, row, true
}

// InBounds сообщает, лежит ли клетка внутри карты
func (tm *TileMap) InBounds(x, y int) bool {
	_, _, ok := tm.index(x, y)
	return ok
}

// TileAt возвращает id тайла на слое. Вне карты или несуществующий слой - Empty.
func (tm *TileMap) TileAt(layer, x, y int) TileID {
	if layer < 0 || layer >= len(tm.layers) {
		return Empty
	}
	col, row, ok := tm.index(x, y)
	if !ok {
		return Empty
	}
	return tm.layers[layer][row][col]
}

// WalkableAt сообщает, проходима ли клетка на указанном слое
func (tm *TileMap) WalkableAt(layer, x, y int) bool {
	if layer < 0 || layer >= len(tm.walkable) {
		return false
	}
	col, row, ok := tm.index(x, y)
	if !ok {
		return false
	}
	return tm.walkable[layer][row][col]
}

// WalkableLayers возвращает проходимые слои клетки по возрастанию
func (tm *TileMap) WalkableLayers(x, y int) []int {
	col, row, ok := tm.index(x, y)
	if !ok {
		return nil
	}

	var result []int
	for z := range tm.walkable {
		if tm.walkable[z][row][col] {
			result = append(result, z)
		}
	}
	return result
}

// HasAnyTile сообщает, есть ли в клетке непустой тайл хотя бы на одном слое
func (tm *TileMap) HasAnyTile(x, y int) bool {
	col, row, ok := tm.index(x, y)
	if !ok {
		return false
	}
	for z := range tm.layers {
		if tm.layers[z][row][col] != Empty {
			return true
		}
	}
	return false
}

// Tile - непустая клетка на конкретном слое (для рендера и отладки)
type Tile struct {
	X, Y     int
	Layer    int
	ID       TileID
	Walkable bool
}

// Tiles обходит все непустые клетки всех слоёв
func (tm *TileMap) Tiles(fn func(Tile)) {
	for z, grid := range tm.layers {
		for row, line := range grid {
			for col, id := range line {
				if id == Empty {
					continue
				}
				fn(Tile{
					X:        col + tm.Origin.X,
					Y:        row + tm.Origin.Y,
					Layer:    z,
					ID:       id,
					Walkable: tm.walkable[z][row][col],
				})
			}
		}
	}
}

// Stats краткая статистика карты
type Stats struct {
	Layers        int `json:"layers"`
	Tiles         int `json:"tiles"`
	WalkableCells int `json:"walkable_cells"`
}

// Stats считает количество непустых тайлов и клеток хотя бы с одним проходимым слоем
func (tm *TileMap) Stats() Stats {
	s := Stats{Layers: len(tm.layers)}
	for row := 0; row < tm.Height; row++ {
		for col := 0; col < tm.Width; col++ {
			walk := false
			for z := range tm.layers {
				if tm.layers[z][row][col] != Empty {
					s.Tiles++
				}
				if tm.walkable[z][row][col] {
					walk = true
				}
			}
			if walk {
				s.WalkableCells++
			}
		}
	}
	return s
}
