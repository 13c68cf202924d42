package render

import (
	"sort"

	"github.com/annel0/isoworld/internal/tilemap"
)

// Drawable объект отрисовки: тайл или сущность
type Drawable struct {
	X, Y  float64
	Layer int
	Tile  tilemap.TileID // 0 - не тайл (сущность)
	Key   string         // имя сущности
}

// Less порядок отрисовки: слой, затем y, затем x (дальние раньше)
func Less(a, b Drawable) bool {
	if a.Layer != b.Layer {
		return a.Layer < b.Layer
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// SortDrawables сортирует по порядку отрисовки. Сортировка устойчивая:
// равные элементы (тайл и сущность в одной клетке) сохраняют исходный порядок.
func SortDrawables(items []Drawable) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(items[i], items[j])
	})
}

// Sprite спроецированный объект с экранными координатами
type Sprite struct {
	Drawable
	ScreenX int
	ScreenY int
}

// DrawList собирает тайлы карты и дополнительные объекты в порядке отрисовки
func DrawList(tm *tilemap.TileMap, extra []Drawable, p Projector, cam Camera) []Sprite {
	items := make([]Drawable, 0, len(extra)+tm.Width*tm.Height)
	tm.Tiles(func(t tilemap.Tile) {
		items = append(items, Drawable{X: float64(t.X), Y: float64(t.Y), Layer: t.Layer, Tile: t.ID})
	})
	items = append(items, extra...)
	SortDrawables(items)

	sprites := make([]Sprite, len(items))
	for i, d := range items {
		sx, sy := p.ProjectPixel(d.X, d.Y, d.Layer, cam)
		sprites[i] = Sprite{Drawable: d, ScreenX: sx, ScreenY: sy}
	}
	return sprites
}
