// Package render переводит координаты сетки в экранные пиксели и задаёт
// порядок отрисовки. Сами спрайты и окно сюда не входят.
package render

import (
	"github.com/annel0/isoworld/internal/iso"
	"github.com/annel0/isoworld/internal/vec"
)

// LayerPixelHeight подъём изображения на каждый слой, в пикселях
const LayerPixelHeight = 16

// Projector проецирует клетки на экран:
//
//	screen = grid_to_iso(x, y) + ScreenCenter + camera - layer*LayerHeight
type Projector struct {
	Tile         iso.TileSize
	ScreenCenter vec.Vec2Float
	LayerHeight  int
}

// NewProjector проектор с центром экрана screenW/2, screenH/2
func NewProjector(tile iso.TileSize, screenW, screenH int) Projector {
	return Projector{
		Tile:         tile,
		ScreenCenter: vec.Vec2Float{X: float64(screenW / 2), Y: float64(screenH / 2)},
		LayerHeight:  LayerPixelHeight,
	}
}

// Project экранные координаты точки сетки (x, y) на слое layer
func (p Projector) Project(x, y float64, layer int, cam Camera) (sx, sy float64) {
	ix, iy := iso.GridToIso(x, y, p.Tile.Width, p.Tile.Height)
	sx = ix + p.ScreenCenter.X + cam.OffsetX
	sy = iy + p.ScreenCenter.Y + cam.OffsetY - float64(layer*p.LayerHeight)
	return sx, sy
}

// ProjectPixel то же, что Project, с округлением до пикселя
func (p Projector) ProjectPixel(x, y float64, layer int, cam Camera) (int, int) {
	sx, sy := p.Project(x, y, layer, cam)
	return iso.Round(sx), iso.Round(sy)
}

// ScreenToGrid обратная проекция экранной точки на слой layer
func (p Projector) ScreenToGrid(sx, sy float64, layer int, cam Camera) (x, y float64) {
	ix := sx - p.ScreenCenter.X - cam.OffsetX
	iy := sy - p.ScreenCenter.Y - cam.OffsetY + float64(layer*p.LayerHeight)
	return iso.IsoToGrid(ix, iy, p.Tile.Width, p.Tile.Height)
}

// ScreenToCell клетка под экранной точкой на слое 0 (выбор мышью)
func (p Projector) ScreenToCell(sx, sy float64, cam Camera) vec.Vec2 {
	x, y := p.ScreenToGrid(sx, sy, 0, cam)
	return vec.Vec2Float{X: x, Y: y}.Cell()
}
