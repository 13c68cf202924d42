// Package iso содержит чистые функции перехода между координатами сетки
// и изометрическими пикселями. Центрирование и камера применяются вызывающим кодом.
package iso

import (
	"errors"
	"fmt"
	"math"

	"github.com/annel0/isoworld/internal/vec"
)

// Размер клетки по умолчанию
const (
	DefaultTileWidth  = 64
	DefaultTileHeight = 64
)

// ErrInvalidTileSize возвращается для неположительных размеров клетки
var ErrInvalidTileSize = errors.New("недопустимый размер клетки")

// TileSize задаёт ширину и высоту изображения клетки в пикселях
type TileSize struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// DefaultTileSize возвращает размер 64x64
func DefaultTileSize() TileSize {
	return TileSize{Width: DefaultTileWidth, Height: DefaultTileHeight}
}

// Validate проверяет, что размеры положительные
func (ts TileSize) Validate() error {
	if ts.Width <= 0 || ts.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidTileSize, ts.Width, ts.Height)
	}
	return nil
}

// GridToIso переводит координаты сетки в изометрические пиксели:
//
//	iso_x = (x - y) * w/2
//	iso_y = (x + y) * h/4
func GridToIso(x, y float64, tileW, tileH int) (isoX, isoY float64) {
	halfW := float64(tileW) / 2
	quarterH := float64(tileH) / 4
	return (x - y) * halfW, (x + y) * quarterH
}

// IsoToGrid решает систему GridToIso в обратную сторону без округления.
// Движение работает с дробными значениями, выбор клетки мышью округляет (IsoToCell).
func IsoToGrid(isoX, isoY float64, tileW, tileH int) (x, y float64) {
	halfW := float64(tileW) / 2
	quarterH := float64(tileH) / 4

	a := isoX / halfW    // x - y
	b := isoY / quarterH // x + y
	return (b + a) / 2, (b - a) / 2
}

// Round округляет половину от нуля. Все пиксельные и клеточные
// округления движка проходят через эту функцию.
func Round(v float64) int {
	return int(math.Round(v))
}

// GridToPixel то же, что GridToIso, но с округлением до целых пикселей
func GridToPixel(x, y float64, tileW, tileH int) (int, int) {
	ix, iy := GridToIso(x, y, tileW, tileH)
	return Round(ix), Round(iy)
}

// IsoToCell возвращает клетку под изометрической точкой
func IsoToCell(isoX, isoY float64, tileW, tileH int) vec.Vec2 {
	x, y := IsoToGrid(isoX, isoY, tileW, tileH)
	return vec.Vec2{X: Round(x), Y: Round(y)}
}

// ToIso вариант GridToIso для размера клетки
func (ts TileSize) ToIso(x, y float64) (float64, float64) {
	return GridToIso(x, y, ts.Width, ts.Height)
}

// ToGrid вариант IsoToGrid для размера клетки
func (ts TileSize) ToGrid(isoX, isoY float64) (float64, float64) {
	return IsoToGrid(isoX, isoY, ts.Width, ts.Height)
}
