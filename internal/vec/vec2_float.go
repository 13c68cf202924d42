package vec

import "math"

// Vec2Float представляет 2D координаты сетки с плавающей точкой
// (плавное движение внутри клетки)
type Vec2Float struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Cell возвращает клетку, в которой находится точка.
// Округление половины от нуля (math.Round), как и во всём движке.
func (v Vec2Float) Cell() Vec2 {
	return Vec2{X: int(math.Round(v.X)), Y: int(math.Round(v.Y))}
}
