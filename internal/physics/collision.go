// Package physics проверяет перемещение сущностей по слоистой карте клеток.
//
// Позиция сущности - вещественные координаты сетки плюс слой. Столкновения
// проверяются только при смене клетки (клетка = округление координат),
// поэтому движение внутри клетки всегда разрешено.
package physics

import (
	"math"

	"github.com/annel0/isoworld/internal/vec"
	"github.com/annel0/isoworld/internal/world"
)

// DefaultEpsilon порог малого смещения для правила края карты, в долях клетки
const DefaultEpsilon = 0.2

// Reason причина решения о перемещении. Помимо причин резолвера слоёв
// (OK, SAME_LAYER, DESCEND, ASCEND, TOO_HIGH, NO_WALKABLE_TILE) бывают
// SUB_TILE, PERMISSIVE_EDGE и FREE.
type Reason string

const (
	// ReasonSubTile движение внутри текущей клетки
	ReasonSubTile Reason = "SUB_TILE"
	// ReasonPermissiveEdge малый шаг в клетку без тайлов ни на одном слое
	ReasonPermissiveEdge Reason = "PERMISSIVE_EDGE"
	// ReasonFree режим без столкновений
	ReasonFree Reason = "FREE"
)

// FromResolver переводит причину резолвера слоёв
func FromResolver(r world.Reason) Reason {
	return Reason(r.String())
}

// Position позиция сущности: координаты сетки и слой (world.NoLayer - не задан)
type Position struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Layer int     `json:"layer"`
}

// NewPosition позиция без слоя
func NewPosition(x, y float64) Position {
	return Position{X: x, Y: y, Layer: world.NoLayer}
}

// Cell клетка позиции
func (p Position) Cell() vec.Vec2 {
	return vec.Vec2Float{X: p.X, Y: p.Y}.Cell()
}

// MoveResult итог попытки перемещения. При отказе координаты и слой
// совпадают с исходными.
type MoveResult struct {
	Accepted bool    `json:"accepted"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Layer    int     `json:"layer"`
	Reason   Reason  `json:"reason"`
}

// Position позиция после перемещения
func (r MoveResult) Position() Position {
	return Position{X: r.X, Y: r.Y, Layer: r.Layer}
}

// CellChanged сообщает, перешла ли сущность в другую клетку
func (r MoveResult) CellChanged(from Position) bool {
	return r.Accepted && r.Position().Cell() != from.Cell()
}

// Terrain карта, по которой проверяется движение (реализуется *world.Zone)
type Terrain interface {
	world.LayerSource
	HasAnyTile(x, y int) bool
}

// TryMove проверяет смещение (dx, dy) с порогом DefaultEpsilon
func TryMove(t Terrain, pos Position, dx, dy float64) MoveResult {
	return TryMoveEps(t, pos, dx, dy, DefaultEpsilon)
}

// TryMoveEps проверяет смещение (dx, dy):
//   - клетка не меняется - разрешено, слой прежний (SUB_TILE);
//   - в целевой клетке нет тайлов ни на одном слое, а |dx| и |dy| меньше eps -
//     разрешено, слой прежний (PERMISSIVE_EDGE);
//   - иначе решение принимает резолвер слоёв для целевой клетки.
func TryMoveEps(t Terrain, pos Position, dx, dy, eps float64) MoveResult {
	next := Position{X: pos.X + dx, Y: pos.Y + dy, Layer: pos.Layer}
	from, to := pos.Cell(), next.Cell()

	if from == to {
		return accepted(next, ReasonSubTile)
	}

	if !t.HasAnyTile(to.X, to.Y) && math.Abs(dx) < eps && math.Abs(dy) < eps {
		return accepted(next, ReasonPermissiveEdge)
	}

	res := world.Resolve(t, to.X, to.Y, pos.Layer)
	if !res.Allowed {
		return MoveResult{Accepted: false, X: pos.X, Y: pos.Y, Layer: pos.Layer, Reason: FromResolver(res.Reason)}
	}

	next.Layer = res.TargetLayer
	return accepted(next, FromResolver(res.Reason))
}

func accepted(p Position, reason Reason) MoveResult {
	return MoveResult{Accepted: true, X: p.X, Y: p.Y, Layer: p.Layer, Reason: reason}
}
