package world

import (
	"github.com/annel0/isoworld/internal/logging"
	"github.com/annel0/isoworld/internal/vec"
)

// DefaultSpawnRadius радиус поиска замены для непроходимой точки появления
const DefaultSpawnRadius = 5

// validateSpawn проверяет точку появления и при необходимости ищет замену.
// false - точку нужно удалить.
func (z *Zone) validateSpawn(sp SpawnPoint, radius int) (SpawnPoint, bool) {
	if radius <= 0 {
		radius = DefaultSpawnRadius
	}

	from := sp.Cell()
	to, ok := from, z.IsWalkable(sp.X, sp.Y)
	if !ok {
		to, ok = z.nearestWalkable(from, radius)
		if !ok {
			logging.Error("❌ [%s] точка %q %v: %v, в радиусе %d нет проходимых клеток, точка удалена",
				z.name, sp.Key, from, ErrInvalidSpawn, radius)
			z.substitutions = append(z.substitutions, Substitution{Key: sp.Key, From: from, Dropped: true})
			return SpawnPoint{}, false
		}
		logging.Warn("⚠️ [%s] точка %q %v непроходима, заменена на %v", z.name, sp.Key, from, to)
		z.substitutions = append(z.substitutions, Substitution{Key: sp.Key, From: from, To: to})
	}

	sp.X, sp.Y = to.X, to.Y
	if !HasLayer(sp.Layer) || !z.IsWalkableOn(sp.Layer, sp.X, sp.Y) {
		sp.Layer, _ = z.HighestWalkableLayer(sp.X, sp.Y)
	}
	return sp, true
}

// nearestWalkable обходит квадратные кольца вокруг from с радиусом 1..radius
// и возвращает первую клетку, проходимую хотя бы на одном слое.
// Внутри кольца порядок: по x, затем по y (детерминированный).
func (z *Zone) nearestWalkable(from vec.Vec2, radius int) (vec.Vec2, bool) {
	for d := 1; d <= radius; d++ {
		for dx := -d; dx <= d; dx++ {
			for dy := -d; dy <= d; dy++ {
				c := from.Add(vec.Vec2{X: dx, Y: dy})
				if c.ChebyshevTo(from) != d {
					continue
				}
				if z.IsWalkable(c.X, c.Y) {
					return c, true
				}
			}
		}
	}
	return vec.Vec2{}, false
}
