package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/isoworld/internal/tilemap"
)

// grid строит слой width x height, заполненный fill
func grid(width, height int, fill tilemap.TileID) [][]tilemap.TileID {
	g := make([][]tilemap.TileID, height)
	for y := range g {
		g[y] = make([]tilemap.TileID, width)
		for x := range g[y] {
			g[y][x] = fill
		}
	}
	return g
}

func mustTiles(t *testing.T, layers ...[][]tilemap.TileID) *tilemap.TileMap {
	t.Helper()
	tm, err := tilemap.FromGrids(layers, nil)
	require.NoError(t, err)
	return tm
}

func TestResolve_DescendOffBridge(t *testing.T) {
	ground := grid(10, 10, 1)
	bridge := grid(10, 10, tilemap.Empty)
	bridge[5][5] = 2
	z := NewZone("a", mustTiles(t, ground, bridge), ZoneTable{}, 0)

	res := Resolve(z, 5, 6, 1)
	assert.Equal(t, Resolution{Allowed: true, TargetLayer: 0, Reason: ReasonDescend}, res)
}

func TestResolve_UnsetLayerPicksHighest(t *testing.T) {
	ground := grid(10, 10, 1)
	upper := grid(10, 10, tilemap.Empty)
	upper[3][3] = 2
	z := NewZone("a", mustTiles(t, ground, upper), ZoneTable{}, 0)

	res := Resolve(z, 3, 3, NoLayer)
	assert.Equal(t, Resolution{Allowed: true, TargetLayer: 1, Reason: ReasonOK}, res)
}

// ladderZone одна строка клеток с разными наборами слоёв:
// x=0 пусто, x=1 слои 0,1,2, x=2 только 2, x=3 только 1, x=4 слои 0 и 2
func ladderZone(t *testing.T) *Zone {
	l0 := [][]tilemap.TileID{{0, 1, 0, 0, 1}}
	l1 := [][]tilemap.TileID{{0, 1, 0, 1, 0}}
	l2 := [][]tilemap.TileID{{0, 1, 1, 0, 1}}
	return NewZone("ladder", mustTiles(t, l0, l1, l2), ZoneTable{}, 0)
}

func TestResolve_Rules(t *testing.T) {
	z := ladderZone(t)

	tests := []struct {
		name    string
		x       int
		current int
		want    Resolution
	}{
		{"пустая клетка", 0, NoLayer, Resolution{false, NoLayer, ReasonNoWalkableTile}},
		{"пустая клетка со слоем", 0, 1, Resolution{false, NoLayer, ReasonNoWalkableTile}},
		{"без слоя - самый высокий", 1, NoLayer, Resolution{true, 2, ReasonOK}},
		{"тот же слой", 1, 1, Resolution{true, 1, ReasonSameLayer}},
		{"на два выше", 2, 0, Resolution{false, NoLayer, ReasonTooHigh}},
		{"на один выше", 2, 1, Resolution{true, 2, ReasonAscend}},
		{"подъём с земли", 3, 0, Resolution{true, 1, ReasonAscend}},
		{"спуск", 3, 2, Resolution{true, 1, ReasonDescend}},
		{"спуск важнее подъёма", 4, 1, Resolution{true, 0, ReasonDescend}},
		{"ближайший нижний", 4, 3, Resolution{true, 2, ReasonDescend}},
		{"земля", 4, 0, Resolution{true, 0, ReasonSameLayer}},
		{"вне карты", 9, 0, Resolution{false, NoLayer, ReasonNoWalkableTile}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(z, tt.x, 0, tt.current))
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	z := ladderZone(t)

	for x := -1; x <= 5; x++ {
		for current := NoLayer; current <= 3; current++ {
			first := Resolve(z, x, 0, current)
			assert.Equal(t, first, Resolve(z, x, 0, current), "x=%d current=%d", x, current)

			if first.Allowed {
				again := Resolve(z, x, 0, first.TargetLayer)
				assert.Equal(t, first.TargetLayer, again.TargetLayer)
				assert.Equal(t, ReasonSameLayer, again.Reason)
			}
		}
	}
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "DESCEND", ReasonDescend.String())
	assert.Equal(t, "NO_WALKABLE_TILE", ReasonNoWalkableTile.String())
	assert.Equal(t, "UNKNOWN", Reason(42).String())

	text, err := ReasonTooHigh.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "TOO_HIGH", string(text))
}
