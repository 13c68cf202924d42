package physics

import (
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/isoworld/internal/metrics"
	"github.com/annel0/isoworld/internal/tilemap"
	"github.com/annel0/isoworld/internal/world"
)

// testZone 10x10: земля везде, кроме заблокированного тайла 9 в (0,5);
// мост (слой 1) над землёй в (5,5) и без земли под ним в (5,2)
func testZone(t *testing.T) *world.Zone {
	t.Helper()
	ground := make([][]tilemap.TileID, 10)
	bridge := make([][]tilemap.TileID, 10)
	for y := range ground {
		ground[y] = make([]tilemap.TileID, 10)
		bridge[y] = make([]tilemap.TileID, 10)
		for x := range ground[y] {
			ground[y][x] = 1
		}
	}
	ground[5][0] = 9
	bridge[5][5] = 2
	ground[2][5] = tilemap.Empty
	bridge[2][5] = 2

	tm, err := tilemap.FromGrids([][][]tilemap.TileID{ground, bridge}, tilemap.NewWalkRules(9))
	require.NoError(t, err)
	return world.NewZone("test", tm, world.ZoneTable{}, 0)
}

func TestTryMove_SubTileKeepsLayer(t *testing.T) {
	z := testZone(t)
	pos := Position{X: 5, Y: 5, Layer: 1}

	res := TryMove(z, pos, 0.3, -0.2)
	assert.True(t, res.Accepted)
	assert.Equal(t, ReasonSubTile, res.Reason)
	assert.Equal(t, 1, res.Layer)
	assert.InDelta(t, 5.3, res.X, 1e-9)
	assert.False(t, res.CellChanged(pos))
}

// Островок: проходима только (5,5), все соседи заблокированы
func TestTryMove_SubTileOnIsland(t *testing.T) {
	ground := make([][]tilemap.TileID, 10)
	for y := range ground {
		ground[y] = make([]tilemap.TileID, 10)
		for x := range ground[y] {
			ground[y][x] = 9
		}
	}
	ground[5][5] = 1
	tm, err := tilemap.FromGrids([][][]tilemap.TileID{ground}, tilemap.NewWalkRules(9))
	require.NoError(t, err)
	z := world.NewZone("island", tm, world.ZoneTable{}, 0)

	pos := Position{X: 5, Y: 5, Layer: 0}
	for _, d := range [][2]float64{{0.05, 0.05}, {-0.05, 0.05}, {0.05, -0.05}, {-0.05, -0.05}, {0.49, -0.49}} {
		res := TryMove(z, pos, d[0], d[1])
		assert.True(t, res.Accepted, "d=%v", d)
		assert.Equal(t, ReasonSubTile, res.Reason)
		assert.Equal(t, 0, res.Layer)
		assert.False(t, res.CellChanged(pos))
	}

	// Выход в любую соседнюю клетку отклоняется
	res := TryMove(z, pos, 0.6, 0)
	assert.False(t, res.Accepted)
	assert.Equal(t, pos, res.Position())
}

func TestTryMove_DescendFromBridge(t *testing.T) {
	z := testZone(t)
	pos := Position{X: 5, Y: 5, Layer: 1}

	res := TryMove(z, pos, 0, 1)
	assert.True(t, res.Accepted)
	assert.Equal(t, Reason("DESCEND"), res.Reason)
	assert.Equal(t, 0, res.Layer)
	assert.True(t, res.CellChanged(pos))
}

func TestTryMove_AscendOntoBridge(t *testing.T) {
	z := testZone(t)

	res := TryMove(z, Position{X: 5, Y: 3, Layer: 0}, 0, -1)
	assert.True(t, res.Accepted)
	assert.Equal(t, Reason("ASCEND"), res.Reason)
	assert.Equal(t, 1, res.Layer)

	// Над землёй мост не поднимает: слой 0 проходим
	res = TryMove(z, Position{X: 5, Y: 4, Layer: 0}, 0, 1)
	assert.Equal(t, Reason("SAME_LAYER"), res.Reason)
	assert.Equal(t, 0, res.Layer)
}

func TestTryMove_RejectionKeepsPosition(t *testing.T) {
	z := testZone(t)
	pos := Position{X: 1, Y: 5, Layer: 0}

	// (0,5) занята заблокированным тайлом: правило края не действует даже для малого шага
	res := TryMove(z, pos, -0.6, 0)
	assert.False(t, res.Accepted)
	assert.Equal(t, Reason("NO_WALKABLE_TILE"), res.Reason)
	assert.Equal(t, pos, res.Position())

	res = TryMoveEps(z, Position{X: 0.6, Y: 5, Layer: 0}, -0.15, 0, DefaultEpsilon)
	assert.False(t, res.Accepted)
}

func TestTryMove_PermissiveEdge(t *testing.T) {
	z := testZone(t)
	pos := Position{X: 9.45, Y: 3, Layer: 0}

	res := TryMove(z, pos, 0.1, 0)
	assert.True(t, res.Accepted)
	assert.Equal(t, ReasonPermissiveEdge, res.Reason)
	assert.Equal(t, 0, res.Layer)
	assert.InDelta(t, 9.55, res.X, 1e-9)
}

// Шаг в клетку без тайлов принимается тогда и только тогда, когда оба смещения меньше eps
func TestTryMove_EpsilonBoundary(t *testing.T) {
	z := testZone(t)
	pos := Position{X: 9.49, Y: 3, Layer: 0}

	tests := []struct {
		dx, dy float64
		want   bool
	}{
		{0.05, 0, true},
		{0.19, 0.1, true},
		{0.19, -0.19, true},
		{0.2, 0, false},
		{0.5, 0, false},
		{0.1, 0.2, false},
		{0.1, -0.3, false},
	}
	for _, tt := range tests {
		res := TryMove(z, pos, tt.dx, tt.dy)
		assert.Equal(t, tt.want, res.Accepted, "dx=%v dy=%v", tt.dx, tt.dy)
		if !tt.want {
			assert.Equal(t, pos, res.Position())
		}
	}

	// Больший порог через TryMoveEps
	assert.True(t, TryMoveEps(z, pos, 0.3, 0, 0.5).Accepted)
}

// Принятое перемещение со сменой клетки всегда ведёт в проходимую клетку на
// своём слое, кроме правила края карты
func TestTryMove_NeverEntersBlockedCell(t *testing.T) {
	z := testZone(t)
	rng := rand.New(rand.NewSource(7))
	pos := Position{X: 5, Y: 5, Layer: world.NoLayer}

	for i := 0; i < 2000; i++ {
		dx := rng.Float64()*1.6 - 0.8
		dy := rng.Float64()*1.6 - 0.8
		res := TryMove(z, pos, dx, dy)
		if res.Accepted && res.CellChanged(pos) && res.Reason != ReasonPermissiveEdge {
			cell := res.Position().Cell()
			require.True(t, z.IsWalkableOn(res.Layer, cell.X, cell.Y), "шаг %d в %v слой %d", i, cell, res.Layer)
		}
		if res.Accepted {
			pos = res.Position()
		}
	}
}

func TestValidator_FreeModeAndMetrics(t *testing.T) {
	z := testZone(t)
	engine, err := metrics.NewEngine(prometheus.NewRegistry())
	require.NoError(t, err)

	v := NewValidator(WithEpsilon(0.3), WithMetrics(engine))
	assert.Equal(t, 0.3, v.Epsilon())
	assert.Equal(t, DefaultEpsilon, NewValidator(WithEpsilon(-1)).Epsilon())

	pos := Position{X: 1, Y: 5, Layer: 0}
	res := v.Move(z, "player", pos, -1, 0)
	assert.False(t, res.Accepted)

	v.SetFreeMode(true)
	assert.True(t, v.FreeMode())
	res = v.Move(z, "player", pos, -1, 0)
	assert.True(t, res.Accepted)
	assert.Equal(t, ReasonFree, res.Reason)
	assert.Equal(t, 0, res.Layer, "на заблокированной клетке слой не меняется")

	res = v.Move(z, "player", Position{X: 5, Y: 4, Layer: 0}, 0, 1)
	assert.Equal(t, 1, res.Layer, "без столкновений слой - самый высокий проходимый")

	res = v.Move(z, "player", NewPosition(9, 9), 5, 5)
	assert.True(t, res.Accepted)
	assert.Equal(t, world.LayerGround, res.Layer)

	v.SetFreeMode(false)
	assert.False(t, v.Move(z, "player", pos, -1, 0).Accepted)
}
