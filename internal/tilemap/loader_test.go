package tilemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/isoworld/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoLayerMap = `{
  "width": 3, "height": 2, "tilewidth": 64, "tileheight": 64,
  "layers": [
    {"name": "ground", "type": "tilelayer", "width": 3, "height": 2, "data": [1, 2, 3, 4, 5, 6]},
    {"name": "npcs", "type": "objectgroup", "objects": [{"x": 64, "y": 64}]},
    {"name": "bridge", "type": "tilelayer", "width": 3, "height": 2, "data": [0, 7, 0]}
  ]
}`

func TestLoadBytes_Layers(t *testing.T) {
	tm, err := LoadBytes([]byte(twoLayerMap), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, tm.Width)
	assert.Equal(t, 2, tm.Height)
	assert.Equal(t, 2, tm.LayerCount(), "objectgroup должен игнорироваться")
	assert.Equal(t, []string{"ground", "bridge"}, tm.LayerNames)
	assert.Equal(t, 64, tm.TileWidth)

	// row-major
	assert.Equal(t, TileID(1), tm.TileAt(0, 0, 0))
	assert.Equal(t, TileID(3), tm.TileAt(0, 2, 0))
	assert.Equal(t, TileID(4), tm.TileAt(0, 0, 1))
	assert.Equal(t, TileID(7), tm.TileAt(1, 1, 0))

	// Короткие данные дополнены нулями
	assert.Equal(t, Empty, tm.TileAt(1, 2, 1))
	assert.False(t, tm.WalkableAt(1, 2, 1))
}

func TestLoadBytes_ExtraDataDropped(t *testing.T) {
	tm, err := LoadBytes([]byte(`{"layers":[{"width":2,"height":1,"data":[1,2,3,4]}]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, tm.Width)
	assert.Equal(t, 1, tm.Height)
	assert.Equal(t, TileID(2), tm.TileAt(0, 1, 0))
	assert.Equal(t, Empty, tm.TileAt(0, 2, 0))
}

func TestLoadBytes_MismatchedLayerNormalised(t *testing.T) {
	data := `{"layers":[
		{"width":2,"height":2,"data":[1,1,1,1]},
		{"width":3,"height":1,"data":[5,6,7]}
	]}`
	tm, err := LoadBytes([]byte(data), nil)
	require.NoError(t, err)
	assert.Equal(t, TileID(6), tm.TileAt(1, 1, 0))
	assert.Equal(t, Empty, tm.TileAt(1, 0, 1))
	assert.False(t, tm.InBounds(2, 0))
}

func TestLoadBytes_Errors(t *testing.T) {
	_, err := LoadBytes(nil, nil)
	assert.ErrorIs(t, err, ErrMapLoad)

	_, err = LoadBytes([]byte("{не json"), nil)
	assert.ErrorIs(t, err, ErrMapLoad)

	_, err = LoadBytes([]byte(`{"layers":[{"type":"objectgroup"}]}`), nil)
	assert.ErrorIs(t, err, ErrMapLoad)

	_, err = Load(nil, nil)
	assert.ErrorIs(t, err, ErrMapLoad)
}

func TestDecodeData_Encodings(t *testing.T) {
	ids := []TileID{1, 0, 3, 42, 7, 9}

	for _, compression := range []string{"", "zlib", "gzip", "zstd"} {
		t.Run("base64-"+compression, func(t *testing.T) {
			encoded, err := EncodeBase64(ids, compression)
			require.NoError(t, err)

			layer := LayerDescriptor{
				Width: 3, Height: 2,
				Data:        []byte(`"` + encoded + `"`),
				Encoding:    "base64",
				Compression: compression,
			}
			got, err := layer.DecodeData(6)
			require.NoError(t, err)
			assert.Equal(t, ids, got)
		})
	}

	t.Run("csv", func(t *testing.T) {
		layer := LayerDescriptor{Data: []byte(`"1,0,3,\n42,7,9"`), Encoding: "csv"}
		got, err := layer.DecodeData(0)
		require.NoError(t, err)
		assert.Equal(t, ids, got)
	})

	t.Run("unknown", func(t *testing.T) {
		layer := LayerDescriptor{Data: []byte(`"AAAA"`), Encoding: "base64", Compression: "lz4"}
		_, err := layer.DecodeData(0)
		assert.Error(t, err)
	})
}

func TestDecodeData_CompressedOutputBounded(t *testing.T) {
	// 1M одинаковых id сжимаются в несколько килобайт
	big := make([]TileID, 1<<20)
	for i := range big {
		big[i] = 1
	}

	for _, compression := range []string{"zlib", "gzip", "zstd"} {
		t.Run(compression, func(t *testing.T) {
			encoded, err := EncodeBase64(big, compression)
			require.NoError(t, err)
			require.Less(t, len(encoded), 64<<10)

			layer := LayerDescriptor{
				Width: 2, Height: 2,
				Data:        []byte(`"` + encoded + `"`),
				Encoding:    "base64",
				Compression: compression,
			}
			got, err := layer.DecodeData(4)
			require.NoError(t, err)
			assert.Len(t, got, 4, "распаковка ограничена размером слоя")

			tm, err := Load(&Descriptor{Layers: []LayerDescriptor{layer}}, nil)
			require.NoError(t, err)
			assert.Equal(t, 2, tm.Width)
			assert.Equal(t, TileID(1), tm.TileAt(0, 1, 1))
		})
	}
}

func TestDecodeData_FlipFlagsMasked(t *testing.T) {
	layer := LayerDescriptor{Data: []byte(`[2147483653, 1073741826, 3]`)}
	got, err := layer.DecodeData(0)
	require.NoError(t, err)
	assert.Equal(t, []TileID{5, 2, 3}, got)
}

func TestWalkRules(t *testing.T) {
	rules := NewWalkRules(91, 92)
	assert.False(t, rules.IsWalkable(Empty))
	assert.False(t, rules.IsWalkable(91))
	assert.True(t, rules.IsWalkable(1))

	var permissive *WalkRules
	assert.True(t, permissive.IsWalkable(500))
	assert.False(t, permissive.IsWalkable(Empty))

	allow := RulesFromInts([]int{3}, []int{1, 3})
	assert.True(t, allow.IsWalkable(1))
	assert.False(t, allow.IsWalkable(2))
	assert.False(t, allow.IsWalkable(3))
}

func TestWalkability_Monotonic(t *testing.T) {
	// Клетка с хотя бы одним не заблокированным тайлом проходима при любом порядке слоёв
	orders := []string{
		`{"layers":[{"width":1,"height":1,"data":[91]},{"width":1,"height":1,"data":[4]}]}`,
		`{"layers":[{"width":1,"height":1,"data":[4]},{"width":1,"height":1,"data":[91]}]}`,
	}
	for _, data := range orders {
		tm, err := LoadBytes([]byte(data), NewWalkRules(91))
		require.NoError(t, err)
		assert.Len(t, tm.WalkableLayers(0, 0), 1)
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()

	tm, substituted := LoadOrDefault(filepath.Join(dir, "missing.json"), nil)
	assert.True(t, substituted)
	assert.Equal(t, DefaultGridSize, tm.Width)
	assert.Equal(t, vec.Vec2{X: -10, Y: -10}, tm.Origin)
	assert.True(t, tm.WalkableAt(0, 0, 0))
	assert.True(t, tm.WalkableAt(0, -10, 10))
	assert.False(t, tm.InBounds(11, 0))

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("[[["), 0644))
	_, substituted = LoadOrDefault(broken, nil)
	assert.True(t, substituted)

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(twoLayerMap), 0644))
	tm, substituted = LoadOrDefault(good, nil)
	assert.False(t, substituted)
	assert.Equal(t, 2, tm.LayerCount())
}

func TestTileMap_TilesAndStats(t *testing.T) {
	tm, err := LoadBytes([]byte(twoLayerMap), NewWalkRules(6))
	require.NoError(t, err)

	var count int
	tm.Tiles(func(tile Tile) {
		count++
		if tile.ID == 6 {
			assert.False(t, tile.Walkable)
		}
	})
	assert.Equal(t, 7, count)

	s := tm.Stats()
	assert.Equal(t, 2, s.Layers)
	assert.Equal(t, 7, s.Tiles)
	assert.Equal(t, 5, s.WalkableCells)
	assert.True(t, tm.HasAnyTile(2, 1))
	assert.Equal(t, []int{0, 1}, tm.WalkableLayers(1, 0))
}
