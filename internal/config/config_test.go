package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/isoworld/internal/world"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWithoutPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, "isoworld.yaml", `
engine:
  tile_width: 32
  tile_height: 32
  blocked_tiles: [6, 7]
  start_map: foret
storage:
  backend: badger
  badger_dir: /tmp/pos
eventbus:
  backend: jetstream
  retention_hours: 2
server:
  http_port: 9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Engine.TileWidth)
	assert.Equal(t, "foret", cfg.Engine.StartMap)
	assert.Equal(t, "player", cfg.Engine.StartSpawn, "не заданное в файле остаётся по умолчанию")
	assert.Equal(t, 0.2, cfg.Engine.Epsilon)
	assert.Equal(t, StorageBadger, cfg.Storage.Backend)
	assert.Equal(t, 2*time.Hour, cfg.EventBus.RetentionDuration())
	assert.Equal(t, 9000, cfg.Server.GetHTTPPort())

	rules := cfg.Engine.WalkRules()
	assert.False(t, rules.IsWalkable(6))
	assert.True(t, rules.IsWalkable(1))
}

func TestLoad_FromEnv(t *testing.T) {
	path := writeFile(t, "env.yaml", "engine:\n  start_map: grotte\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "grotte", cfg.Engine.StartMap)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "engine: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "tile.yaml", "engine:\n  tile_width: 0\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "eps.yaml", "engine:\n  epsilon: 1.5\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "storage.yaml", "storage:\n  backend: mongo\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bus.yaml", "eventbus:\n  backend: kafka\n"))
	assert.Error(t, err)
}

func TestPortFallback(t *testing.T) {
	s := ServerConfig{}

	t.Setenv(EnvHTTPPort, "")
	t.Setenv(EnvMetricsPort, "")
	assert.Equal(t, 8088, s.GetHTTPPort())
	assert.Equal(t, 2112, s.GetMetricsPort())

	t.Setenv(EnvHTTPPort, "9100")
	t.Setenv(EnvMetricsPort, "не число")
	assert.Equal(t, 9100, s.GetHTTPPort())
	assert.Equal(t, 2112, s.GetMetricsPort())

	s.HTTPPort = 7000
	assert.Equal(t, 7000, s.GetHTTPPort(), "значение из конфигурации важнее окружения")
}

const zonesYAML = `
zones:
  clairiere:
    spawns:
      player: {x: 16, y: 16, layer: 2}
      neuill: {x: 16, y: 10}
    transitions:
      - {x: 15, y: 15, target_map: "JSON.", target_spawn: player}
      - {x: 1, y: 2, target_map: grotte}
    fall_map: clairiere
  grotte:
    spawns:
      player: {x: 0, y: 0}
`

func TestParseZones(t *testing.T) {
	tables, err := ParseZones([]byte(zonesYAML))
	require.NoError(t, err)
	require.Len(t, tables, 2)

	c := tables["clairiere"]
	assert.Equal(t, world.SpawnPoint{Key: "player", X: 16, Y: 16, Layer: 2}, c.Spawns["player"])
	assert.Equal(t, world.NoLayer, c.Spawns["neuill"].Layer)
	require.Len(t, c.Transitions, 2)
	assert.Equal(t, world.TransitionPoint{X: 15, Y: 15, TargetMap: "JSON.", TargetSpawn: "player"}, c.Transitions[0])
	assert.Empty(t, c.Transitions[1].TargetSpawn)
	assert.Equal(t, "clairiere", c.FallMap)

	assert.Empty(t, tables["grotte"].FallMap)
}

func TestParseZones_Errors(t *testing.T) {
	_, err := ParseZones([]byte("zones: [1"))
	assert.ErrorIs(t, err, ErrZonesLoad)

	_, err = ParseZones([]byte("zones:\n  a:\n    transitions:\n      - {x: 1, y: 1}\n"))
	assert.ErrorIs(t, err, ErrZonesLoad)

	_, err = ParseZones([]byte("zones:\n  ../up: {}\n"))
	assert.ErrorIs(t, err, ErrZonesLoad)
}

func TestLoadZones(t *testing.T) {
	tables, err := LoadZones("")
	require.NoError(t, err)
	assert.Empty(t, tables)

	_, err = LoadZones(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrZonesLoad)

	tables, err = LoadZones(writeFile(t, "zones.yaml", zonesYAML))
	require.NoError(t, err)
	assert.Contains(t, tables, "grotte")
}
