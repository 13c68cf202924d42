package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/isoworld/internal/eventbus"
	"github.com/annel0/isoworld/internal/game"
	"github.com/annel0/isoworld/internal/iso"
	"github.com/annel0/isoworld/internal/render"
	"github.com/annel0/isoworld/internal/world"
)

// Мост: слой 1 только в (1,1), переход в (2,0)
const bridgeMap = `{
  "width": 3, "height": 3,
  "layers": [
    {"name": "ground", "type": "tilelayer", "width": 3, "height": 3, "data": [1, 1, 1, 1, 1, 1, 1, 1, 0]},
    {"name": "bridge", "type": "tilelayer", "width": 3, "height": 3, "data": [0, 0, 0, 0, 7, 0, 0, 0, 0]}
  ]
}`

type fixture struct {
	server  *RestServer
	session *game.Session
	bus     eventbus.EventBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bridge.json"), []byte(bridgeMap), 0o644))

	source := &world.FileSource{
		MapsDir: dir,
		Tables: map[string]world.ZoneTable{
			"bridge": {
				Spawns:      map[string]world.SpawnPoint{"player": {X: 0, Y: 0, Layer: world.NoLayer}},
				Transitions: []world.TransitionPoint{{X: 2, Y: 0, TargetMap: "void", TargetSpawn: "player"}},
			},
		},
	}

	bus := eventbus.NewMemoryBus(64)
	t.Cleanup(func() { bus.Close() })

	vp := render.Viewport{Width: 640, Height: 480}
	session := game.NewSession(world.NewManager(source, world.WithEventBus(bus)), game.Options{
		Bus:       bus,
		Projector: render.NewProjector(iso.DefaultTileSize(), vp.Width, vp.Height),
		Viewport:  vp,
	})
	require.NoError(t, session.Spawn(context.Background(), "bridge", "player"))

	reg := prometheus.NewRegistry()
	srv, err := NewRestServer(Config{Session: session, Bus: bus, Registerer: reg, Gatherer: reg})
	require.NoError(t, err)
	return &fixture{server: srv, session: session, bus: bus}
}

func (f *fixture) do(t *testing.T, method, target, body string) (int, GenericResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	var resp GenericResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func data(t *testing.T, resp GenericResponse) map[string]interface{} {
	t.Helper()
	m, isMap := resp.Data.(map[string]interface{})
	require.True(t, isMap, "data: %#v", resp.Data)
	return m
}

func TestRestServer_RequiresSession(t *testing.T) {
	_, err := NewRestServer(Config{})
	assert.Error(t, err)
}

func TestRestServer_Health(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"zone":"bridge"`)
}

func TestRestServer_ZoneQueries(t *testing.T) {
	f := newFixture(t)

	code, resp := f.do(t, http.MethodGet, "/api/zone", "")
	require.Equal(t, http.StatusOK, code)
	zone := data(t, resp)
	assert.Equal(t, "bridge", zone["name"])
	assert.Len(t, zone["layers"], 2)

	_, resp = f.do(t, http.MethodGet, "/api/walkable?x=2&y=2", "")
	assert.Equal(t, false, data(t, resp)["walkable"])

	_, resp = f.do(t, http.MethodGet, "/api/layers?x=1&y=1", "")
	assert.Equal(t, []interface{}{float64(0), float64(1)}, data(t, resp)["layers"])
	assert.Equal(t, float64(1), data(t, resp)["highest"])

	code, _ = f.do(t, http.MethodGet, "/api/layers?x=a&y=1", "")
	assert.Equal(t, http.StatusBadRequest, code)

	_, resp = f.do(t, http.MethodGet, "/api/spawn/player", "")
	assert.Equal(t, "player", data(t, resp)["key"])
	code, _ = f.do(t, http.MethodGet, "/api/spawn/ghost", "")
	assert.Equal(t, http.StatusNotFound, code)

	_, resp = f.do(t, http.MethodGet, "/api/transition?x=2&y=0", "")
	assert.Equal(t, "void", data(t, resp)["target_map"])
	code, _ = f.do(t, http.MethodGet, "/api/transition?x=0&y=0", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRestServer_MoveOntoBridge(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Step(context.Background(), 1, 0)
	require.NoError(t, err)

	code, resp := f.do(t, http.MethodPost, "/api/move", `{"dx": 0, "dy": 1}`)
	require.Equal(t, http.StatusOK, code)
	move := data(t, resp)["move"].(map[string]interface{})
	assert.Equal(t, true, move["accepted"])
	assert.Equal(t, float64(0), move["layer"], "с земли на мост шаг идёт по тому же слою")

	code, resp = f.do(t, http.MethodPost, "/api/move", `{"dx": 1, "dy": 1}`)
	require.Equal(t, http.StatusOK, code)
	move = data(t, resp)["move"].(map[string]interface{})
	assert.Equal(t, false, move["accepted"])
	assert.Equal(t, "NO_WALKABLE_TILE", move["reason"])

	code, _ = f.do(t, http.MethodPost, "/api/move", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRestServer_ChangeZone(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/zone/..", "")
	assert.Equal(t, http.StatusBadRequest, code)

	before := f.session.Zone().Name()
	code, _ = f.do(t, http.MethodPost, "/api/zone/elsewhere", `{"spawn":`)
	assert.Equal(t, http.StatusBadRequest, code, "битое тело не игнорируется")
	assert.Equal(t, before, f.session.Zone().Name())

	code, resp := f.do(t, http.MethodPost, "/api/zone/elsewhere", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "elsewhere", data(t, resp)["zone"])
	assert.Equal(t, true, data(t, resp)["fallback"])
	assert.Equal(t, "elsewhere", f.session.Zone().Name())

	code, _ = f.do(t, http.MethodPost, "/api/zone/other", `{"spawn":"player"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "other", f.session.Zone().Name())
}

func TestRestServer_ProjectAndPick(t *testing.T) {
	f := newFixture(t)

	_, resp := f.do(t, http.MethodGet, "/api/project?x=0&y=0", "")
	p := data(t, resp)
	assert.InDelta(t, 320, p["x"].(float64), 1e-9, "игрок в (0,0) в центре экрана")
	assert.InDelta(t, 240, p["y"].(float64), 1e-9)

	_, resp = f.do(t, http.MethodGet, "/api/pick?sx=320&sy=240", "")
	cell := data(t, resp)["cell"].(map[string]interface{})
	assert.Equal(t, float64(0), cell["x"])
	assert.Equal(t, float64(0), cell["y"])

	code, _ := f.do(t, http.MethodGet, "/api/project?x=0", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRestServer_StatsAndMetrics(t *testing.T) {
	f := newFixture(t)

	code, resp := f.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, code)
	stats := data(t, resp)
	assert.Contains(t, stats, "process")
	assert.Contains(t, stats, "bus")

	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), ServiceName+"_http_request_duration_seconds")
}

func TestRestServer_FreeModeAndFall(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/free?on=true", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, f.session.Validator().FreeMode())

	code, resp := f.do(t, http.MethodPost, "/api/fall", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "bridge", data(t, resp)["zone"])
}

func TestRestServer_EventStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events?type=" + eventbus.EventTransitionTriggered
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Шаг в клетку (2,0) активирует переход
	_, err = f.session.Step(context.Background(), 1, 0)
	require.NoError(t, err)
	_, err = f.session.Step(context.Background(), 1, 0)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev eventbus.Envelope
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, eventbus.EventTransitionTriggered, ev.EventType)

	var payload eventbus.TransitionTriggered
	require.NoError(t, ev.Decode(&payload))
	assert.Equal(t, "void", payload.TargetMap)
	assert.Equal(t, "void", f.session.Zone().Name())
}
