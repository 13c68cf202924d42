package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/annel0/isoworld/internal/physics"
	"github.com/annel0/isoworld/internal/tilemap"
	"github.com/annel0/isoworld/internal/vec"
	"github.com/annel0/isoworld/internal/world"
)

// ZoneInfo описание активной зоны
type ZoneInfo struct {
	Name          string                  `json:"name"`
	State         string                  `json:"state"`
	Fallback      bool                    `json:"fallback"`
	Width         int                     `json:"width"`
	Height        int                     `json:"height"`
	Origin        vec.Vec2                `json:"origin"`
	Layers        []string                `json:"layers"`
	Stats         tilemap.Stats           `json:"stats"`
	Spawns        []world.SpawnPoint      `json:"spawns"`
	Transitions   []world.TransitionPoint `json:"transitions"`
	FallTarget    string                  `json:"fall_target"`
	Substitutions []world.Substitution    `json:"substitutions,omitempty"`
	Player        physics.Position        `json:"player"`
}

// MoveRequest пробный шаг игрока
type MoveRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// ChangeZoneRequest точка появления на новой карте (необязательно)
type ChangeZoneRequest struct {
	Spawn string `json:"spawn"`
}

func (rs *RestServer) zone(c *gin.Context) (*world.Zone, bool) {
	z := rs.session.Zone()
	if z == nil {
		fail(c, http.StatusServiceUnavailable, "зона не загружена")
		return nil, false
	}
	return z, true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		fail(c, http.StatusBadRequest, "параметр "+name+" должен быть целым")
		return 0, false
	}
	return v, true
}

func queryFloat(c *gin.Context, name string) (float64, bool) {
	v, err := strconv.ParseFloat(c.Query(name), 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "параметр "+name+" должен быть числом")
		return 0, false
	}
	return v, true
}

// queryCell читает параметры x и y
func queryCell(c *gin.Context) (int, int, bool) {
	x, okX := queryInt(c, "x")
	if !okX {
		return 0, 0, false
	}
	y, okY := queryInt(c, "y")
	return x, y, okY
}

func (rs *RestServer) handleZone(c *gin.Context) {
	z, found := rs.zone(c)
	if !found {
		return
	}

	tm := z.Tiles()
	info := ZoneInfo{
		Name:          z.Name(),
		State:         z.State().String(),
		Fallback:      z.Fallback(),
		Width:         tm.Width,
		Height:        tm.Height,
		Origin:        tm.Origin,
		Layers:        tm.LayerNames,
		Stats:         tm.Stats(),
		Transitions:   z.Transitions(),
		FallTarget:    z.FallTarget(),
		Substitutions: z.Substitutions(),
		Player:        rs.session.Position(),
	}
	for _, key := range z.SpawnKeys() {
		sp, _ := z.Spawn(key)
		info.Spawns = append(info.Spawns, sp)
	}
	ok(c, info)
}

func (rs *RestServer) handleWalkable(c *gin.Context) {
	z, found := rs.zone(c)
	if !found {
		return
	}
	x, y, valid := queryCell(c)
	if !valid {
		return
	}
	ok(c, gin.H{"x": x, "y": y, "walkable": z.IsWalkable(x, y)})
}

func (rs *RestServer) handleLayers(c *gin.Context) {
	z, found := rs.zone(c)
	if !found {
		return
	}
	x, y, valid := queryCell(c)
	if !valid {
		return
	}

	layers := z.LayersAt(x, y)
	if layers == nil {
		layers = []int{}
	}
	highest, _ := z.HighestWalkableLayer(x, y)
	ok(c, gin.H{"x": x, "y": y, "layers": layers, "highest": highest, "has_tile": z.HasAnyTile(x, y)})
}

func (rs *RestServer) handleSpawn(c *gin.Context) {
	z, found := rs.zone(c)
	if !found {
		return
	}
	sp, err := z.Spawn(c.Param("key"))
	if err != nil {
		fail(c, http.StatusNotFound, err.Error())
		return
	}
	ok(c, sp)
}

func (rs *RestServer) handleTransition(c *gin.Context) {
	z, found := rs.zone(c)
	if !found {
		return
	}
	x, y, valid := queryCell(c)
	if !valid {
		return
	}
	tp, exists := z.TransitionAt(x, y)
	if !exists {
		fail(c, http.StatusNotFound, "перехода нет")
		return
	}
	ok(c, tp)
}

func (rs *RestServer) handlePlayer(c *gin.Context) {
	pos := rs.session.Position()
	cam := rs.session.Camera()
	sx, sy := rs.session.ScreenPosition(cam)
	ok(c, gin.H{"position": pos, "cell": pos.Cell(), "camera": cam, "screen": gin.H{"x": sx, "y": sy}})
}

func (rs *RestServer) handleMove(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "неверный формат запроса")
		return
	}

	res, err := rs.session.Step(c.Request.Context(), req.DX, req.DY)
	if errors.Is(err, world.ErrNoZone) {
		fail(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, res)
}

func (rs *RestServer) handleFall(c *gin.Context) {
	if err := rs.session.Fall(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, gin.H{"zone": rs.session.Zone().Name(), "position": rs.session.Position()})
}

func (rs *RestServer) handleFreeMode(c *gin.Context) {
	on, err := strconv.ParseBool(c.DefaultQuery("on", "true"))
	if err != nil {
		fail(c, http.StatusBadRequest, "параметр on должен быть true/false")
		return
	}
	rs.session.Validator().SetFreeMode(on)
	ok(c, gin.H{"free_mode": on})
}

func (rs *RestServer) handleChangeZone(c *gin.Context) {
	var req ChangeZoneRequest
	// Тело необязательно, но если оно есть, оно должно разбираться
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		fail(c, http.StatusBadRequest, "неверный формат запроса")
		return
	}

	err := rs.session.Travel(c.Request.Context(), c.Param("name"), req.Spawn)
	switch {
	case errors.Is(err, world.ErrInvalidZoneName):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, world.ErrSpawnNotFound):
		fail(c, http.StatusNotFound, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	z := rs.session.Zone()
	ok(c, gin.H{"zone": z.Name(), "fallback": z.Fallback(), "position": rs.session.Position()})
}

func (rs *RestServer) handleProject(c *gin.Context) {
	x, validX := queryFloat(c, "x")
	if !validX {
		return
	}
	y, validY := queryFloat(c, "y")
	if !validY {
		return
	}
	layer := 0
	if c.Query("layer") != "" {
		var valid bool
		if layer, valid = queryInt(c, "layer"); !valid {
			return
		}
	}

	cam := rs.session.Camera()
	sx, sy := rs.session.Projector().Project(x, y, layer, cam)
	ok(c, gin.H{"x": sx, "y": sy, "camera": cam})
}

func (rs *RestServer) handlePick(c *gin.Context) {
	sx, validX := queryFloat(c, "sx")
	if !validX {
		return
	}
	sy, validY := queryFloat(c, "sy")
	if !validY {
		return
	}

	cell := rs.session.Projector().ScreenToCell(sx, sy, rs.session.Camera())
	resp := gin.H{"cell": cell}
	if z := rs.session.Zone(); z != nil {
		resp["walkable"] = z.IsWalkable(cell.X, cell.Y)
		resp["layers"] = z.LayersAt(cell.X, cell.Y)
	}
	ok(c, resp)
}
