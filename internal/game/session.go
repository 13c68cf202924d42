// Package game связывает зоны, проверку движения, хранилище позиций и
// события в один явный контекст игровой сессии.
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/isoworld/internal/eventbus"
	"github.com/annel0/isoworld/internal/iso"
	"github.com/annel0/isoworld/internal/logging"
	"github.com/annel0/isoworld/internal/metrics"
	"github.com/annel0/isoworld/internal/physics"
	"github.com/annel0/isoworld/internal/render"
	"github.com/annel0/isoworld/internal/storage"
	"github.com/annel0/isoworld/internal/world"
)

// DefaultSpawnKey точка появления игрока, она же запасная для переходов
// без target_spawn
const DefaultSpawnKey = "player"

// Options зависимости сессии; нулевые значения заменяются рабочими умолчаниями
type Options struct {
	Entity    string
	Validator *physics.Validator
	Repo      storage.PositionRepo
	Bus       eventbus.EventBus
	Metrics   *metrics.Engine
	Projector render.Projector
	Viewport  render.Viewport
}

// Session - состояние одного игрока: активная зона и позиция.
// Глобального состояния нет, всё передаётся через Session.
type Session struct {
	manager   *world.Manager
	validator *physics.Validator
	repo      storage.PositionRepo
	bus       eventbus.EventBus
	metrics   *metrics.Engine
	projector render.Projector
	viewport  render.Viewport
	entity    string

	mu  sync.Mutex // игровой цикл и отладочный API двигают одну позицию
	pos physics.Position
}

// StepResult итог шага
type StepResult struct {
	Move       physics.MoveResult      `json:"move"`
	Transition *world.TransitionPoint `json:"transition,omitempty"`
	Zone       string                  `json:"zone"`
}

// NewSession создаёт сессию поверх менеджера зон
func NewSession(manager *world.Manager, opts Options) *Session {
	if opts.Entity == "" {
		opts.Entity = DefaultSpawnKey
	}
	if opts.Validator == nil {
		opts.Validator = physics.NewValidator(physics.WithMetrics(opts.Metrics))
	}
	if opts.Repo == nil {
		opts.Repo = storage.NewMemoryPositionRepo()
	}
	if opts.Projector.Tile.Width == 0 || opts.Projector.Tile.Height == 0 {
		opts.Projector = render.NewProjector(iso.DefaultTileSize(), opts.Viewport.Width, opts.Viewport.Height)
	}

	return &Session{
		manager:   manager,
		validator: opts.Validator,
		repo:      opts.Repo,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
		projector: opts.Projector,
		viewport:  opts.Viewport,
		entity:    opts.Entity,
		pos:       physics.NewPosition(0, 0),
	}
}

// Entity ключ сущности игрока
func (s *Session) Entity() string { return s.entity }

// Manager менеджер зон сессии
func (s *Session) Manager() *world.Manager { return s.manager }

// Validator валидатор движения сессии
func (s *Session) Validator() *physics.Validator { return s.validator }

// Zone активная зона (nil до первого Spawn)
func (s *Session) Zone() *world.Zone { return s.manager.Current() }

// Position текущая позиция игрока
func (s *Session) Position() physics.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Spawn помещает игрока в мир. Если есть сохранённая позиция - загружается
// её карта и позиция восстанавливается; иначе игрок появляется на карте
// startMap в точке key.
func (s *Session) Spawn(ctx context.Context, startMap, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, found, err := s.repo.Load(ctx, s.entity)
	if err != nil {
		logging.Warn("⚠️ Позиция %s не загружена: %v", s.entity, err)
		found = false
	}

	if found {
		z, err := s.zoneFor(ctx, saved.Map)
		if errors.Is(err, world.ErrInvalidZoneName) {
			logging.Warn("⚠️ Сохранённая карта %q недоступна: %v, старт с %s", saved.Map, err, startMap)
			return s.spawnFresh(ctx, startMap, key)
		}
		if err != nil {
			return err
		}
		if pos, ok := restorePoint(z, saved); ok {
			s.enter(ctx, z, pos)
			logging.Info("📍 %s восстановлен на %s (%.2f, %.2f) слой %d", s.entity, saved.Map, pos.X, pos.Y, pos.Layer)
			return nil
		}
		logging.Warn("⚠️ Сохранённая клетка %s на %s непроходима, появление в точке %q", s.entity, saved.Map, key)
		return s.spawnIn(ctx, z, key)
	}
	return s.spawnFresh(ctx, startMap, key)
}

// spawnFresh первое появление: карта startMap, точка key
func (s *Session) spawnFresh(ctx context.Context, startMap, key string) error {
	z, err := s.zoneFor(ctx, startMap)
	if err != nil {
		return err
	}
	if err := s.spawnIn(ctx, z, key); err != nil {
		return err
	}
	return s.saveLocked(ctx)
}

// restorePoint сохранённая позиция, если на её клетке можно стоять
func restorePoint(z *world.Zone, saved storage.SavedPosition) (physics.Position, bool) {
	pos := physics.Position{X: saved.X, Y: saved.Y, Layer: saved.Layer}
	cell := pos.Cell()
	if !z.IsWalkableOn(pos.Layer, cell.X, cell.Y) {
		layer, ok := z.HighestWalkableLayer(cell.X, cell.Y)
		if !ok {
			return physics.Position{}, false
		}
		pos.Layer = layer
	}
	return pos, true
}

// zoneFor активная зона, если это карта name, иначе новая неактивная зона
func (s *Session) zoneFor(ctx context.Context, name string) (*world.Zone, error) {
	if z := s.manager.Current(); z != nil && z.Name() == name {
		return z, nil
	}
	return s.manager.Prepare(ctx, name)
}

// spawnIn находит точку key в зоне z и только после этого делает зону
// активной. При ошибке активная зона и позиция не меняются.
func (s *Session) spawnIn(ctx context.Context, z *world.Zone, key string) error {
	pos, err := s.spawnPoint(z, key)
	if err != nil {
		return err
	}
	s.enter(ctx, z, pos)
	return nil
}

// enter делает зону активной и ставит игрока в pos
func (s *Session) enter(ctx context.Context, z *world.Zone, pos physics.Position) {
	s.manager.Commit(ctx, z)
	s.pos = pos
}

// spawnPoint позиция точки key; при её отсутствии - точки игрока.
// Если нет и её, (0,0) на самом высоком проходимом слое.
func (s *Session) spawnPoint(z *world.Zone, key string) (physics.Position, error) {
	if key == "" {
		key = DefaultSpawnKey
	}

	sp, err := z.Spawn(key)
	if errors.Is(err, world.ErrSpawnNotFound) && key != DefaultSpawnKey {
		logging.Warn("⚠️ %v, используется точка %q", err, DefaultSpawnKey)
		sp, err = z.Spawn(DefaultSpawnKey)
	}
	if errors.Is(err, world.ErrSpawnNotFound) {
		// Нет ни одной точки: начало координат, если там можно стоять
		if layer, ok := z.HighestWalkableLayer(0, 0); ok {
			logging.Warn("⚠️ На %s нет точки %q, появление в (0, 0)", z.Name(), DefaultSpawnKey)
			sp, err = world.SpawnPoint{Key: DefaultSpawnKey, Layer: layer}, nil
		}
	}
	if err != nil {
		return physics.Position{}, fmt.Errorf("появление %s на %s: %w", s.entity, z.Name(), err)
	}

	logging.Info("✨ %s появляется на %s в точке %q (%d, %d) слой %d", s.entity, z.Name(), sp.Key, sp.X, sp.Y, sp.Layer)
	return physics.Position{X: float64(sp.X), Y: float64(sp.Y), Layer: sp.Layer}, nil
}

// Step двигает игрока на (dx, dy). Если игрок перешёл в клетку перехода,
// активируется переход на другую карту.
func (s *Session) Step(ctx context.Context, dx, dy float64) (StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	z, err := s.manager.MustCurrent()
	if err != nil {
		return StepResult{}, err
	}

	from := s.pos
	res := s.validator.Move(z, s.entity, from, dx, dy)
	out := StepResult{Move: res, Zone: z.Name()}
	if !res.Accepted {
		return out, nil
	}
	s.pos = res.Position()

	if !res.CellChanged(from) {
		return out, nil
	}

	cell := s.pos.Cell()
	tp, ok := z.TransitionAt(cell.X, cell.Y)
	if !ok {
		return out, nil
	}

	out.Transition = &tp
	if err := s.transition(ctx, z, tp); err != nil {
		return out, err
	}
	out.Zone = tp.TargetMap
	return out, nil
}

// transition переносит игрока по точке перехода
func (s *Session) transition(ctx context.Context, from *world.Zone, tp world.TransitionPoint) error {
	ctx = eventbus.WithCorrelationID(ctx, uuid.NewString())
	cell := s.pos.Cell()

	logging.Info("🚪 %s: переход %s (%d, %d) → %s/%s", s.entity, from.Name(), cell.X, cell.Y, tp.TargetMap, tp.TargetSpawn)
	s.metrics.TransitionTriggered(from.Name(), tp.TargetMap)
	s.emit(ctx, eventbus.EventTransitionTriggered, eventbus.TransitionTriggered{
		Entity:      s.entity,
		FromMap:     from.Name(),
		X:           cell.X,
		Y:           cell.Y,
		TargetMap:   tp.TargetMap,
		TargetSpawn: tp.TargetSpawn,
	})

	z, err := s.manager.Prepare(ctx, tp.TargetMap)
	if err != nil {
		return err
	}
	if err := s.spawnIn(ctx, z, tp.TargetSpawn); err != nil {
		return err
	}
	return s.saveLocked(ctx)
}

// Fall - игрок упал с карты: появление на карте падения зоны
// (по умолчанию на той же) в точке игрока.
func (s *Session) Fall(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	z, err := s.manager.MustCurrent()
	if err != nil {
		return err
	}

	target := z.FallTarget()
	ctx = eventbus.WithCorrelationID(ctx, uuid.NewString())
	logging.Info("🕳️ %s падает с %s, появление на %s", s.entity, z.Name(), target)
	s.metrics.EntityFell()
	s.emit(ctx, eventbus.EventEntityFell, eventbus.EntityFell{
		Entity:    s.entity,
		FromMap:   z.Name(),
		TargetMap: target,
		X:         s.pos.X,
		Y:         s.pos.Y,
		Layer:     s.pos.Layer,
	})

	nz, err := s.manager.Prepare(ctx, target)
	if err != nil {
		return err
	}
	if err := s.spawnIn(ctx, nz, DefaultSpawnKey); err != nil {
		return err
	}
	return s.saveLocked(ctx)
}

// Travel загружает карту name и ставит игрока в точку key (отладка)
func (s *Session) Travel(ctx context.Context, name, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	z, err := s.manager.Prepare(ctx, name)
	if err != nil {
		return err
	}
	if err := s.spawnIn(ctx, z, key); err != nil {
		return err
	}
	return s.saveLocked(ctx)
}

// Save сохраняет текущую карту и позицию
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Session) saveLocked(ctx context.Context) error {
	z := s.manager.Current()
	if z == nil {
		return world.ErrNoZone
	}
	err := s.repo.Save(ctx, s.entity, storage.SavedPosition{
		Map:   z.Name(),
		X:     s.pos.X,
		Y:     s.pos.Y,
		Layer: s.pos.Layer,
	})
	if err != nil {
		return fmt.Errorf("сохранение позиции %s: %w", s.entity, err)
	}
	return nil
}

// ScreenPosition экранные координаты игрока при камере cam
func (s *Session) ScreenPosition(cam render.Camera) (float64, float64) {
	pos := s.Position()
	return s.projector.Project(pos.X, pos.Y, layerForDrawing(pos.Layer), cam)
}

// Camera камера, центрированная на игроке
func (s *Session) Camera() render.Camera {
	pos := s.Position()
	return render.CenterOn(s.projector, s.viewport, pos.X, pos.Y, layerForDrawing(pos.Layer))
}

// Projector проектор сессии
func (s *Session) Projector() render.Projector { return s.projector }

// layerForDrawing игрок без слоя рисуется на земле
func layerForDrawing(layer int) int {
	if !world.HasLayer(layer) {
		return world.LayerGround
	}
	return layer
}

func (s *Session) emit(ctx context.Context, eventType string, payload interface{}) {
	if _, err := eventbus.Emit(ctx, s.bus, eventType, payload); err != nil {
		logging.Warn("[GAME] событие %s не опубликовано: %v", eventType, err)
	}
}
