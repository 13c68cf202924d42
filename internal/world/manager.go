package world

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/codes"

	"github.com/annel0/isoworld/internal/eventbus"
	"github.com/annel0/isoworld/internal/logging"
	"github.com/annel0/isoworld/internal/metrics"
	"github.com/annel0/isoworld/internal/observability"
	"github.com/annel0/isoworld/internal/tilemap"
)

// ErrInvalidZoneName имя карты не может быть путём
var ErrInvalidZoneName = errors.New("недопустимое имя карты")

// Source строит зону по имени карты
type Source interface {
	Build(ctx context.Context, name string) (*Zone, error)
}

// FileSource читает карты <MapsDir>/<имя>.json и берёт таблицы зон из Tables.
// Карта без таблицы загружается без точек появления и переходов.
type FileSource struct {
	MapsDir     string
	Tables      map[string]ZoneTable
	Rules       *tilemap.WalkRules
	SpawnRadius int
}

// ValidateZoneName отсекает имена, которые выводят за пределы каталога карт
func ValidateZoneName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidZoneName, name)
	}
	return nil
}

// MapPath путь к файлу карты
func (s *FileSource) MapPath(name string) string {
	return filepath.Join(s.MapsDir, name+".json")
}

// Build загружает карту; ошибка чтения карты не фатальна - подставляется сетка по умолчанию.
func (s *FileSource) Build(ctx context.Context, name string) (*Zone, error) {
	if err := ValidateZoneName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tiles, fallback := tilemap.LoadOrDefault(s.MapPath(name), s.Rules)
	z := NewZone(name, tiles, s.Tables[name], s.SpawnRadius)
	z.fallback = fallback
	return z, nil
}

// Manager хранит активную зону. Чтение (Current) не блокируется:
// зона подменяется целиком через atomic.Pointer, а держатели старого
// указателя продолжают видеть согласованную карту.
type Manager struct {
	source  Source
	current atomic.Pointer[Zone]
	mu      sync.Mutex // сериализует смены зоны

	bus     eventbus.EventBus
	metrics *metrics.Engine
}

// ManagerOption настраивает Manager
type ManagerOption func(*Manager)

// WithEventBus публиковать события смены зоны в шину
func WithEventBus(bus eventbus.EventBus) ManagerOption {
	return func(m *Manager) { m.bus = bus }
}

// WithMetrics писать метрики загрузки зон
func WithMetrics(e *metrics.Engine) ManagerOption {
	return func(m *Manager) { m.metrics = e }
}

// NewManager создаёт менеджер без активной зоны
func NewManager(source Source, opts ...ManagerOption) *Manager {
	m := &Manager{source: source}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current активная зона или nil, если ни одна ещё не загружена
func (m *Manager) Current() *Zone {
	return m.current.Load()
}

// MustCurrent активная зона или ErrNoZone
func (m *Manager) MustCurrent() (*Zone, error) {
	z := m.current.Load()
	if z == nil {
		return nil, ErrNoZone
	}
	return z, nil
}

// ChangeZone строит новую зону и делает её активной.
// Старая зона переходит в состояние Replaced.
func (m *Manager) ChangeZone(ctx context.Context, name string) (*Zone, error) {
	z, err := m.Prepare(ctx, name)
	if err != nil {
		return nil, err
	}
	m.Commit(ctx, z)
	return z, nil
}

// Prepare строит зону name, не делая её активной. Вызывающий может
// проверить зону (например, найти точку появления) и затем вызвать Commit.
func (m *Manager) Prepare(ctx context.Context, name string) (*Zone, error) {
	ctx, span := observability.StartSpan(ctx, "world.PrepareZone", "zone", name)
	defer span.End()

	z, err := m.source.Build(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("смена зоны на %s: %w", name, err)
	}
	return z, nil
}

// Commit делает подготовленную зону активной и публикует события смены
func (m *Manager) Commit(ctx context.Context, z *Zone) {
	ctx, span := observability.StartSpan(ctx, "world.ChangeZone", "zone", z.Name())
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	name := z.Name()
	old := m.current.Swap(z)
	if old == z {
		return
	}
	from := ""
	if old != nil {
		old.markReplaced()
		from = old.Name()
	}

	stats := z.tiles.Stats()
	logging.Info("🗺️ Зона %s загружена: %dx%d, слоёв %d, точек появления %d, переходов %d",
		name, z.tiles.Width, z.tiles.Height, stats.Layers, len(z.spawns), len(z.transList))

	m.metrics.ZoneLoaded(name, stats.Layers, z.fallback)
	for _, sub := range z.substitutions {
		m.metrics.SpawnSubstituted(name, sub.Dropped)
		m.emit(ctx, eventbus.EventSpawnSubstituted, eventbus.SpawnSubstituted{
			Map:     name,
			Key:     sub.Key,
			FromX:   sub.From.X,
			FromY:   sub.From.Y,
			ToX:     sub.To.X,
			ToY:     sub.To.Y,
			Dropped: sub.Dropped,
		})
	}
	m.emit(ctx, eventbus.EventZoneChanged, eventbus.ZoneChanged{From: from, To: name, Fallback: z.fallback})
}

// emit публикует событие; ошибка шины не мешает смене зоны
func (m *Manager) emit(ctx context.Context, eventType string, payload interface{}) {
	if _, err := eventbus.Emit(ctx, m.bus, eventType, payload); err != nil {
		logging.Warn("[WORLD] событие %s не опубликовано: %v", eventType, err)
	}
}
