package physics

import (
	"sync/atomic"
	"time"

	"github.com/annel0/isoworld/internal/logging"
	"github.com/annel0/isoworld/internal/metrics"
	"github.com/annel0/isoworld/internal/world"
)

// Validator оборачивает TryMove: настраиваемый порог края карты,
// режим без столкновений (отладка) и метрики по причинам решений.
type Validator struct {
	eps     float64
	free    atomic.Bool
	metrics *metrics.Engine
}

// ValidatorOption настраивает Validator
type ValidatorOption func(*Validator)

// WithEpsilon порог малого смещения; неположительное значение игнорируется
func WithEpsilon(eps float64) ValidatorOption {
	return func(v *Validator) {
		if eps > 0 {
			v.eps = eps
		}
	}
}

// WithMetrics писать решения в метрики
func WithMetrics(e *metrics.Engine) ValidatorOption {
	return func(v *Validator) { v.metrics = e }
}

// NewValidator создаёт валидатор с порогом DefaultEpsilon
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{eps: DefaultEpsilon}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Epsilon текущий порог
func (v *Validator) Epsilon() float64 { return v.eps }

// SetFreeMode включает/выключает режим без столкновений
func (v *Validator) SetFreeMode(on bool) {
	v.free.Store(on)
	logging.Info("🕊️ Режим без столкновений: %v", on)
}

// FreeMode включён ли режим без столкновений
func (v *Validator) FreeMode() bool { return v.free.Load() }

// Move проверяет перемещение сущности entity
func (v *Validator) Move(t Terrain, entity string, pos Position, dx, dy float64) MoveResult {
	var res MoveResult
	if v.free.Load() {
		res = v.freeMove(t, pos, dx, dy)
	} else {
		start := time.Now()
		res = TryMoveEps(t, pos, dx, dy, v.eps)
		v.metrics.ObserveResolve(time.Since(start))
	}

	v.metrics.MoveObserved(string(res.Reason), res.Accepted)
	if res.Accepted && res.CellChanged(pos) {
		logging.LogEntityMovement(entity, pos.X, pos.Y, res.X, res.Y, res.Layer, string(res.Reason))
	} else if !res.Accepted {
		logging.Trace("Entity %s blocked at (%.2f,%.2f) layer:%d reason:%s", entity, pos.X, pos.Y, pos.Layer, res.Reason)
	}
	return res
}

// freeMove принимает любое смещение. Слой подстраивается под самый
// высокий проходимый слой клетки, если он есть.
func (v *Validator) freeMove(t Terrain, pos Position, dx, dy float64) MoveResult {
	next := Position{X: pos.X + dx, Y: pos.Y + dy, Layer: pos.Layer}
	cell := next.Cell()
	if layers := t.WalkableLayers(cell.X, cell.Y); len(layers) > 0 {
		next.Layer = layers[len(layers)-1]
	} else if !world.HasLayer(next.Layer) {
		next.Layer = world.LayerGround
	}
	return accepted(next, ReasonFree)
}
