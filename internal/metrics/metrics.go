// Package metrics содержит Prometheus-метрики движка: перемещения по причинам,
// загрузки зон, подстановки точек появления и задержку резолвера слоёв.
//
// Все методы безопасны для nil *Engine: компоненты, созданные без метрик
// (например, в тестах), просто ничего не пишут.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace префикс всех метрик движка
const Namespace = "isoworld"

// Engine набор метрик движка
type Engine struct {
	moves          *prometheus.CounterVec
	zoneLoads      *prometheus.CounterVec
	mapFallbacks   *prometheus.CounterVec
	spawnSubs      *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	falls          prometheus.Counter
	resolveLatency prometheus.Histogram
	zoneLayers     prometheus.Gauge
}

// NewEngine создаёт метрики и регистрирует их в reg.
func NewEngine(reg prometheus.Registerer) (*Engine, error) {
	e := &Engine{
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "moves_total",
			Help:      "Попытки перемещения по причине решения.",
		}, []string{"reason", "accepted"}),
		zoneLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "zone_loads_total",
			Help:      "Загрузки зон.",
		}, []string{"zone"}),
		mapFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "map_load_fallbacks_total",
			Help:      "Карты, заменённые сеткой по умолчанию из-за ошибки загрузки.",
		}, []string{"zone"}),
		spawnSubs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "spawn_substitutions_total",
			Help:      "Непроходимые точки появления, заменённые или удалённые.",
		}, []string{"zone", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transitions_total",
			Help:      "Срабатывания точек перехода.",
		}, []string{"from", "to"}),
		falls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "falls_total",
			Help:      "Падения сущностей с карты.",
		}),
		resolveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "layer_resolve_seconds",
			Help:      "Длительность разрешения слоя при перемещении.",
			Buckets:   []float64{1e-7, 5e-7, 1e-6, 5e-6, 1e-5, 5e-5, 1e-4},
		}),
		zoneLayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "zone_layers",
			Help:      "Количество слоёв активной зоны.",
		}),
	}

	collectors := []prometheus.Collector{
		e.moves, e.zoneLoads, e.mapFallbacks, e.spawnSubs,
		e.transitions, e.falls, e.resolveLatency, e.zoneLayers,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// MustNewEngine как NewEngine, но паникует при ошибке регистрации
func MustNewEngine(reg prometheus.Registerer) *Engine {
	e, err := NewEngine(reg)
	if err != nil {
		panic(err)
	}
	return e
}

// MoveObserved учитывает решение валидатора перемещения
func (e *Engine) MoveObserved(reason string, accepted bool) {
	if e == nil {
		return
	}
	e.moves.WithLabelValues(reason, strconv.FormatBool(accepted)).Inc()
}

// ZoneLoaded учитывает загрузку зоны
func (e *Engine) ZoneLoaded(zone string, layers int, fallback bool) {
	if e == nil {
		return
	}
	e.zoneLoads.WithLabelValues(zone).Inc()
	e.zoneLayers.Set(float64(layers))
	if fallback {
		e.mapFallbacks.WithLabelValues(zone).Inc()
	}
}

// SpawnSubstituted учитывает подстановку (или удаление) точки появления
func (e *Engine) SpawnSubstituted(zone string, dropped bool) {
	if e == nil {
		return
	}
	outcome := "moved"
	if dropped {
		outcome = "dropped"
	}
	e.spawnSubs.WithLabelValues(zone, outcome).Inc()
}

// TransitionTriggered учитывает переход между картами
func (e *Engine) TransitionTriggered(from, to string) {
	if e == nil {
		return
	}
	e.transitions.WithLabelValues(from, to).Inc()
}

// EntityFell учитывает падение с карты
func (e *Engine) EntityFell() {
	if e == nil {
		return
	}
	e.falls.Inc()
}

// ObserveResolve записывает длительность разрешения слоя
func (e *Engine) ObserveResolve(d time.Duration) {
	if e == nil {
		return
	}
	e.resolveLatency.Observe(d.Seconds())
}
