package eventbus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsExporter периодически переносит Stats шины в Prometheus.
// Экспортер опирается только на интерфейс EventBus.
type MetricsExporter struct {
	bus      EventBus
	interval time.Duration
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  bool

	mu   sync.Mutex
	prev Stats

	published prometheus.Counter
	consumed  prometheus.Counter
	dropped   prometheus.Counter
	inflight  prometheus.Gauge
}

// NewMetricsExporter создаёт экспортер и регистрирует метрики в reg.
// Цикл обновления не запускается до Start.
func NewMetricsExporter(bus EventBus, reg prometheus.Registerer) (*MetricsExporter, error) {
	me := &MetricsExporter{
		bus:      bus,
		interval: time.Second,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_published_total",
			Help:      "Общее число опубликованных сообщений.",
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_consumed_total",
			Help:      "Общее число доставленных сообщений подписчикам.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_dropped_total",
			Help:      "Сообщений, отброшенных из-за ошибок или ограничения back-pressure.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventbus",
			Name:      "messages_inflight",
			Help:      "Количество сообщений, находящихся в очереди (не доставленных).",
		}),
	}

	for _, c := range []prometheus.Collector{me.published, me.consumed, me.dropped, me.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return me, nil
}

// Start запускает обновление метрик раз в interval (0 - раз в секунду).
func (m *MetricsExporter) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	if interval > 0 {
		m.interval = interval
	}
	m.started = true
	go m.loop()
}

// Stop останавливает обновление метрик.
func (m *MetricsExporter) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		close(m.quit)
		if started {
			<-m.done
		}
	})
}

func (m *MetricsExporter) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer close(m.done)

	for {
		select {
		case <-ticker.C:
			m.Collect()
		case <-m.quit:
			return
		}
	}
}

// Collect снимает Stats и прибавляет к счётчикам приращение с прошлого раза.
func (m *MetricsExporter) Collect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.bus.Metrics()

	if d := stats.Published - m.prev.Published; stats.Published > m.prev.Published {
		m.published.Add(float64(d))
	}
	if d := stats.Consumed - m.prev.Consumed; stats.Consumed > m.prev.Consumed {
		m.consumed.Add(float64(d))
	}
	if d := stats.Dropped - m.prev.Dropped; stats.Dropped > m.prev.Dropped {
		m.dropped.Add(float64(d))
	}
	m.inflight.Set(float64(stats.InFlight))

	m.prev = stats
}
