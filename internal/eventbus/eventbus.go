// Package eventbus доставляет доменные события движка (смена зоны,
// подстановка точки появления, переходы, падения) подписчикам:
// логгеру, websocket-потоку отладочного API и внешним сервисам через JetStream.
package eventbus

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrBusClosed публикация в закрытую шину
var ErrBusClosed = errors.New("шина событий закрыта")

// Envelope описывает универсальный контейнер события.
type Envelope struct {
	ID            string            `json:"id"`             // UUID
	Timestamp     time.Time         `json:"timestamp"`      // Время создания события (UTC)
	Source        string            `json:"source"`         // Имя источника
	EventType     string            `json:"event_type"`     // ZoneChanged, EntityFell...
	Version       int               `json:"version"`        // Схема полезной нагрузки
	CorrelationID string            `json:"correlation_id"` // Для связывания цепочек (переход -> смена зоны)
	Priority      int               `json:"priority"`       // 0=Low … 9=Critical
	Payload       []byte            `json:"payload"`        // JSON полезной нагрузки
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Если пусто, все типы.
	Sources []string // Если пусто, все источники.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64 `json:"published"`
	Consumed  uint64 `json:"consumed"`
	Dropped   uint64 `json:"dropped"`
	InFlight  int    `json:"in_flight"`
}

// EventBus определяет абстракцию шины событий.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

//================ In-Memory implementation =================//

// highPriority события с таким приоритетом не отбрасываются при переполнении
const highPriority = 5

type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]subscriber
	nextID      int
	statsMu     sync.Mutex
	stats       Stats
	buffer      chan *Envelope
	quit        chan struct{}
	closeOnce   sync.Once
	done        chan struct{}
}

type subscriber struct {
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMemoryBus создаёт in-memory шину с указанным буфером.
// Подписчики получают события в порядке публикации.
func NewMemoryBus(capacity int) EventBus {
	mb := newMemoryBus(capacity)
	go mb.dispatchLoop()
	return mb
}

func newMemoryBus(capacity int) *memoryBus {
	if capacity < 0 {
		capacity = 0
	}
	return &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, capacity),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (mb *memoryBus) isClosed() bool {
	select {
	case <-mb.quit:
		return true
	default:
		return false
	}
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	if ev == nil {
		return errors.New("пустое событие")
	}
	if mb.isClosed() {
		return ErrBusClosed
	}

	select {
	case mb.buffer <- ev:
		mb.count(&mb.stats.Published)
		return nil
	default:
	}

	// Буфер заполнен: отбрасываем низкий приоритет
	if ev.Priority < highPriority {
		mb.count(&mb.stats.Dropped)
		return nil
	}

	// Для высокого приоритета ждём места или отмены контекста
	select {
	case mb.buffer <- ev:
		mb.count(&mb.stats.Published)
		return nil
	case <-mb.quit:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *memoryBus) count(counter *uint64) {
	mb.statsMu.Lock()
	*counter++
	mb.statsMu.Unlock()
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	if h == nil {
		return nil, errors.New("пустой обработчик")
	}
	if mb.isClosed() {
		return nil, ErrBusClosed
	}

	mb.mu.Lock()
	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	mb.subscribers[id] = subscriber{filter: f, handler: h, ctx: cctx, cancel: cancel}
	mb.mu.Unlock()

	return &memSub{bus: mb, id: id}, nil
}

func (mb *memoryBus) Metrics() Stats {
	mb.statsMu.Lock()
	s := mb.stats
	mb.statsMu.Unlock()
	s.InFlight = len(mb.buffer)
	return s
}

// Close прекращает приём событий, доставляет то, что уже в очереди,
// и отменяет контексты подписчиков.
func (mb *memoryBus) Close() error {
	mb.closeOnce.Do(func() {
		close(mb.quit)
	})
	return nil
}

// dispatchLoop рассылает события подписчикам.
func (mb *memoryBus) dispatchLoop() {
	defer close(mb.done)

	for {
		select {
		case ev := <-mb.buffer:
			mb.deliver(ev)
		case <-mb.quit:
			for {
				select {
				case ev := <-mb.buffer:
					mb.deliver(ev)
				default:
					mb.cancelAll()
					return
				}
			}
		}
	}
}

func (mb *memoryBus) deliver(ev *Envelope) {
	mb.mu.RLock()
	ids := make([]int, 0, len(mb.subscribers))
	for id := range mb.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]subscriber, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, mb.subscribers[id])
	}
	mb.mu.RUnlock()

	for _, sub := range subs {
		if !matchFilter(ev, sub.filter) || sub.ctx.Err() != nil {
			continue
		}
		sub.handler(sub.ctx, ev)
		mb.count(&mb.stats.Consumed)
	}
}

func (mb *memoryBus) cancelAll() {
	mb.mu.Lock()
	for id, sub := range mb.subscribers {
		sub.cancel()
		delete(mb.subscribers, id)
	}
	mb.mu.Unlock()
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		sub.cancel()
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
}
