package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"

	"github.com/annel0/isoworld/internal/logging"
)

// subjectPrefix события публикуются в subject isoworld.<тип>
const subjectPrefix = "isoworld"

// JetStreamBus реализует EventBus поверх NATS JetStream.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	published uint64
	consumed  uint64
	dropped   uint64
}

// NewJetStreamBus подключается к кластеру NATS и гарантирует наличие стрима.
// url: nats://127.0.0.1:4222, stream: "ISOWORLD".
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "ISOWORLD"
	}

	nc, err := nats.Connect(url, nats.Name("isoworld"), nats.Timeout(3*time.Second))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		_ = nc.Drain()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err = js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{subjectPrefix + ".*"},
			Retention: nats.LimitsPolicy,
			MaxAge:    retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			_ = nc.Drain()
			return nil, fmt.Errorf("add stream: %w", err)
		}
	}

	logging.Info("📡 JetStream: стрим %s на %s", stream, url)
	return &JetStreamBus{nc: nc, js: js, stream: stream}, nil
}

func subjectFor(eventType string) string {
	return subjectPrefix + "." + eventType
}

// Publish сериализует Envelope в JSON и публикует в subject isoworld.<type>.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}

	if _, err = jb.js.Publish(subjectFor(ev.EventType), data, nats.Context(ctx)); err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return fmt.Errorf("jetstream publish %s: %w", ev.EventType, err)
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

// Subscribe создаёт durable consumer и вызывает handler асинхронно.
// При нескольких типах в фильтре подписка идёт на все subjects, лишнее отсеивается.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := subjectPrefix + ".*"
	if len(f.Types) == 1 {
		subj = subjectFor(f.Types[0])
	}

	durable := nats.Durable("sub_" + uuid.NewString()[:8])

	natSub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logging.Warn("[EventBus] повреждённое сообщение %s: %v", msg.Subject, err)
			atomic.AddUint64(&jb.dropped, 1)
			_ = msg.Ack()
			return
		}
		if matchFilter(&ev, f) && ctx.Err() == nil {
			h(ctx, &ev)
			atomic.AddUint64(&jb.consumed, 1)
		}
		_ = msg.Ack()
	}, nats.ManualAck(), durable, nats.AckWait(30*time.Second))
	if err != nil {
		return nil, err
	}

	return &jetSub{natSub}, nil
}

// jetSub обёртка вокруг *nats.Subscription чтобы удовлетворить наш интерфейс.
type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics возвращает текущие метрики.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
		InFlight:  0, // очередь держит сам JetStream
	}
}

// Close дожидается отправки буферов и закрывает соединение
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
