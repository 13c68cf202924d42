package eventbus

import (
	"context"

	"github.com/annel0/isoworld/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог на уровне DEBUG.
// Функция неблокирующая; подписка живёт, пока не отменён ctx или не вызван Unsubscribe.
func StartLoggingListener(ctx context.Context, bus EventBus) (Subscription, error) {
	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {
		logging.Debug("[EventBus] %s %s src=%s prio=%d payload=%s", ev.ID, ev.EventType, ev.Source, ev.Priority, string(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	logging.Info("🪵 LoggingListener: подписка на все события активирована")
	return sub, nil
}
