package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/annel0/isoworld/internal/eventbus"
	"github.com/annel0/isoworld/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	streamBuf  = 64
)

// Отладочный поток доступен с любого origin
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleEvents отдаёт события шины в WebSocket по одному JSON-конверту
// на сообщение. Параметр type (можно повторять) фильтрует по типу.
// Медленный клиент теряет события, шину он не блокирует.
func (rs *RestServer) handleEvents(c *gin.Context) {
	if rs.bus == nil {
		fail(c, http.StatusServiceUnavailable, "шина событий не подключена")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Подписка до рукопожатия: клиент получает всё, что опубликовано после подключения
	out := make(chan *eventbus.Envelope, streamBuf)
	sub, err := rs.bus.Subscribe(ctx, eventbus.Filter{Types: c.QueryArray("type")}, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case out <- ev:
		default:
			logging.Debug("[WS] клиент %s не успевает, событие %s пропущено", c.ClientIP(), ev.EventType)
		}
	})
	if err != nil {
		fail(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer sub.Unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn("[WS] upgrade: %v", err)
		return
	}

	logging.Info("🔌 Подписчик потока событий %s", c.ClientIP())
	go readPump(conn, cancel)
	writePump(ctx, conn, out)
	logging.Info("🔌 Подписчик %s отключился", c.ClientIP())
}

// readPump читает только управляющие кадры и завершает поток при закрытии
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("[WS] чтение: %v", err)
			}
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, out <-chan *eventbus.Envelope) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
