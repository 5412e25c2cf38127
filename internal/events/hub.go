package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Типы событий
const (
	TradeCreated     = "trade.created"
	TradeUpdated     = "trade.updated"
	TradeDeleted     = "trade.deleted"
	TradesImported   = "trade.imported"
	JournalActivated = "journal.activated"
	JournalBlown     = "journal.blown"
	JournalPassed    = "journal.passed"
	JournalDeleted   = "journal.deleted"
	SnapshotCreated  = "snapshot.created"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Event сообщение, отправляемое клиентам пользователя
type Event struct {
	Type      string    `json:"type"`
	JournalID int       `json:"journalId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher рассылает события пользователю
type Publisher interface {
	Publish(userID int, e Event)
}

type client struct {
	userID int
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub хранит websocket-подключения по пользователям
type Hub struct {
	mu       sync.RWMutex
	clients  map[int]map[*client]struct{}
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHub создает хаб. Проверка Origin отключена, доступ ограничивает токен.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[int]map[*client]struct{}),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeWS переводит запрос в websocket и подписывает его на события пользователя
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	h.Subscribe(userID, conn)
}

// Subscribe регистрирует подключение и запускает его обработчики
func (h *Hub) Subscribe(userID int, conn *websocket.Conn) {
	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("WebSocket subscribed", slog.Int("user_id", userID))

	go h.writePump(c)
	go h.readPump(c)
}

// Publish рассылает событие всем подключениям пользователя.
// Клиент с переполненным буфером отключается.
func (h *Hub) Publish(userID int, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	msg, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("Failed to encode event", slog.String("type", e.Type), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Dropping slow websocket client", slog.Int("user_id", userID))
			c.close()
		}
	}
}

// Count возвращает число подключений пользователя
func (h *Hub) Count(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[userID])
}

// Close отключает всех клиентов
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, set := range h.clients {
		for c := range set {
			c.close()
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[c.userID]
	if _, ok := set[c]; !ok {
		return
	}

	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}

	h.logger.Debug("WebSocket unsubscribed", slog.Int("user_id", c.userID))
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)

			return
		}
	}
}

// readPump читает только служебные кадры; входящие сообщения игнорируются
func (h *Hub) readPump(c *client) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
