package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ProgressHub fans pipeline progress events out to websocket clients
// ⭐ SSOT: 진행 상황 브로드캐스트는 이 허브에서만
type ProgressHub struct {
	mu      sync.RWMutex
	clients map[*progressClient]struct{}
	logger  *logger.Logger
}

type progressClient struct {
	conn *websocket.Conn
	send chan contracts.ProgressEvent
	once sync.Once
}

func (c *progressClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewProgressHub creates an empty hub
func NewProgressHub(log *logger.Logger) *ProgressHub {
	return &ProgressHub{
		clients: make(map[*progressClient]struct{}),
		logger:  log.Module("progress"),
	}
}

// Publish delivers e to every client without blocking. Slow clients drop events.
func (h *ProgressHub) Publish(e contracts.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			h.logger.Debug("Dropping progress event for slow client")
		}
	}
}

// Clients returns the number of connected clients
func (h *ProgressHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *ProgressHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// ServeWS upgrades the request and streams progress events
// GET /ws/progress
func (h *ProgressHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &progressClient{conn: conn, send: make(chan contracts.ProgressEvent, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("clients", h.Clients()).Debug("Progress client connected")

	ctx, cancel := context.WithCancel(context.Background())
	go h.writeLoop(ctx, c)
	h.readLoop(c)
	cancel()
}

func (h *ProgressHub) remove(c *progressClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readLoop discards client messages and returns when the connection closes
func (h *ProgressHub) readLoop(c *progressClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
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

func (h *ProgressHub) writeLoop(ctx context.Context, c *progressClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
