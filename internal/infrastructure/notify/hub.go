// Package notify pushes server events to the websocket connections of a user.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	guuid "github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/speedread/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// heartbeat defaults
const (
	DefaultWriteWait = 10 * time.Second
	DefaultPongWait  = 30 * time.Second
)

const sendBuffer = 16

type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger
}

// Hub keeps the open connections of each user, a user may hold several
// (one per tab or device)
type Hub struct {
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration

	mu       sync.RWMutex
	clients  map[string]map[string]*client
	upgrader websocket.Upgrader
}

// NewHub origins limits browser connections, empty or "*" allows any origin
func NewHub(origins []string) *Hub {
	h := &Hub{
		WriteWait:    DefaultWriteWait,
		PongWait:     DefaultPongWait,
		PingInterval: DefaultPongWait * 9 / 10,
		clients:      map[string]map[string]*client{},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 3 * time.Second,
		CheckOrigin:      checkOrigin(origins),
	}
	return h
}

func checkOrigin(origins []string) func(r *http.Request) bool {
	allowed := map[string]bool{}
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(allowed) == 0 || allowed[origin]
	}
}

// Serve upgrades the request and registers the connection under userID.
// Inbound messages are discarded, the connection only carries pushes and
// the ping/pong heartbeat.
func (h *Hub) Serve(c echo.Context, userID string) error {
	logger := logging.ExtractLoggerFromContext(c.Request().Context())
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// upgrader already replied
		logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}

	cl := &client{
		id:     guuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: logger,
	}
	h.register(cl)
	logger.Debug("websocket connected", zap.String("user.id", userID), zap.String("ws.client_id", cl.id))

	go h.writeRoutine(cl)
	go h.readRoutine(cl)
	return nil
}

// Notify sends event as JSON to every connection of userID. Slow
// connections whose buffer is full are dropped.
func (h *Hub) Notify(userID string, event interface{}) {
	msg, err := json.Marshal(event)
	if err != nil {
		return
	}

	var slow []*client
	h.mu.RLock()
	for _, cl := range h.clients[userID] {
		select {
		case cl.send <- msg:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		cl.logger.Warn("dropping slow websocket client", zap.String("user.id", cl.userID), zap.String("ws.client_id", cl.id))
		h.unregister(cl)
	}
}

// Connections number of open connections of userID
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close disconnects everyone
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for _, cl := range conns {
			close(cl.send)
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[cl.userID]
	if !ok {
		conns = map[string]*client{}
		h.clients[cl.userID] = conns
	}
	conns[cl.id] = cl
}

// unregister closes the send channel once, the write routine then closes the connection
func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.clients[cl.userID]
	if _, ok := conns[cl.id]; !ok {
		return
	}
	delete(conns, cl.id)
	if len(conns) == 0 {
		delete(h.clients, cl.userID)
	}
	close(cl.send)
}

func (h *Hub) readRoutine(cl *client) {
	defer h.unregister(cl)
	cl.conn.SetReadLimit(512)
	cl.conn.SetReadDeadline(time.Now().Add(h.PongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(h.PongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeRoutine(cl *client) {
	ticker := time.NewTicker(h.PingInterval)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(h.WriteWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.WriteWait)); err != nil {
				return
			}
		}
	}
}
