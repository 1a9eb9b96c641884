package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout  = 5 * time.Second
	clientBacklog = 16
)

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans status messages out to every connected websocket client. A
// client that falls behind loses messages instead of stalling the others.
type Hub struct {
	status func(ctx context.Context) any
	notify chan struct{}

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func NewHub(status func(ctx context.Context) any) *Hub {
	return &Hub{
		status:  status,
		notify:  make(chan struct{}, 1),
		clients: make(map[*wsClient]struct{}),
	}
}

// Notify schedules a status broadcast. Calls made while one is pending are
// coalesced.
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Run sends a status broadcast for every Notify until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.notify:
			h.Broadcast("status", h.status(ctx))
		}
	}
}

func (h *Hub) Broadcast(msgType string, data any) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		logger.With(zap.String("type", msgType), zap.Error(err)).Warn("Failed to encode websocket message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			logger.With(zap.String("type", msgType)).Debug("Websocket client is behind - dropping message")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		logger.With(zap.Error(err)).Debug("Websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	c := &wsClient{conn: conn, send: make(chan []byte, clientBacklog)}
	ctx := conn.CloseRead(r.Context())

	// registered before the first status is built so later changes queue up
	h.add(c)
	defer h.remove(c)

	hello, err := json.Marshal(Message{Type: "status", Data: h.status(ctx)})
	if err != nil {
		return
	}
	if err := write(ctx, conn, hello); err != nil {
		return
	}
	logger.With(zap.Int("clients", h.ClientCount())).Info("Websocket client connected")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Websocket client disconnected")
			return
		case payload := <-c.send:
			if err := write(ctx, conn, payload); err != nil {
				logger.With(zap.Error(err)).Debug("Websocket write failed")
				return
			}
		}
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func write(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
