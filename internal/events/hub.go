package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leafsii/post-api/internal/posts"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

type MetricsInterface interface {
	IncrementConnections(ctx context.Context)
	DecrementConnections(ctx context.Context)
}

// Hub relays post change events from the broker to websocket clients.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	broker   Broker
	channel  string
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
	metrics  MetricsInterface
	mu       sync.RWMutex
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub(broker Broker, channel string, allowedOrigins []string, logger *zap.SugaredLogger, metrics MetricsInterface) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		broker:     broker,
		channel:    channel,
		logger:     logger,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// same-origin requests carry no Origin header
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Run subscribes to the broker and serves clients until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	feed, err := h.broker.Subscribe(ctx, h.channel)
	if err != nil {
		h.logger.Errorw("Event subscription failed; change feed disabled", "channel", h.channel, "error", err)
		feed = nil
	}

	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			h.logger.Infow("WebSocket hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.incr(ctx)
			h.logger.Debugw("Client registered", "remote", client.conn.RemoteAddr().String())

		case client := <-h.unregister:
			h.remove(ctx, client)

		case message, ok := <-feed:
			if !ok {
				feed = nil
				continue
			}
			h.fanOut(ctx, message)

		case message := <-h.broadcast:
			h.fanOut(ctx, message)
		}
	}
}

// Notify publishes ev on the broker. Delivery failures are logged only.
func (h *Hub) Notify(ctx context.Context, ev posts.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorw("Failed to marshal event", "error", err)
		return
	}

	// Publishing must outlive a cancelled request context.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := h.broker.Publish(pubCtx, h.channel, payload); err != nil {
		h.logger.Warnw("Failed to publish event; delivering locally", "type", ev.Type, "id", ev.ID, "error", err)
		select {
		case h.broadcast <- payload:
		default:
		}
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) fanOut(ctx context.Context, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// slow client
			delete(h.clients, client)
			close(client.send)
			h.decr(ctx)
		}
	}
}

func (h *Hub) remove(ctx context.Context, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.decr(ctx)
		h.logger.Debugw("Client unregistered")
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		h.decr(ctx)
	}
}

func (h *Hub) incr(ctx context.Context) {
	if h.metrics != nil {
		h.metrics.IncrementConnections(ctx)
	}
}

func (h *Hub) decr(ctx context.Context) {
	if h.metrics != nil {
		h.metrics.DecrementConnections(ctx)
	}
}

// HandleWebSocket upgrades the request and streams events to the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only services control frames; the feed is one-way.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Errorw("WebSocket error", "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ posts.Notifier = (*Hub)(nil)
