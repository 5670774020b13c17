// Package websocket streams render events to browser clients.
//
// Hub subscribes to the render event bus through its Publish method and fans
// each event out to every connected client as a JSON text message. Slow
// clients miss messages rather than slowing the render path down.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/frewsxcv/template-tally/internal/logging"
	"github.com/frewsxcv/template-tally/internal/types"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Message is the JSON envelope written to clients.
type Message struct {
	Type      string            `json:"type"`
	Event     types.RenderEvent `json:"event"`
	Template  string            `json:"template,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and broadcasts render events to them.
type Hub struct {
	clientsMutex sync.RWMutex
	clients      map[*client]struct{}

	originPatterns []string
	identify       func(absPath string) (types.TemplateID, error)
	logger         logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(logger logging.Logger) Option {
	return func(h *Hub) {
		h.logger = logger.WithComponent("websocket")
	}
}

// WithOriginPatterns sets the host patterns allowed to connect cross-origin.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) {
		h.originPatterns = append([]string(nil), patterns...)
	}
}

// WithIdentifier makes messages carry the normalized template identifier.
func WithIdentifier(identify func(absPath string) (types.TemplateID, error)) Option {
	return func(h *Hub) {
		h.identify = identify
	}
}

// NewHub creates a hub with no clients.
func NewHub(opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		clients: make(map[*client]struct{}),
		logger:  logging.NewNopLogger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleWebSocket upgrades the request and streams events until the client
// goes away or the hub shuts down.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.wg.Add(1)
	defer h.wg.Done()

	h.add(c)
	defer h.remove(c)

	// Clients only listen; CloseRead handles control frames and reports
	// disconnects through ctx.
	ctx := conn.CloseRead(h.ctx)
	h.writeLoop(ctx, c)
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			status := websocket.StatusNormalClosure
			if h.ctx.Err() != nil {
				status = websocket.StatusGoingAway
			}
			_ = c.conn.Close(status, "")
			return

		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				_ = c.conn.CloseNow()
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				_ = c.conn.CloseNow()
				return
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.clientsMutex.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.clientsMutex.Unlock()

	h.logger.Debug(h.ctx, "WebSocket client connected", "clients", total)
}

func (h *Hub) remove(c *client) {
	h.clientsMutex.Lock()
	delete(h.clients, c)
	total := len(h.clients)
	h.clientsMutex.Unlock()

	h.logger.Debug(h.ctx, "WebSocket client disconnected", "clients", total)
}

// Publish broadcasts event to every client. It never fails, so it can be
// subscribed to the render event bus directly.
func (h *Hub) Publish(ctx context.Context, event types.RenderEvent) error {
	msg := Message{
		Type:      string(event.Category),
		Event:     event,
		Timestamp: time.Now().UTC(),
	}
	if h.identify != nil {
		if id, err := h.identify(event.Identifier); err == nil {
			msg.Template = id.String()
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn(ctx, err, "Failed to marshal render event")
		return nil
	}

	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug(ctx, "Dropping render event for slow client")
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client and waits for their handlers to return.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(h.cancel)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
