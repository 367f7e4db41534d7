package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/tofu/cycle"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second

	// Publications queued per client before it is considered too slow.
	sendBuffer = 2
)

var upgrader = websocket.Upgrader{
	// Viewers are served from anywhere; the stream is read-only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type conn struct {
	ws   *websocket.Conn
	send chan *frames
	once sync.Once
	done chan struct{}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Hub tracks connected viewers and pushes every publication to them. It
// implements cycle.Publisher.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*conn]struct{}

	latest    atomic.Pointer[frames]
	shape     atomic.Pointer[string]
	particles atomic.Int64
}

// New creates an empty hub. If initial is non-nil it is served to clients
// that join before the first publication.
func New(initial *cycle.Snapshot) *Hub {
	h := &Hub{
		logger:  slog.Default(),
		clients: make(map[*conn]struct{}),
	}
	if initial != nil {
		h.Publish(initial)
	}
	return h
}

// SetLogger replaces the hub's logger.
func (h *Hub) SetLogger(l *slog.Logger) {
	h.logger = l
}

// Publish encodes s once and queues it for every client. Clients whose
// queue is full are disconnected.
func (h *Hub) Publish(s *cycle.Snapshot) {
	f, err := encode(s)
	if err != nil {
		h.logger.Error("encoding snapshot", "seq", s.Seq, "error", err)
		return
	}
	h.latest.Store(f)
	shape := s.Shape
	h.shape.Store(&shape)
	h.particles.Store(int64(s.Len()))

	h.mu.Lock()
	var slow []*conn
	for c := range h.clients {
		select {
		case c.send <- f:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow client", "remote", c.ws.RemoteAddr().String())
		c.close()
	}
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler returns the hub's routes: "/" for health and "/ws" for the stream.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.ServeHealth)
	mux.HandleFunc("/ws", h.ServeWS)
	return mux
}

// ServeHealth reports the current shape and client count as JSON.
func (h *Hub) ServeHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	var shape string
	if p := h.shape.Load(); p != nil {
		shape = *p
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Health{
		Status:        "ok",
		Shape:         shape,
		Clients:       h.Clients(),
		ParticleCount: int(h.particles.Load()),
	})
}

// ServeWS upgrades the request and streams publications until the client
// goes away or falls behind.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &conn{
		ws:   ws,
		send: make(chan *frames, sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	// Late joiners see the current shape immediately.
	if f := h.latest.Load(); f != nil {
		c.send <- f
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client connected", "remote", ws.RemoteAddr().String(), "clients", n)

	go h.writeLoop(c)
	h.readLoop(c)

	h.mu.Lock()
	delete(h.clients, c)
	n = len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Info("client disconnected", "remote", ws.RemoteAddr().String(), "clients", n)
}

// readLoop discards client messages; it exists to process control frames
// and notice disconnects.
func (h *Hub) readLoop(c *conn) {
	c.ws.SetReadLimit(1 << 10)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, f.info); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, f.targets); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*conn]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

// ListenAndServe serves the hub on addr until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Handler()}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	h.logger.Info("hub listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
