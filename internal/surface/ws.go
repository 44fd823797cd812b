package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Role string

const (
	RolePrimary Role = "primary"
	RolePreview Role = "preview"
)

// Peer is the role frames from r are relayed to.
func (r Role) Peer() Role {
	if r == RolePrimary {
		return RolePreview
	}
	return RolePrimary
}

func (r Role) Valid() bool {
	return r == RolePrimary || r == RolePreview
}

const (
	writeWait     = 10 * time.Second
	clientBuffer  = 64
	maxFrameBytes = 64 * 1024
	SurfacePath   = "/ws/surface"
)

// Hub relays frames between primary and preview websocket clients. Each
// relayed envelope is re-stamped with the sender's handshake Origin, so a
// client cannot claim another origin inside the payload. Receivers still
// decide whether that origin is acceptable.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*hubClient]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type hubClient struct {
	id     string
	role   Role
	origin string
	conn   *websocket.Conn
	send   chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		clients: make(map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin is enforced per message by the receiving dispatcher.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	role := Role(r.URL.Query().Get("role"))
	if !role.Valid() {
		http.Error(w, "role must be primary or preview", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	id := r.URL.Query().Get("client_id")
	if id == "" {
		id = uuid.NewString()
	}
	c := &hubClient{
		id:     id,
		role:   role,
		origin: r.Header.Get("Origin"),
		conn:   conn,
		send:   make(chan []byte, clientBuffer),
	}

	h.add(c)
	go h.writePump(c)
	h.readPump(c)
}

// Count returns the number of connected clients with the given role.
func (h *Hub) Count(role Role) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.role == role {
			n++
		}
	}
	return n
}

// Close disconnects every surface. Their read loops then unregister them.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

func (h *Hub) add(c *hubClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("surface connected", "client_id", c.id, "role", c.role, "origin", c.origin)
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Info("surface disconnected", "client_id", c.id, "role", c.role)
}

func (h *Hub) readPump(c *hubClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("surface read error", "client_id", c.id, "error", err)
			}
			return
		}

		env, err := DecodeEnvelope(data)
		if err != nil {
			h.logger.Warn("dropping malformed frame", "client_id", c.id, "error", err)
			continue
		}
		env.Origin = c.origin

		frame, err := json.Marshal(env)
		if err != nil {
			continue
		}
		h.relay(c, frame)
	}
}

func (h *Hub) relay(from *hubClient, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	target := from.role.Peer()
	for c := range h.clients {
		if c.role != target {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("surface send buffer full, dropping frame", "client_id", c.id)
		}
	}
}

func (h *Hub) writePump(c *hubClient) {
	defer c.conn.Close()
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Debug("surface write failed", "client_id", c.id, "error", err)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// WSLink is a Link over a websocket connection to a Hub.
type WSLink struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	frames  chan []byte
	done    chan struct{}
	once    sync.Once
}

// SurfaceURL converts an http(s) server base URL to the websocket relay URL.
func SurfaceURL(base string, role Role, clientID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = SurfacePath
	q := url.Values{}
	q.Set("role", string(role))
	q.Set("client_id", clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial connects to the relay at base as role, presenting origin in the
// handshake.
func Dial(ctx context.Context, base string, role Role, origin string) (*WSLink, error) {
	wsURL, err := SurfaceURL(base, role, uuid.NewString())
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	conn.SetReadLimit(maxFrameBytes)

	l := &WSLink{
		conn:   conn,
		frames: make(chan []byte, clientBuffer),
		done:   make(chan struct{}),
	}
	go l.readLoop()
	return l, nil
}

func (l *WSLink) readLoop() {
	defer close(l.frames)
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			l.Close()
			return
		}
		select {
		case l.frames <- data:
		case <-l.done:
			return
		}
	}
}

func (l *WSLink) Send(ctx context.Context, frame []byte) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	l.conn.SetWriteDeadline(deadline)
	if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

func (l *WSLink) Frames() <-chan []byte {
	return l.frames
}

func (l *WSLink) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		l.writeMu.Lock()
		l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		l.writeMu.Unlock()
		err = l.conn.Close()
	})
	return err
}
