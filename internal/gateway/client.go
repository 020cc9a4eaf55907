package gateway

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/helix/internal/logging"
)

// writeWait bounds a single frame write so a stalled browser cannot hold
// up pushes to the rest of a session room.
const writeWait = 10 * time.Second

// ErrClientClosed is returned by writes on a closed client.
var ErrClientClosed = errors.New("client connection closed")

// Client is one authenticated WebSocket connection.
type Client struct {
	ConnID      string
	Info        ClientInfo
	Auth        AuthResult
	ConnectedAt time.Time

	conn *websocket.Conn

	mu     sync.Mutex // serializes writes; gorilla allows one writer
	closed bool
}

// NewClient wraps a connection that completed the handshake.
func NewClient(conn *websocket.Conn, info ClientInfo, auth AuthResult) *Client {
	return &Client{
		ConnID:      uuid.NewString(),
		Info:        info,
		Auth:        auth,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

// write runs fn with the write lock held and a fresh deadline set.
func (c *Client) write(fn func(*websocket.Conn) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return fn(c.conn)
}

// Send writes one frame.
func (c *Client) Send(frame Frame) error {
	return c.write(func(conn *websocket.Conn) error { return conn.WriteJSON(frame) })
}

// SendEvent writes a named event.
func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) sendPrepared(pm *websocket.PreparedMessage) error {
	return c.write(func(conn *websocket.Conn) error { return conn.WritePreparedMessage(pm) })
}

// Respond answers request reqID with payload.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError answers request reqID with an error.
func (c *Client) RespondError(reqID string, errShape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, errShape))
}

// ReadFrame blocks for the next frame. Only the read loop calls it.
func (c *Client) ReadFrame() (Frame, error) {
	var f Frame
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(msg, &f)
	return f, err
}

// Close closes the connection once; later calls are no-ops.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// ClientRegistry tracks connected clients and the session rooms they
// joined. A connection may sit in several rooms.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client // sessionID → connID → client
	log     *logging.Logger
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.ConnID] = c
	r.mu.Unlock()
	r.log.Info().Str("connId", c.ConnID).Str("client", c.Info.ID).Msg("client connected")
}

// Remove unregisters a client and drops it from every room.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	delete(r.clients, connID)
	for sessionID := range r.rooms {
		r.leaveLocked(sessionID, connID)
	}
	r.mu.Unlock()
	r.log.Info().Str("connId", connID).Msg("client disconnected")
}

// Get returns a client by connection id.
func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Join subscribes a connected client to a session's room. Unknown
// connections are ignored.
func (r *ClientRegistry) Join(sessionID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[connID]
	if !ok {
		return
	}
	room := r.rooms[sessionID]
	if room == nil {
		room = make(map[string]*Client)
		r.rooms[sessionID] = room
	}
	room[connID] = c
}

// Leave unsubscribes a client from a session's room.
func (r *ClientRegistry) Leave(sessionID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(sessionID, connID)
}

func (r *ClientRegistry) leaveLocked(sessionID, connID string) {
	room := r.rooms[sessionID]
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, sessionID)
	}
}

// Members returns the connection ids in a session's room, sorted.
func (r *ClientRegistry) Members(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rooms[sessionID]))
	for id := range r.rooms[sessionID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BroadcastRoom pushes an event to every member of a session's room. The
// frame is encoded once and shared across connections.
func (r *ClientRegistry) BroadcastRoom(sessionID, event string, payload any, seq int64) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.rooms[sessionID]))
	for _, c := range r.rooms[sessionID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	f, err := NewEvent(event, payload, seq)
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("encoding event")
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("encoding event")
		return
	}
	pm, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("preparing event")
		return
	}

	for _, c := range targets {
		if err := c.sendPrepared(pm); err != nil {
			r.log.Warn().Err(err).Str("connId", c.ConnID).Str("event", event).Msg("room send failed")
		}
	}
}

// CloseAll closes and forgets every client.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
	r.rooms = make(map[string]map[string]*Client)
}
