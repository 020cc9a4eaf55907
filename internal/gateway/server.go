// Package gateway serves the browser-facing HTTP and WebSocket surface:
// session creation, profile updates, chat turns, manual edits, and live
// pushes of sequence changes to every connection that joined a session.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/helix/internal/channel"
	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/hooks"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/service"
	"github.com/soyeahso/helix/internal/version"
)

const (
	// maxPayload caps a single inbound WebSocket frame.
	maxPayload    = 1 << 20
	handshakeWait = 10 * time.Second
)

// Sessions is the session service the gateway drives.
type Sessions interface {
	CreateSession() string
	UpdateUserInfo(id string, f service.UserFields) (string, error)
	HandleUserTurn(ctx context.Context, id, text string) string
	HandleManualEdit(id, messageID, content string) error
	Rejoin(id string) []domain.OutreachMessage
	Sequence(id string) ([]domain.OutreachMessage, error)
	Sessions() []string
}

// Server is the Helix gateway HTTP + WebSocket server. It also implements
// domain.Notifier, pushing events to the session's room.
type Server struct {
	cfg      config.GatewayConfig
	auth     ResolvedAuth
	log      *logging.Logger
	sessions Sessions
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	version  string
	eventSeq atomic.Int64

	// Channel registry (optional, nil if no channels configured)
	channels *channel.Registry

	// Hook manager (optional)
	hooks *hooks.Manager

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithChannels sets the channel registry for channel status reporting.
func WithChannels(ch *channel.Registry) ServerOption {
	return func(s *Server) {
		s.channels = ch
	}
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// New creates a new gateway server.
func New(cfg config.GatewayConfig, sessions Sessions, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Auth),
		log:         log.Sub("gateway"),
		sessions:    sessions,
		clients:     NewClientRegistry(log.Sub("clients")),
		handlers:    make(map[string]RequestHandler),
		version:     version.Version,
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	return s
}

// checkWebSocketOrigin accepts requests without an Origin header
// (non-browser clients) and otherwise requires a configured match.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names, sorted.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	useMiddleware(r, s.log, s.cfg.AllowedOrigins)
	s.registerHTTPRoutes(r)
	return r
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.ListenAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	if s.auth.Mode == authModeNone && s.cfg.Bind != "loopback" {
		s.log.Warn().Str("bind", s.cfg.Bind).Msg("gateway auth is disabled on a non-loopback address")
	}

	s.startedAt = time.Now()
	go s.authLimiter.run(ctx.Done())
	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("auth", s.auth.Mode).
		Int("methods", len(s.handlers)).
		Msg("gateway server ready")
	s.emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": ln.Addr().String()})

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdown drops every client and drains the HTTP server.
func (s *Server) shutdown() {
	s.log.Info().Msg("shutting down gateway server")
	s.emit(context.Background(), hooks.EventGatewayStop, nil)

	s.clients.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("gateway shutdown")
	}
}

func (s *Server) emit(ctx context.Context, ev string, data map[string]any) {
	if s.hooks != nil {
		s.hooks.Emit(ctx, ev, "", data)
	}
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	remote := r.RemoteAddr
	if !s.authLimiter.allow(remote) {
		s.log.Warn().Str("remote", remote).Msg("rate limited after repeated auth failures")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", remote).Msg("handshake failed")
		var rej *rejection
		if errors.As(err, &rej) && rej.code == CodeUnauthorized {
			s.authLimiter.recordFailure(remote)
		}
		_ = conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		_ = client.Close()
	}()
	s.readLoop(client)
}

// rejection is a handshake failure that was reported to the peer before
// the socket closed.
type rejection struct {
	code, message string
}

func (r *rejection) Error() string { return r.code + ": " + r.message }

// reject writes an error response for reqID followed by a close frame.
func reject(conn *websocket.Conn, reqID, code, message string) error {
	_ = conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{Code: code, Message: message}))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, message))
	return &rejection{code: code, message: message}
}

// handshake runs challenge, connect, hello. The peer has handshakeWait to
// answer the challenge.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))

	challenge, err := NewEvent(EventChallenge, ChallengePayload{
		Nonce: uuid.NewString(),
		TS:    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("send challenge: %w", err)
	}

	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return nil, fmt.Errorf("read connect: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		return nil, reject(conn, frame.ID, CodeProtocol, "expected connect request")
	}
	var params ConnectParams
	if len(frame.Params) > 0 {
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			return nil, reject(conn, frame.ID, CodeInvalidParams, "invalid connect params")
		}
	}
	authResult := Authorize(s.auth, params.Auth)
	if !authResult.OK {
		return nil, reject(conn, frame.ID, CodeUnauthorized, authResult.Reason)
	}
	_ = conn.SetReadDeadline(time.Time{})

	client := NewClient(conn, params.Client, authResult)
	resp, err := NewResponse(frame.ID, s.hello(client.ConnID))
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("send hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", params.Client.ID).
		Str("authMethod", authResult.Method).
		Msg("client authenticated")
	return client, nil
}

func (s *Server) hello(connID string) HelloOK {
	return HelloOK{
		Protocol: ProtocolVersion,
		Server:   ServerInfo{Version: s.version, Commit: version.Commit, ConnID: connID},
		Features: Features{Methods: s.Methods(), Events: Events},
	}
}

// readLoop serves request frames until the peer goes away.
func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		switch {
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			return
		case err != nil:
			s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("read error")
			return
		case frame.Type != FrameTypeRequest:
			continue
		}
		s.dispatch(client, frame)
	}
}

func (s *Server) dispatch(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    CodeMethodNotFound,
			Message: "unknown method: " + frame.Method,
		})
		return
	}
	handler(&RequestContext{Client: client, Frame: frame, Server: s})
}

// SequenceChanged pushes the new sequence to the session's room.
func (s *Server) SequenceChanged(sessionID string, seq []domain.OutreachMessage) {
	s.clients.BroadcastRoom(sessionID, EventSequenceUpdated, SequencePayload{
		SessionID: sessionID,
		Sequence:  domain.CloneSequence(seq),
	}, s.eventSeq.Add(1))
}

// ChatMessage pushes a chat line to the session's room.
func (s *Server) ChatMessage(sessionID, text, role string) {
	s.clients.BroadcastRoom(sessionID, EventChatMessage, ChatPayload{
		SessionID: sessionID,
		Message:   text,
		Role:      role,
	}, s.eventSeq.Add(1))
}

// ToolRunning pushes a progress label to the session's room.
func (s *Server) ToolRunning(sessionID, label string) {
	s.clients.BroadcastRoom(sessionID, EventToolCall, ToolPayload{
		SessionID: sessionID,
		Message:   label,
	}, s.eventSeq.Add(1))
}
