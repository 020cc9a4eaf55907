package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/soyeahso/helix/internal/domain"
)

// turnTimeout bounds a chat turn started over the WebSocket.
const turnTimeout = 5 * time.Minute

// registerHTTPRoutes sets up all HTTP routes.
func (s *Server) registerHTTPRoutes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/session", func(r chi.Router) {
		r.Use(requireAuth(s.auth))
		r.Post("/", s.handleCreateSession)
		r.Post("/{id}/user", s.handleUpdateUser)
		r.Get("/{id}/sequence", s.handleGetSequence)
	})

	r.NotFound(handleNotFound)
}

// registerRPCHandlers sets up all WebSocket RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("channels.status", s.rpcChannelsStatus)
	s.Handle("session.list", s.rpcSessionList)
	s.Handle("session.join", s.rpcSessionJoin)
	s.Handle("session.leave", s.rpcSessionLeave)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("sequence.update", s.rpcSequenceUpdate)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.clients.Count(),
		Sessions: len(s.sessions.Sessions()),
	})
}

func (s *Server) rpcChannelsStatus(rc *RequestContext) {
	if s.channels != nil {
		rc.Respond(map[string]any{"channels": s.channels.Status()})
		return
	}
	rc.Respond(map[string]any{"channels": []any{}})
}

func (s *Server) rpcSessionList(rc *RequestContext) {
	rc.Respond(map[string]any{"sessions": s.sessions.Sessions()})
}

type sessionParams struct {
	SessionID string `json:"session_id"`
}

func (rc *RequestContext) bindSession(target any, id *string) bool {
	if err := rc.Params(target); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return false
	}
	if *id == "" {
		rc.RespondError(CodeInvalidParams, "session_id is required")
		return false
	}
	return true
}

// rpcSessionJoin subscribes the connection to the session's room and
// re-sends the current sequence, recreating the session if it expired.
func (s *Server) rpcSessionJoin(rc *RequestContext) {
	var p sessionParams
	if !rc.bindSession(&p, &p.SessionID) {
		return
	}
	s.clients.Join(p.SessionID, rc.Client.ConnID)
	seq := s.sessions.Rejoin(p.SessionID)
	rc.Respond(SequencePayload{SessionID: p.SessionID, Sequence: domain.CloneSequence(seq)})
}

func (s *Server) rpcSessionLeave(rc *RequestContext) {
	var p sessionParams
	if !rc.bindSession(&p, &p.SessionID) {
		return
	}
	s.clients.Leave(p.SessionID, rc.Client.ConnID)
	rc.Respond(map[string]any{"session_id": p.SessionID})
}

type chatSendParams struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// rpcChatSend runs the turn off the read loop; the reply arrives both as
// the response and as a chat.message event for the room.
func (s *Server) rpcChatSend(rc *RequestContext) {
	var p chatSendParams
	if !rc.bindSession(&p, &p.SessionID) {
		return
	}
	if p.Message == "" {
		rc.RespondError(CodeInvalidParams, "message is required")
		return
	}
	s.clients.Join(p.SessionID, rc.Client.ConnID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()
		reply := s.sessions.HandleUserTurn(ctx, p.SessionID, p.Message)
		rc.Respond(ChatPayload{SessionID: p.SessionID, Message: reply, Role: domain.RoleAssistant})
	}()
}

type sequenceUpdateParams struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

func (s *Server) rpcSequenceUpdate(rc *RequestContext) {
	var p sequenceUpdateParams
	if !rc.bindSession(&p, &p.SessionID) {
		return
	}
	if p.MessageID == "" {
		rc.RespondError(CodeInvalidParams, "message_id is required")
		return
	}

	err := s.sessions.HandleManualEdit(p.SessionID, p.MessageID, p.Content)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		rc.RespondError(CodeNotFound, "Session not found")
	case errors.Is(err, domain.ErrNotFound):
		rc.RespondError(CodeNotFound, "Message not found")
	case err != nil:
		rc.RespondError(CodeInternal, err.Error())
	default:
		rc.Respond(map[string]any{"session_id": p.SessionID, "message_id": p.MessageID})
	}
}
