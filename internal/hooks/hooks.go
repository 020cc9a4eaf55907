// Package hooks is an in-process event bus for session lifecycle and
// progress events.
package hooks

import (
	"context"
	"sort"
	"sync"

	"github.com/soyeahso/helix/internal/logging"
)

// Event names for the hook system.
const (
	EventSessionCreated  = "session_created"
	EventSessionDeleted  = "session_deleted"
	EventTurnStarted     = "turn_started"
	EventTurnCompleted   = "turn_completed"
	EventToolRunning     = "tool_running"
	EventSequenceChanged = "sequence_changed"
	EventChatMessage     = "chat_message"
	EventGatewayStart    = "gateway_start"
	EventGatewayStop     = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventSessionCreated,
	EventSessionDeleted,
	EventTurnStarted,
	EventTurnCompleted,
	EventToolRunning,
	EventSequenceChanged,
	EventChatMessage,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event     string         `json:"event"`
	SessionID string         `json:"sessionId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles a hook event.
// Returning an error logs the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	inflight sync.WaitGroup
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event.
// The name identifies the handler for logging and debugging.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.handlers[event][:0:0]
	for _, h := range m.handlers[event] {
		if h.name != name {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		delete(m.handlers, event)
		return
	}
	m.handlers[event] = kept
}

func (m *Manager) snapshot(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]namedHandler(nil), m.handlers[event]...)
}

func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) {
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("sessionId", p.SessionID).
			Str("handler", h.name).
			Msg("hook handler error")
	}
}

// Emit dispatches an event to all registered handlers synchronously, in
// registration order. A failing handler does not stop the rest.
func (m *Manager) Emit(ctx context.Context, event, sessionID string, data map[string]any) {
	p := Payload{Event: event, SessionID: sessionID, Data: data}
	for _, h := range m.snapshot(event) {
		m.call(ctx, h, p)
	}
}

// EmitAsync dispatches an event to every handler on its own goroutine and
// returns immediately.
func (m *Manager) EmitAsync(ctx context.Context, event, sessionID string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	p := Payload{Event: event, SessionID: sessionID, Data: data}
	for _, h := range handlers {
		m.inflight.Add(1)
		go func(h namedHandler) {
			defer m.inflight.Done()
			m.call(ctx, h, p)
		}(h)
	}
}

// Wait blocks until every handler started by EmitAsync has returned.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the sorted events that have at least one handler.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	sort.Strings(events)
	return events
}
