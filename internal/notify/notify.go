// Package notify provides domain.Notifier implementations that front-ends
// compose: a no-op, a fan-out, a hook-bus bridge and a recorder.
package notify

import (
	"context"
	"sync"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/hooks"
)

// Nop drops every notification.
type Nop struct{}

func (Nop) SequenceChanged(string, []domain.OutreachMessage) {}
func (Nop) ChatMessage(string, string, string)               {}
func (Nop) ToolRunning(string, string)                       {}

// Fanout delivers each notification to every listener in order. Listeners
// are added at runtime by front-ends as they start.
type Fanout struct {
	mu        sync.RWMutex
	listeners []domain.Notifier
}

// NewFanout creates a fan-out over the given listeners.
func NewFanout(listeners ...domain.Notifier) *Fanout {
	return &Fanout{listeners: listeners}
}

// Add registers another listener.
func (f *Fanout) Add(n domain.Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, n)
}

func (f *Fanout) each(fn func(domain.Notifier)) {
	f.mu.RLock()
	ls := append([]domain.Notifier(nil), f.listeners...)
	f.mu.RUnlock()
	for _, n := range ls {
		fn(n)
	}
}

func (f *Fanout) SequenceChanged(sessionID string, seq []domain.OutreachMessage) {
	f.each(func(n domain.Notifier) { n.SequenceChanged(sessionID, domain.CloneSequence(seq)) })
}

func (f *Fanout) ChatMessage(sessionID, text, role string) {
	f.each(func(n domain.Notifier) { n.ChatMessage(sessionID, text, role) })
}

func (f *Fanout) ToolRunning(sessionID, label string) {
	f.each(func(n domain.Notifier) { n.ToolRunning(sessionID, label) })
}

// Hooks forwards notifications onto a hook bus as async events.
type Hooks struct {
	m *hooks.Manager
}

// NewHooks creates a notifier that emits on m.
func NewHooks(m *hooks.Manager) *Hooks {
	return &Hooks{m: m}
}

func (h *Hooks) SequenceChanged(sessionID string, seq []domain.OutreachMessage) {
	h.m.EmitAsync(context.Background(), hooks.EventSequenceChanged, sessionID, map[string]any{
		"sequence": domain.CloneSequence(seq),
		"count":    len(seq),
	})
}

func (h *Hooks) ChatMessage(sessionID, text, role string) {
	h.m.EmitAsync(context.Background(), hooks.EventChatMessage, sessionID, map[string]any{
		"message": text,
		"role":    role,
	})
}

func (h *Hooks) ToolRunning(sessionID, label string) {
	h.m.EmitAsync(context.Background(), hooks.EventToolRunning, sessionID, map[string]any{
		"message": label,
	})
}

// Event is one notification captured by Recorder.
type Event struct {
	Kind      string
	SessionID string
	Text      string
	Role      string
	Sequence  []domain.OutreachMessage
}

// Notification kinds recorded by Recorder.
const (
	KindSequence = "sequence"
	KindChat     = "chat"
	KindTool     = "tool"
)

// Recorder keeps every notification in arrival order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) SequenceChanged(sessionID string, seq []domain.OutreachMessage) {
	r.add(Event{Kind: KindSequence, SessionID: sessionID, Sequence: domain.CloneSequence(seq)})
}

func (r *Recorder) ChatMessage(sessionID, text, role string) {
	r.add(Event{Kind: KindChat, SessionID: sessionID, Text: text, Role: role})
}

func (r *Recorder) ToolRunning(sessionID, label string) {
	r.add(Event{Kind: KindTool, SessionID: sessionID, Text: label})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kind returns the recorded events of one kind.
func (r *Recorder) Kind(kind string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
