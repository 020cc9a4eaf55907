// Package tools declares the operations the conversation model may invoke
// and executes them against a live session.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/llm"
	"github.com/soyeahso/helix/internal/logging"
)

// Tool is a capability the agent can invoke during a conversation.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns a human-readable description for the LLM.
	Description() string

	// InputSchema returns the JSON Schema for the tool's input.
	InputSchema() string

	// Label is the progress notice shown while the tool runs.
	Label() string

	// Execute runs the tool against a session and returns its success message.
	Execute(ctx context.Context, sessionID string, params Params) (string, error)
}

// Result is the outcome of one tool invocation. Exactly one of Message and
// Error is meaningful, selected by Success.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	Err error `json:"-"`
}

// Text returns the message on success and the error reason otherwise.
func (r Result) Text() string {
	if r.Success {
		return r.Message
	}
	return r.Error
}

// Failed builds an error result.
func Failed(err error) Result {
	return Result{Error: Reason(err), Err: err}
}

// Reason maps an execution error to the user-facing text recorded in history.
func Reason(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, domain.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, domain.ErrNotFound):
		return "Message not found"
	default:
		return err.Error()
	}
}

const defaultLabel = "Executing tool..."

// SessionChecker reports whether a session is live.
type SessionChecker interface {
	Exists(id string) bool
}

// Registry holds available tools in declaration order.
type Registry struct {
	sessions SessionChecker
	tools    map[string]Tool
	order    []string
	log      *logging.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(sessions SessionChecker, log *logging.Logger) *Registry {
	return &Registry{
		sessions: sessions,
		tools:    make(map[string]Tool),
		log:      log.Sub("tools"),
	}
}

// Register adds a tool. Registering a name twice replaces the earlier tool
// but keeps its position.
func (r *Registry) Register(t Tool) {
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Definitions returns LLM-ready tool definitions for all registered tools.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// Label returns the progress notice for a tool name.
func (r *Registry) Label(name string) string {
	if t, ok := r.tools[name]; ok && t.Label() != "" {
		return t.Label()
	}
	return defaultLabel
}

// Execute runs the named tool. The session is checked before the tool
// name, so an unknown session wins over an unknown tool.
func (r *Registry) Execute(ctx context.Context, sessionID, name string, params Params) Result {
	log := r.log.Session(sessionID)

	if !r.sessions.Exists(sessionID) {
		log.Warn().Str("tool", name).Msg("tool call for unknown session")
		return Failed(fmt.Errorf("%s: %w", name, domain.ErrSessionNotFound))
	}
	t, ok := r.tools[name]
	if !ok {
		log.Warn().Str("tool", name).Msg("unknown tool")
		return Result{Error: "Unknown tool: " + name, Err: fmt.Errorf("%w: %s", domain.ErrUnknownTool, name)}
	}

	log.Info().Str("tool", name).Msg("executing tool")
	msg, err := t.Execute(ctx, sessionID, params)
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Msg("tool failed")
		return Failed(err)
	}
	return Result{Success: true, Message: msg}
}
