// Package llm defines the model client interface and the HTTP providers
// that implement it. Every provider supports native tool calling and
// JSON-shaped output so the agent can treat them interchangeably.
package llm

import (
	"context"
	"time"
)

// Role constants for messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ToolChoice controls whether the model may call tools.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

// Message is a single turn in a conversation. System messages may appear
// anywhere in the list; providers without mid-conversation system turns
// fold them into user text.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`  // assistant turns that requested tools
	ToolCallID string     `json:"toolCallId,omitempty"` // tool turns answering a call
}

// ToolDefinition describes a tool the LLM can invoke.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"inputSchema"` // JSON Schema string
}

// ResponseFormat asks the model to answer with JSON matching Schema.
type ResponseFormat struct {
	Name   string `json:"name"`
	Schema string `json:"schema"` // JSON Schema string
}

// CompletionRequest is the input to a Complete call.
type CompletionRequest struct {
	Model          string           `json:"model,omitempty"`
	System         string           `json:"system,omitempty"`
	Messages       []Message        `json:"messages"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	ToolChoice     ToolChoice       `json:"toolChoice,omitempty"`
	ResponseFormat *ResponseFormat  `json:"responseFormat,omitempty"`
	MaxTokens      int              `json:"maxTokens,omitempty"`
	Temperature    *float64         `json:"temperature,omitempty"`
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Content    string        `json:"content"`
	StopReason string        `json:"stopReason,omitempty"`
	ToolCalls  []ToolCall    `json:"toolCalls,omitempty"`
	Usage      Usage         `json:"usage"`
	Model      string        `json:"model,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// ToolCall is an LLM request to invoke a tool.
type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"` // JSON string
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Client is the interface all LLM providers must implement.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "openai", "claude").
	Name() string
}

// Float returns a pointer to f, for CompletionRequest.Temperature.
func Float(f float64) *float64 { return &f }
