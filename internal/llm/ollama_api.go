package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaAPIClient is a direct HTTP client for the Ollama chat API.
type OllamaAPIClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaAPIClient creates a new Ollama API client.
// baseURL should be like "http://localhost:11434"
func NewOllamaAPIClient(baseURL, model string) *OllamaAPIClient {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaAPIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  newHTTPClient(),
	}
}

// Name returns the provider name.
func (o *OllamaAPIClient) Name() string { return "ollama" }

// Complete sends a non-streaming chat request to Ollama.
func (o *OllamaAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	var result ollamaChatResponse
	if err := postJSON(ctx, o.client, o.Name(), o.baseURL+"/api/chat", nil, o.buildRequestBody(req), &result); err != nil {
		return nil, err
	}

	out := &CompletionResponse{
		Content:    result.Message.Content,
		StopReason: result.DoneReason,
		Usage: Usage{
			InputTokens:  result.PromptEvalCount,
			OutputTokens: result.EvalCount,
		},
		Model:    result.Model,
		Duration: time.Since(start),
	}
	for _, tc := range result.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:    "call_" + uuid.NewString(),
			Name:  tc.Function.Name,
			Input: encodeArgs(tc.Function.Arguments),
		})
	}
	return out, nil
}

func (o *OllamaAPIClient) buildRequestBody(req CompletionRequest) map[string]any {
	model := o.model
	if req.Model != "" {
		model = req.Model
	}

	msgs := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, ollamaMessage{Role: RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			var call ollamaToolCall
			call.Function.Name = tc.Name
			call.Function.Arguments = parseToolInput(tc.Input)
			om.ToolCalls = append(om.ToolCalls, call)
		}
		msgs = append(msgs, om)
	}

	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	body := map[string]any{
		"model":    model,
		"messages": msgs,
		"stream":   false,
		"options":  options,
	}

	if len(req.Tools) > 0 && req.ToolChoice != ToolChoiceNone {
		tools := make([]map[string]any, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  parseJSONSchema(t.InputSchema),
				},
			}
		}
		body["tools"] = tools
	}
	if req.ResponseFormat != nil {
		body["format"] = json.RawMessage(req.ResponseFormat.Schema)
	}

	return body
}

// API structures

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}
