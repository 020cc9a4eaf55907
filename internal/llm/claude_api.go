package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const (
	claudeMessagesURL = "https://api.anthropic.com/v1/messages"
	claudeAPIVersion  = "2023-06-01"
	claudeMaxTokens   = 4096
)

// ClaudeAPIClient is a direct HTTP client for the Claude Messages API.
type ClaudeAPIClient struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewClaudeAPIClient creates a new Claude API client.
func NewClaudeAPIClient(apiKey, model string) *ClaudeAPIClient {
	return &ClaudeAPIClient{
		apiKey: apiKey,
		model:  model,
		url:    claudeMessagesURL,
		client: newHTTPClient(),
	}
}

// Name returns the provider name.
func (c *ClaudeAPIClient) Name() string { return "claude" }

// Complete sends a non-streaming completion request to Claude API.
func (c *ClaudeAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": claudeAPIVersion,
	}
	var result claudeAPIResponse
	if err := postJSON(ctx, c.client, c.Name(), c.url, headers, c.buildRequestBody(req), &result); err != nil {
		return nil, err
	}
	return c.responseToCompletion(&result, time.Since(start)), nil
}

func (c *ClaudeAPIClient) buildRequestBody(req CompletionRequest) map[string]any {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = claudeMaxTokens
	}

	system := []string{}
	if req.System != "" {
		system = append(system, req.System)
	}
	if s := schemaInstruction(req.ResponseFormat); s != "" {
		system = append(system, s)
	}

	body := map[string]any{
		"model":      model,
		"messages":   c.messagesToClaude(req.Messages),
		"max_tokens": maxTokens,
	}
	if len(system) > 0 {
		body["system"] = strings.Join(system, "\n\n")
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}

	if len(req.Tools) > 0 && req.ToolChoice != ToolChoiceNone {
		tools := make([]map[string]any, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": parseJSONSchema(t.InputSchema),
			}
		}
		body["tools"] = tools
		body["tool_choice"] = map[string]string{"type": "auto"}
	}

	return body
}

// messagesToClaude maps the conversation onto Claude content blocks.
// Tool results become user turns carrying tool_result blocks and system
// turns are folded into user text, since the API accepts neither role.
func (c *ClaudeAPIClient) messagesToClaude(msgs []Message) []claudeMessage {
	var out []claudeMessage
	appendBlocks := func(role string, blocks ...claudeContentBlock) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, claudeMessage{Role: role, Content: blocks})
	}

	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			var blocks []claudeContentBlock
			if m.Content != "" {
				blocks = append(blocks, claudeContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, claudeContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: toolInputJSON(tc.Input),
				})
			}
			if len(blocks) > 0 {
				appendBlocks(RoleAssistant, blocks...)
			}
		case RoleTool:
			if m.ToolCallID == "" {
				appendBlocks(RoleUser, claudeContentBlock{Type: "text", Text: m.Content})
				continue
			}
			appendBlocks(RoleUser, claudeContentBlock{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Content,
			})
		case RoleSystem:
			appendBlocks(RoleUser, claudeContentBlock{Type: "text", Text: "[context]\n" + m.Content})
		default:
			if m.Content != "" {
				appendBlocks(RoleUser, claudeContentBlock{Type: "text", Text: m.Content})
			}
		}
	}
	return out
}

func (c *ClaudeAPIClient) responseToCompletion(resp *claudeAPIResponse, duration time.Duration) *CompletionResponse {
	var content strings.Builder
	var toolCalls []ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			input := "{}"
			if len(block.RawInput) > 0 {
				input = string(block.RawInput)
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: resp.StopReason,
		ToolCalls:  toolCalls,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		Model:    resp.Model,
		Duration: duration,
	}
}

// API structures

type claudeMessage struct {
	Role    string               `json:"role"`
	Content []claudeContentBlock `json:"content"`
}

type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type claudeAPIResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type     string          `json:"type"`
		Text     string          `json:"text,omitempty"`
		ID       string          `json:"id,omitempty"`
		Name     string          `json:"name,omitempty"`
		RawInput json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
