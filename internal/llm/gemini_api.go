package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiAPIClient is a direct HTTP client for Google Gemini API.
type GeminiAPIClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiAPIClient creates a new Gemini API client.
func NewGeminiAPIClient(apiKey, model string) *GeminiAPIClient {
	return &GeminiAPIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		client:  newHTTPClient(),
	}
}

// Name returns the provider name.
func (g *GeminiAPIClient) Name() string { return "gemini" }

// Complete sends a generateContent request to Gemini API.
func (g *GeminiAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := g.model
	if req.Model != "" {
		model = req.Model
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, url.QueryEscape(g.apiKey))

	var result geminiAPIResponse
	if err := postJSON(ctx, g.client, g.Name(), endpoint, nil, g.buildRequestBody(req), &result); err != nil {
		return nil, err
	}
	return g.responseToCompletion(&result, model, time.Since(start)), nil
}

func (g *GeminiAPIClient) buildRequestBody(req CompletionRequest) map[string]any {
	genConfig := map[string]any{}
	if req.MaxTokens > 0 {
		genConfig["maxOutputTokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		genConfig["temperature"] = *req.Temperature
	}

	var system []string
	if req.System != "" {
		system = append(system, req.System)
	}
	if req.ResponseFormat != nil {
		genConfig["responseMimeType"] = "application/json"
		system = append(system, schemaInstruction(req.ResponseFormat))
	}

	body := map[string]any{
		"contents":         g.contentsFromMessages(req.Messages),
		"generationConfig": genConfig,
	}
	if len(system) > 0 {
		body["systemInstruction"] = map[string]any{
			"parts": []geminiPart{{Text: strings.Join(system, "\n\n")}},
		}
	}

	if len(req.Tools) > 0 && req.ToolChoice != ToolChoiceNone {
		decls := make([]map[string]any, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  parseJSONSchema(t.InputSchema),
			}
		}
		body["tools"] = []map[string]any{{"functionDeclarations": decls}}
		body["toolConfig"] = map[string]any{
			"functionCallingConfig": map[string]string{"mode": "AUTO"},
		}
	}

	return body
}

// contentsFromMessages maps roles onto Gemini's user/model turns. Tool
// results are sent as functionResponse parts named after the tool.
func (g *GeminiAPIClient) contentsFromMessages(msgs []Message) []geminiContent {
	var out []geminiContent
	appendParts := func(role string, parts ...geminiPart) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			return
		}
		out = append(out, geminiContent{Role: role, Parts: parts})
	}

	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			var parts []geminiPart
			if m.Content != "" {
				parts = append(parts, geminiPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, geminiPart{FunctionCall: &geminiFunctionCall{
					Name: tc.Name,
					Args: parseToolInput(tc.Input),
				}})
			}
			if len(parts) > 0 {
				appendParts("model", parts...)
			}
		case RoleTool:
			if m.Name == "" {
				appendParts("user", geminiPart{Text: m.Content})
				continue
			}
			appendParts("user", geminiPart{FunctionResponse: &geminiFunctionResponse{
				Name:     m.Name,
				Response: map[string]any{"result": m.Content},
			}})
		case RoleSystem:
			appendParts("user", geminiPart{Text: "[context]\n" + m.Content})
		default:
			if m.Content != "" {
				appendParts("user", geminiPart{Text: m.Content})
			}
		}
	}
	return out
}

func (g *GeminiAPIClient) responseToCompletion(resp *geminiAPIResponse, model string, duration time.Duration) *CompletionResponse {
	var content strings.Builder
	var toolCalls []ToolCall
	stopReason := ""

	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		stopReason = candidate.FinishReason
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				content.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				// Gemini does not assign call ids.
				toolCalls = append(toolCalls, ToolCall{
					ID:    "call_" + uuid.NewString(),
					Name:  part.FunctionCall.Name,
					Input: string(toolInputJSON(encodeArgs(part.FunctionCall.Args))),
				})
			}
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: stopReason,
		ToolCalls:  toolCalls,
		Usage: Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		},
		Model:    model,
		Duration: duration,
	}
}

// API structures

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiAPIResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}
