package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// captureServer returns a server that records the decoded request body and
// answers with the given status and body.
func captureServer(t *testing.T, status int, reply string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if got != nil {
			require.NoError(t, json.Unmarshal(data, got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleRequest() CompletionRequest {
	return CompletionRequest{
		System: "You are a recruiter assistant.",
		Messages: []Message{
			{Role: RoleUser, Content: "Generate a sequence for Acme"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "generate_sequence", Input: `{"company":"Acme","role":"Engineer"}`}}},
			{Role: RoleTool, Name: "generate_sequence", ToolCallID: "call_1", Content: "[]"},
			{Role: RoleSystem, Content: "Phase: generating_sequence"},
		},
		Tools: []ToolDefinition{{
			Name:        "generate_sequence",
			Description: "Generate a sequence",
			InputSchema: `{"type":"object","properties":{"company":{"type":"string"}},"required":["company"]}`,
		}},
		ToolChoice:  ToolChoiceAuto,
		Temperature: Float(0.7),
		MaxTokens:   256,
	}
}

// --- Registry tests ---

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("test-provider", &MockClient{ProviderName: "test-provider"})

	client, err := reg.Resolve("test-provider")
	require.NoError(t, err)
	assert.Equal(t, "test-provider", client.Name())
}

func TestRegistryAlias(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("openai", &MockClient{ProviderName: "openai"})
	reg.Alias("gpt-4o-mini", "openai")

	client, err := reg.Resolve("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Name())
}

func TestRegistryFallback(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("default-llm", &MockClient{ProviderName: "default-llm"})
	reg.SetFallback("default-llm")

	client, err := reg.Resolve("unknown-model-xyz")
	require.NoError(t, err)
	assert.Equal(t, "default-llm", client.Name())
}

func TestRegistryResolveNotFound(t *testing.T) {
	reg := NewRegistry(silentLog())
	_, err := reg.Resolve("nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider")
}

func TestRegistryListAndChain(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("b", &MockClient{ProviderName: "b"})
	reg.Register("a", &MockClient{ProviderName: "a"})
	reg.Register("b", &MockClient{ProviderName: "b"})

	assert.Equal(t, []string{"a", "b"}, reg.List())
	assert.Equal(t, []string{"b", "a"}, reg.Chain())
}

func TestRegistryReRegisterKeepsPosition(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("a", &MockClient{ProviderName: "a"})
	reg.Register("b", &MockClient{ProviderName: "b"})
	reg.Register("a", &MockClient{ProviderName: "a2"})

	ps := reg.Providers()
	require.Len(t, ps, 2)
	assert.Equal(t, "a", ps[0].Name)
	assert.Equal(t, "a2", ps[0].Client.Name())
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&ProviderError{Code: 0}, true},
		{&ProviderError{Code: 401}, true},
		{&ProviderError{Code: 429}, true},
		{&ProviderError{Code: 529}, true},
		{&ProviderError{Code: 400}, false},
		{fmt.Errorf("wrapped: %w", &ProviderError{Code: 502}), true},
		{errors.New("Rate limit exceeded"), true},
		{errors.New("context deadline: timeout"), true},
		{errors.New("invalid api key format"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Retryable(tt.err), "%v", tt.err)
	}
}

func TestProviderErrorMessage(t *testing.T) {
	assert.Equal(t, "openai: 429 slow down", (&ProviderError{Provider: "openai", Code: 429, Message: "slow down"}).Error())
	assert.Equal(t, "ollama: connection refused", (&ProviderError{Provider: "ollama", Message: "connection refused"}).Error())
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		APIKey:   "sk-test",
		Fallbacks: []config.LLMProviderConfig{
			{Provider: "ollama", Model: "llama3"},
			{Provider: "claude", Model: "claude-sonnet-4-5", APIKey: "k"},
			{Provider: "ollama", Model: "mistral"},
		},
	}
	reg, err := NewRegistryFromConfig(cfg, silentLog())
	require.NoError(t, err)

	assert.Equal(t, []string{"openai", "ollama", "claude"}, reg.Chain())

	c, err := reg.Resolve("llama3")
	require.NoError(t, err)
	assert.Equal(t, "ollama", c.Name())

	c, err = reg.Resolve("anything")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())
}

func TestNewRegistryFromConfigUnknownProvider(t *testing.T) {
	_, err := NewRegistryFromConfig(config.LLMConfig{Provider: "bard"}, silentLog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown LLM provider")
}

func TestNewClient(t *testing.T) {
	for _, name := range []string{"openai", "claude", "gemini", "ollama"} {
		c, err := NewClient(name, "m", "k", "")
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
}

// --- Mock tests ---

func TestMockClientDefaultComplete(t *testing.T) {
	mock := &MockClient{ProviderName: "mock"}
	resp, err := mock.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "mock response", resp.Content)
	assert.Len(t, mock.Requests(), 1)
}

func TestMockClientCompleteError(t *testing.T) {
	mock := &MockClient{
		CompleteFunc: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return nil, &ProviderError{Provider: "mock", Message: "overloaded", Code: 529}
		},
	}
	_, err := mock.Complete(context.Background(), CompletionRequest{})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 529, pe.Code)
}

func TestScript(t *testing.T) {
	mock := &MockClient{CompleteFunc: Script(
		&CompletionResponse{Content: "first"},
		&CompletionResponse{Content: "second"},
	)}
	ctx := context.Background()
	for _, want := range []string{"first", "second", "second"} {
		resp, err := mock.Complete(ctx, CompletionRequest{})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Content)
	}
}

func TestProviderErrorFormat(t *testing.T) {
	assert.Equal(t, "claude: 429 rate limited", (&ProviderError{Provider: "claude", Message: "rate limited", Code: 429}).Error())
	assert.Equal(t, "ollama: connection refused", (&ProviderError{Provider: "ollama", Message: "connection refused"}).Error())
}

// --- OpenAI ---

func TestOpenAIComplete(t *testing.T) {
	var body map[string]any
	reply := `{
		"model": "gpt-4o-mini",
		"choices": [{
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{"id": "call_9", "type": "function", "function": {"name": "delete_sequence", "arguments": "{\"message_id\":\"m2\"}"}}]
			}
		}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 3}
	}`
	srv := captureServer(t, http.StatusOK, reply, &body)

	c := NewOpenAIAPIClient("sk-test", "gpt-4o-mini", srv.URL)
	resp, err := c.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_9", resp.ToolCalls[0].ID)
	assert.Equal(t, "delete_sequence", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"message_id":"m2"}`, resp.ToolCalls[0].Input)
	assert.Equal(t, 12, resp.Usage.InputTokens)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, "auto", body["tool_choice"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 5)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assistant := msgs[2].(map[string]any)
	assert.Len(t, assistant["tool_calls"], 1)
	tool := msgs[3].(map[string]any)
	assert.Equal(t, "call_1", tool["tool_call_id"])
}

func TestOpenAIResponseFormat(t *testing.T) {
	var body map[string]any
	srv := captureServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"{}"}}]}`, &body)

	c := NewOpenAIAPIClient("k", "gpt-4o-mini", srv.URL)
	_, err := c.Complete(context.Background(), CompletionRequest{
		Messages:       []Message{{Role: RoleUser, Content: "hi"}},
		ResponseFormat: &ResponseFormat{Name: "outreach", Schema: `{"type":"object"}`},
	})
	require.NoError(t, err)

	rf := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
	assert.NotContains(t, body, "tools")
}

func TestOpenAIToolChoiceNoneOmitsTools(t *testing.T) {
	var body map[string]any
	srv := captureServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`, &body)

	req := sampleRequest()
	req.ToolChoice = ToolChoiceNone
	_, err := NewOpenAIAPIClient("k", "m", srv.URL).Complete(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, body, "tools")
}

func TestOpenAIErrorStatus(t *testing.T) {
	srv := captureServer(t, http.StatusTooManyRequests, `{"error":"rate limit"}`, nil)

	_, err := NewOpenAIAPIClient("k", "m", srv.URL).Complete(context.Background(), sampleRequest())
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 429, pe.Code)
	assert.Equal(t, "openai", pe.Provider)
}

func TestOpenAINoChoices(t *testing.T) {
	srv := captureServer(t, http.StatusOK, `{"choices":[]}`, nil)
	_, err := NewOpenAIAPIClient("k", "m", srv.URL).Complete(context.Background(), sampleRequest())
	require.Error(t, err)
}

// --- Claude ---

func TestClaudeComplete(t *testing.T) {
	var body map[string]any
	reply := `{
		"model": "claude-sonnet-4-5",
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "On it."},
			{"type": "tool_use", "id": "toolu_1", "name": "finalize_sequence", "input": {}}
		],
		"usage": {"input_tokens": 20, "output_tokens": 5}
	}`
	srv := captureServer(t, http.StatusOK, reply, &body)

	c := NewClaudeAPIClient("k", "claude-sonnet-4-5")
	c.url = srv.URL
	resp, err := c.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, "On it.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{}`, resp.ToolCalls[0].Input)

	assert.Equal(t, "You are a recruiter assistant.", body["system"])
	msgs := body["messages"].([]any)
	// user, assistant(tool_use), user(tool_result + context)
	require.Len(t, msgs, 3)
	last := msgs[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	blocks := last["content"].([]any)
	require.Len(t, blocks, 2)
	assert.Equal(t, "tool_result", blocks[0].(map[string]any)["type"])
	assert.Equal(t, "call_1", blocks[0].(map[string]any)["tool_use_id"])
}

func TestClaudeResponseFormatInSystem(t *testing.T) {
	var body map[string]any
	srv := captureServer(t, http.StatusOK, `{"content":[{"type":"text","text":"{}"}]}`, &body)

	c := NewClaudeAPIClient("k", "m")
	c.url = srv.URL
	_, err := c.Complete(context.Background(), CompletionRequest{
		System:         "base",
		Messages:       []Message{{Role: RoleUser, Content: "hi"}},
		ResponseFormat: &ResponseFormat{Name: "x", Schema: `{"type":"object"}`},
	})
	require.NoError(t, err)
	assert.Contains(t, body["system"], "JSON Schema")
	assert.Equal(t, float64(claudeMaxTokens), body["max_tokens"])
}

// --- Gemini ---

func TestGeminiComplete(t *testing.T) {
	var body map[string]any
	reply := `{
		"candidates": [{
			"finishReason": "STOP",
			"content": {"role": "model", "parts": [
				{"functionCall": {"name": "edit_sequence", "args": {"edit_instruction": "shorter"}}}
			]}
		}],
		"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 2}
	}`
	srv := captureServer(t, http.StatusOK, reply, &body)

	g := NewGeminiAPIClient("k", "gemini-2.0-flash")
	g.baseURL = srv.URL
	resp, err := g.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "edit_sequence", resp.ToolCalls[0].Name)
	assert.NotEmpty(t, resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"edit_instruction":"shorter"}`, resp.ToolCalls[0].Input)
	assert.Equal(t, 7, resp.Usage.InputTokens)

	contents := body["contents"].([]any)
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	assert.Contains(t, body, "systemInstruction")
	assert.Contains(t, body, "tools")
}

// --- Ollama ---

func TestOllamaComplete(t *testing.T) {
	var body map[string]any
	reply := `{
		"model": "llama3",
		"done": true,
		"message": {"role": "assistant", "content": "", "tool_calls": [
			{"function": {"name": "add_to_sequence", "arguments": {"add_instruction": "thank you note"}}}
		]},
		"prompt_eval_count": 30,
		"eval_count": 4
	}`
	srv := captureServer(t, http.StatusOK, reply, &body)

	o := NewOllamaAPIClient(srv.URL+"/", "llama3")
	resp, err := o.Complete(context.Background(), sampleRequest())
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "add_to_sequence", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"add_instruction":"thank you note"}`, resp.ToolCalls[0].Input)
	assert.Equal(t, false, body["stream"])
	assert.Len(t, body["messages"], 5)
}

func TestOllamaResponseFormat(t *testing.T) {
	var body map[string]any
	srv := captureServer(t, http.StatusOK, `{"message":{"role":"assistant","content":"{}"}}`, &body)

	_, err := NewOllamaAPIClient(srv.URL, "llama3").Complete(context.Background(), CompletionRequest{
		Messages:       []Message{{Role: RoleUser, Content: "hi"}},
		ResponseFormat: &ResponseFormat{Name: "x", Schema: `{"type":"object"}`},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "object"}, body["format"])
}

// --- helpers ---

func TestParseJSONSchema(t *testing.T) {
	assert.Equal(t, "object", parseJSONSchema("")["type"])
	assert.Nil(t, parseJSONSchema("{bad"))
	assert.Equal(t, "object", parseJSONSchema(`{"type":"object"}`)["type"])
}

func TestToolInputJSON(t *testing.T) {
	assert.JSONEq(t, `{"a":1}`, string(toolInputJSON(`{"a":1}`)))
	assert.JSONEq(t, `{}`, string(toolInputJSON(`not json`)))
	assert.JSONEq(t, `{}`, string(toolInputJSON("")))
}

func TestCompletionRequestJSON(t *testing.T) {
	data, err := json.Marshal(sampleRequest())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"toolChoice":"auto"`)
	assert.Contains(t, string(data), `"toolCallId":"call_1"`)
}
