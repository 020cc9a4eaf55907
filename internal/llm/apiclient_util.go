package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/soyeahso/helix/internal/version"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	maxErrorBody       = 512
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// postJSON sends body as JSON and decodes a 200 response into out.
// Transport failures and non-200 statuses come back as *ProviderError.
func postJSON(ctx context.Context, hc *http.Client, provider, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return &ProviderError{Provider: provider, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{Provider: provider, Message: "failed to read response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return &ProviderError{Provider: provider, Message: msg, Code: resp.StatusCode}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &ProviderError{Provider: provider, Message: "failed to parse response: " + err.Error()}
	}
	return nil
}

// parseJSONSchema converts a JSON schema string to a map.
func parseJSONSchema(schemaStr string) map[string]any {
	if schemaStr == "" {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	var schema map[string]any
	if err := json.Unmarshal([]byte(schemaStr), &schema); err != nil {
		// If parsing fails, return nil - the API will handle the error
		return nil
	}
	return schema
}

// parseToolInput decodes a tool call's JSON argument string into an
// object, returning an empty object for blank or invalid input.
func parseToolInput(input string) map[string]any {
	args := map[string]any{}
	if input == "" {
		return args
	}
	_ = json.Unmarshal([]byte(input), &args)
	return args
}

// encodeArgs renders a decoded argument object back to a JSON string.
func encodeArgs(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// toolInputJSON returns the call arguments as a JSON object, substituting
// an empty object when the model produced something unparseable.
func toolInputJSON(input string) json.RawMessage {
	if json.Valid([]byte(input)) && len(parseToolInput(input)) > 0 {
		return json.RawMessage(input)
	}
	return json.RawMessage("{}")
}

// schemaInstruction renders a response format as a prompt suffix for
// providers without native schema enforcement.
func schemaInstruction(rf *ResponseFormat) string {
	if rf == nil {
		return ""
	}
	return "Respond only with a JSON object matching this JSON Schema, with no surrounding prose:\n" + rf.Schema
}
