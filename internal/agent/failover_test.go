package agent

import (
	"context"
	"testing"

	"github.com/soyeahso/helix/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(err error) *llm.MockClient {
	return &llm.MockClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, err
	}}
}

func answering(text string) *llm.MockClient {
	return &llm.MockClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: text}, nil
	}}
}

func TestFailover_RetryableMovesOn(t *testing.T) {
	primary := failing(&llm.ProviderError{Provider: "openai", Message: "overloaded", Code: 503})
	backup := answering("from backup")

	reg := llm.NewRegistry(silentLog())
	reg.Register("openai", primary)
	reg.Register("claude", backup)

	fc := NewFailoverClient(reg, silentLog())
	resp, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Content)
	assert.Len(t, primary.Requests(), 1)
	assert.Len(t, backup.Requests(), 1)
	assert.Equal(t, "failover", fc.Name())
}

func TestFailover_NonRetryableStops(t *testing.T) {
	primary := failing(&llm.ProviderError{Provider: "openai", Message: "bad request", Code: 400})
	backup := answering("unused")

	reg := llm.NewRegistry(silentLog())
	reg.Register("openai", primary)
	reg.Register("claude", backup)

	_, err := NewFailoverClient(reg, silentLog()).Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.Empty(t, backup.Requests())
}

func TestFailover_AllFail(t *testing.T) {
	reg := llm.NewRegistry(silentLog())
	reg.Register("openai", failing(&llm.ProviderError{Provider: "openai", Code: 429}))
	reg.Register("gemini", failing(&llm.ProviderError{Provider: "gemini", Code: 500, Message: "boom"}))

	_, err := NewFailoverClient(reg, silentLog()).Complete(context.Background(), llm.CompletionRequest{})
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "gemini", pe.Provider)
}

func TestFailover_EmptyRegistry(t *testing.T) {
	_, err := NewFailoverClient(llm.NewRegistry(silentLog()), silentLog()).Complete(context.Background(), llm.CompletionRequest{})
	assert.Error(t, err)
}

func TestFailover_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &llm.MockClient{CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		cancel()
		return nil, &llm.ProviderError{Provider: "openai", Message: "timeout"}
	}}
	backup := answering("unused")

	reg := llm.NewRegistry(silentLog())
	reg.Register("openai", primary)
	reg.Register("claude", backup)

	_, err := NewFailoverClient(reg, silentLog()).Complete(ctx, llm.CompletionRequest{})
	require.Error(t, err)
	assert.Empty(t, backup.Requests())
}
