package agent

import (
	"context"
	"errors"

	"github.com/soyeahso/helix/internal/llm"
	"github.com/soyeahso/helix/internal/logging"
)

var errNoProviders = errors.New("no LLM providers registered")

// FailoverClient is an llm.Client over a whole registry. It asks the
// providers in order and moves on only when llm.Retryable says another
// provider might succeed.
type FailoverClient struct {
	registry *llm.Registry
	log      *logging.Logger
}

// NewFailoverClient creates a client over every provider in registry.
func NewFailoverClient(registry *llm.Registry, log *logging.Logger) *FailoverClient {
	return &FailoverClient{registry: registry, log: log.Sub("failover")}
}

// Name implements llm.Client.
func (f *FailoverClient) Name() string { return "failover" }

// Complete implements llm.Client. Each provider uses its own configured
// model; the last error is returned when all of them fail.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	err := errNoProviders
	for _, p := range f.registry.Providers() {
		var resp *llm.CompletionResponse
		resp, err = p.Client.Complete(ctx, req)
		switch {
		case err == nil:
			return resp, nil
		case ctx.Err() != nil, !llm.Retryable(err):
			return nil, err
		}
		f.log.Warn().Err(err).Str("provider", p.Name).Msg("provider failed, trying next")
	}
	return nil, err
}
