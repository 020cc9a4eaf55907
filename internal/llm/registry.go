package llm

import (
	"fmt"
	"slices"
	"sync"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
)

// Provider is a registered client and the name it was registered under.
type Provider struct {
	Name   string
	Client Client
}

// Registry holds provider clients in registration order. The first
// registered provider is the primary; the rest are tried in turn by the
// failover client. Model names can be aliased to a provider.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	aliases   map[string]string
	fallback  string
	log       *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client. Registering a name again replaces its client
// without changing its position.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(name); i >= 0 {
		r.providers[i].Client = client
	} else {
		r.providers = append(r.providers, Provider{Name: name, Client: client})
	}
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

func (r *Registry) indexLocked(name string) int {
	return slices.IndexFunc(r.providers, func(p Provider) bool { return p.Name == name })
}

// Alias routes a model name to a provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	r.aliases[model] = provider
	r.mu.Unlock()
}

// SetFallback names the provider used when nothing else matches.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	r.fallback = provider
	r.mu.Unlock()
}

// Resolve finds the client for a provider name or model alias, falling back
// to the default provider.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range []string{model, r.aliases[model], r.fallback} {
		if name == "" {
			continue
		}
		if i := r.indexLocked(name); i >= 0 {
			return r.providers[i].Client, nil
		}
	}
	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// Providers returns a snapshot of the registered providers, primary first.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.providers)
}

// Chain returns provider names in the order they are tried.
func (r *Registry) Chain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name
	}
	return names
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	names := r.Chain()
	slices.Sort(names)
	return names
}

// NewClient builds a provider client from its name and connection details.
func NewClient(provider, model, apiKey, endpoint string) (Client, error) {
	switch provider {
	case "openai":
		return NewOpenAIAPIClient(apiKey, model, endpoint), nil
	case "claude":
		return NewClaudeAPIClient(apiKey, model), nil
	case "gemini":
		return NewGeminiAPIClient(apiKey, model), nil
	case "ollama":
		return NewOllamaAPIClient(endpoint, model), nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", provider)
}

// NewRegistryFromConfig registers the primary provider then each fallback,
// skipping repeated providers. The primary is the default for unknown
// models.
func NewRegistryFromConfig(cfg config.LLMConfig, log *logging.Logger) (*Registry, error) {
	reg := NewRegistry(log)
	entries := append([]config.LLMProviderConfig{{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		Endpoint: cfg.Endpoint,
	}}, cfg.Fallbacks...)

	for i, e := range entries {
		if i > 0 && slices.Contains(reg.Chain(), e.Provider) {
			reg.log.Warn().Str("provider", e.Provider).Msg("duplicate fallback provider ignored")
			continue
		}
		client, err := NewClient(e.Provider, e.Model, e.APIKey, e.Endpoint)
		if err != nil {
			return nil, err
		}
		reg.Register(e.Provider, client)
		if e.Model != "" {
			reg.Alias(e.Model, e.Provider)
		}
	}
	reg.SetFallback(cfg.Provider)
	return reg, nil
}
