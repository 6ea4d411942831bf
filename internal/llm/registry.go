// Package llm routes completion requests to the configured providers and
// serves the embedded model catalog.
package llm

import (
	"fmt"

	"corai/internal/domain/services"
)

// Registry resolves a model name to the provider that serves it. Providers
// are consulted in registration order, so more specific providers should be
// registered first.
type Registry struct {
	providers    []services.LLMProvider
	defaultModel string
}

// NewRegistry creates a registry with the given default model.
func NewRegistry(defaultModel string) *Registry {
	return &Registry{defaultModel: defaultModel}
}

// Register adds a provider to the routing table.
func (r *Registry) Register(p services.LLMProvider) {
	r.providers = append(r.providers, p)
}

// DefaultModel returns the model used when a request names none.
func (r *Registry) DefaultModel() string {
	return r.defaultModel
}

// Resolve returns the model to use and the provider that serves it. An
// empty model resolves to the default.
func (r *Registry) Resolve(model string) (string, services.LLMProvider, error) {
	if model == "" {
		model = r.defaultModel
	}
	for _, p := range r.providers {
		if p.SupportsModel(model) {
			return model, p, nil
		}
	}
	return "", nil, fmt.Errorf("no provider supports model '%s'", model)
}

// Providers returns the registered providers in routing order.
func (r *Registry) Providers() []services.LLMProvider {
	return r.providers
}
