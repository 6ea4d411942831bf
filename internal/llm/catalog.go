package llm

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var catalogFiles embed.FS

// ModelInfo describes one selectable model in the catalog.
type ModelInfo struct {
	ID            string `yaml:"id" json:"id"`
	DisplayName   string `yaml:"display_name" json:"display_name"`
	Description   string `yaml:"description" json:"description"`
	ContextWindow int    `yaml:"context_window" json:"context_window"`
	MaxOutput     int    `yaml:"max_output" json:"max_output"`
	Streaming     bool   `yaml:"streaming" json:"streaming"`
}

// ProviderModels groups the models of one provider.
type ProviderModels struct {
	Provider string      `yaml:"provider" json:"provider"`
	Models   []ModelInfo `yaml:"models" json:"models"`
}

// Catalog serves the embedded model metadata files. Files load once and
// are immutable afterwards.
type Catalog struct {
	mu        sync.RWMutex
	providers []ProviderModels
}

// NewCatalog loads every embedded provider file.
func NewCatalog() (*Catalog, error) {
	c := &Catalog{}
	for _, name := range []string{"openai", "anthropic", "lorem"} {
		if err := c.loadProviderFile(name); err != nil {
			return nil, fmt.Errorf("failed to load %s catalog: %w", name, err)
		}
	}
	return c, nil
}

func (c *Catalog) loadProviderFile(provider string) error {
	filename := fmt.Sprintf("config/%s.yaml", provider)
	data, err := catalogFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	var pm ProviderModels
	if err := yaml.Unmarshal(data, &pm); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}

	c.mu.Lock()
	c.providers = append(c.providers, pm)
	c.mu.Unlock()
	return nil
}

// List returns all providers with their models, in load order.
func (c *Catalog) List() []ProviderModels {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ProviderModels, len(c.providers))
	copy(out, c.providers)
	return out
}

// Lookup returns the catalog entry for a model ID.
func (c *Catalog) Lookup(modelID string) (ModelInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, pm := range c.providers {
		for _, m := range pm.Models {
			if m.ID == modelID {
				return m, true
			}
		}
	}
	return ModelInfo{}, false
}
