// Package provider maps provider names to the LLM adapters that serve them.
// The set of providers is closed; lookups are case-insensitive.
package provider

import (
	"sort"
	"strings"

	"github.com/fleveque/wyckoff-journal/internal/config"
	"github.com/fleveque/wyckoff-journal/internal/llm"
	"github.com/fleveque/wyckoff-journal/internal/model"
)

// Registry is a read-only lookup of adapters by lowercase provider name.
type Registry struct {
	clients map[string]llm.Client
}

// NewRegistry builds one adapter per known provider from the LLM settings.
// Adapters hold no credential, so every provider is registered even when no
// key is preconfigured; the caller may still supply one per request.
func NewRegistry(cfg config.LLMConfig) *Registry {
	clients := make([]llm.Client, 0, len(model.AllProviders))
	for _, name := range model.AllProviders {
		pc, _ := cfg.Provider(name)
		if c := newClient(name, pc, cfg); c != nil {
			clients = append(clients, c)
		}
	}
	return NewRegistryFromClients(clients...)
}

// newClient builds the adapter for one provider name, or nil for a name
// this build has no adapter for.
func newClient(name string, pc config.ProviderConfig, cfg config.LLMConfig) llm.Client {
	switch name {
	case model.ProviderGemini:
		return llm.NewGeminiClient(pc.BaseURL)
	case model.ProviderOpenAI:
		return llm.NewOpenAIClient(pc.BaseURL, cfg.Timeout)
	case model.ProviderDeepseek:
		return llm.NewDeepseekClient(pc.BaseURL, cfg.Timeout)
	case model.ProviderAnthropic:
		return llm.NewAnthropicClient(pc.BaseURL, cfg.Timeout, cfg.MaxTokens)
	default:
		return nil
	}
}

// NewRegistryFromClients registers the given adapters under their
// ProviderName. A later client replaces an earlier one with the same name.
func NewRegistryFromClients(clients ...llm.Client) *Registry {
	r := &Registry{clients: make(map[string]llm.Client, len(clients))}
	for _, c := range clients {
		r.clients[strings.ToLower(c.ProviderName())] = c
	}
	return r
}

// Get returns the adapter for name, ignoring case.
func (r *Registry) Get(name string) (llm.Client, bool) {
	c, ok := r.clients[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is one of the providers this build supports,
// whether or not it is registered.
func Known(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range model.AllProviders {
		if p == name {
			return true
		}
	}
	return false
}
