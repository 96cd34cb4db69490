package llm

import (
	"genstudio/internal/config"
	"genstudio/internal/credential"
)

// Registry maps provider family names to their adapters.
type Registry map[string]ProviderClient

// NewRegistry builds the adapter set from configuration. Every family is
// registered; whether it is usable depends on the credential pool.
func NewRegistry(cfg config.Config) Registry {
	return Registry{
		credential.FamilyOpenAI:     NewOpenAI(""),
		credential.FamilyOpenRouter: NewOpenRouter(cfg.OpenRouterBaseURL),
		credential.FamilyGemini:     NewGemini(cfg.GeminiBaseURL),
		credential.FamilyVolcengine: NewVolcengine(),
	}
}

// Client returns the adapter for a family, or nil when none is registered.
func (r Registry) Client(family string) ProviderClient {
	return r[family]
}
