package cmd

import (
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/radar/internal/config"
	"github.com/nextlevelbuilder/radar/internal/providers"
)

var defaultModels = map[string]string{
	"openai":     "gpt-4o-mini",
	"openrouter": "openai/gpt-4o-mini",
}

// newProvider builds the configured LLM provider. Both supported providers
// speak the OpenAI chat completions API.
func newProvider(cfg *config.Config) (providers.Provider, error) {
	name := cfg.Agent.Provider
	pc, ok := cfg.Providers.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	if pc.APIKey == "" {
		return nil, fmt.Errorf("provider %s has no API key (set RADAR_%s_API_KEY)", name, envName(name))
	}
	model := cfg.Agent.Model
	if model == "" {
		model = defaultModels[name]
	}
	slog.Info("registered provider", "name", name, "model", model)
	p := providers.NewOpenAIProvider(name, pc.APIKey, pc.APIBase, model)
	if pc.Retries > 0 {
		rc := providers.DefaultRetryConfig()
		rc.Attempts = pc.Retries + 1
		p.SetRetry(rc)
	}
	return p, nil
}

func envName(provider string) string {
	switch provider {
	case "openrouter":
		return "OPENROUTER"
	default:
		return "OPENAI"
	}
}
