package config

// ChannelsConfig contains the messaging channel configurations.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

// WhatsApp transports.
const (
	TransportEvolution = "evolution"
	TransportBridge    = "bridge"
)

type WhatsAppConfig struct {
	Enabled   bool                `json:"enabled"`
	Transport string              `json:"transport"` // "evolution" (default) or "bridge"
	AllowFrom FlexibleStringSlice `json:"allow_from"`
	DMPolicy  string              `json:"dm_policy,omitempty"` // "open" (default), "allowlist", "disabled"

	// Evolution API (REST out, webhook in).
	BaseURL  string `json:"base_url,omitempty"`
	Instance string `json:"instance,omitempty"`
	APIKey   string `json:"-"` // from env RADAR_EVOLUTION_API_KEY only

	// WebSocket bridge (both directions over one socket).
	BridgeURL string `json:"bridge_url,omitempty"`

	// SendRPS bounds outbound messages per second (default 5).
	SendRPS float64 `json:"send_rps,omitempty"`
}

// ProvidersConfig maps provider name to its config.
type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
}

type ProviderConfig struct {
	APIKey  string `json:"-"` // from env only
	APIBase string `json:"api_base,omitempty"`
	// Retries of transient failures per round; 0 disables.
	Retries int `json:"retries,omitempty"`
}

// Get returns the named provider's config.
func (p ProvidersConfig) Get(name string) (ProviderConfig, bool) {
	switch name {
	case "openai":
		return p.OpenAI, true
	case "openrouter":
		return p.OpenRouter, true
	}
	return ProviderConfig{}, false
}
