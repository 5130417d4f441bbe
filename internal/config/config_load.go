package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

const openRouterBase = "https://openrouter.ai/api/v1"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:              "0.0.0.0",
			Port:              18790,
			DebounceMs:        15000,
			PresencePaddingMs: 5000,
			InflightPolicy:    "queue",
			DedupeTTLMinutes:  10,
			WebhookRPM:        30,
		},
		Agent: AgentConfig{
			Provider:             "openai",
			Model:                "gpt-4o-mini",
			MaxTokens:            1024,
			Temperature:          0.3,
			MaxToolRounds:        10,
			LoopWindow:           3,
			LoopRepeatThreshold:  1,
			HistoryLimit:         10,
			MaxMessageChars:      8000,
			FirstContactGreeting: true,
			Workspace:            "~/.radar/workspace",
		},
		Providers: ProvidersConfig{
			OpenRouter: ProviderConfig{APIBase: openRouterBase},
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				Transport: TransportEvolution,
				DMPolicy:  "open",
				SendRPS:   5,
			},
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: "~/.radar/radar.db",
		},
		Sessions: SessionsConfig{
			Storage:         "~/.radar/sessions",
			StateTTLMinutes: 30,
			SweepCron:       "*/5 * * * *",
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	// Secrets
	envStr("RADAR_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("RADAR_OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("RADAR_EVOLUTION_API_KEY", &c.Channels.WhatsApp.APIKey)
	envStr("RADAR_WEBHOOK_TOKEN", &c.Gateway.WebhookToken)
	envStr("RADAR_POSTGRES_DSN", &c.Database.PostgresDSN)

	// Provider/model
	envStr("RADAR_PROVIDER", &c.Agent.Provider)
	envStr("RADAR_MODEL", &c.Agent.Model)
	envStr("RADAR_OPENAI_API_BASE", &c.Providers.OpenAI.APIBase)

	// Gateway
	envStr("RADAR_HOST", &c.Gateway.Host)
	envInt("RADAR_PORT", &c.Gateway.Port)
	envInt("RADAR_DEBOUNCE_MS", &c.Gateway.DebounceMs)
	envStr("RADAR_INFLIGHT_POLICY", &c.Gateway.InflightPolicy)

	// WhatsApp
	envStr("RADAR_EVOLUTION_URL", &c.Channels.WhatsApp.BaseURL)
	envStr("RADAR_EVOLUTION_INSTANCE", &c.Channels.WhatsApp.Instance)
	envStr("RADAR_WHATSAPP_BRIDGE_URL", &c.Channels.WhatsApp.BridgeURL)
	envStr("RADAR_WHATSAPP_TRANSPORT", &c.Channels.WhatsApp.Transport)

	// Auto-enable WhatsApp if a transport endpoint is provided via env
	if os.Getenv("RADAR_EVOLUTION_URL") != "" || os.Getenv("RADAR_WHATSAPP_BRIDGE_URL") != "" {
		c.Channels.WhatsApp.Enabled = true
	}

	// Storage
	envStr("RADAR_DB_DRIVER", &c.Database.Driver)
	envStr("RADAR_SQLITE_PATH", &c.Database.SQLitePath)
	envStr("RADAR_CATALOG_FILE", &c.Database.CatalogFile)
	envStr("RADAR_WORKSPACE", &c.Agent.Workspace)
	envStr("RADAR_SESSIONS_STORAGE", &c.Sessions.Storage)

	// Telemetry
	envStr("RADAR_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("RADAR_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("RADAR_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	envBool("RADAR_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envBool("RADAR_TELEMETRY_INSECURE", &c.Telemetry.Insecure)
}

// normalize fills zero values that would break the runtime.
func (c *Config) normalize() {
	d := Default()
	if c.Gateway.DebounceMs <= 0 {
		c.Gateway.DebounceMs = d.Gateway.DebounceMs
	}
	if c.Gateway.PresencePaddingMs < 0 {
		c.Gateway.PresencePaddingMs = 0
	}
	switch c.Gateway.InflightPolicy {
	case "queue", "drop":
	default:
		c.Gateway.InflightPolicy = "queue"
	}
	if c.Agent.MaxToolRounds <= 0 {
		c.Agent.MaxToolRounds = d.Agent.MaxToolRounds
	}
	if c.Agent.LoopWindow <= 0 {
		c.Agent.LoopWindow = d.Agent.LoopWindow
	}
	if c.Agent.LoopRepeatThreshold <= 0 {
		c.Agent.LoopRepeatThreshold = d.Agent.LoopRepeatThreshold
	}
	if c.Agent.HistoryLimit <= 0 {
		c.Agent.HistoryLimit = d.Agent.HistoryLimit
	}
	if c.Sessions.StateTTLMinutes <= 0 {
		c.Sessions.StateTTLMinutes = d.Sessions.StateTTLMinutes
	}
	if c.Sessions.SweepCron == "" {
		c.Sessions.SweepCron = d.Sessions.SweepCron
	}
	if c.Channels.WhatsApp.Transport == "" {
		c.Channels.WhatsApp.Transport = TransportEvolution
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
}

// Validate reports settings the gateway cannot run with.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.Database.Driver {
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("database driver postgres requires RADAR_POSTGRES_DSN")
		}
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	wa := c.Channels.WhatsApp
	if wa.Enabled {
		switch wa.Transport {
		case TransportEvolution:
			if wa.BaseURL == "" || wa.Instance == "" {
				return fmt.Errorf("whatsapp evolution transport requires base_url and instance")
			}
		case TransportBridge:
			if wa.BridgeURL == "" {
				return fmt.Errorf("whatsapp bridge transport requires bridge_url")
			}
		default:
			return fmt.Errorf("unknown whatsapp transport %q", wa.Transport)
		}
	}
	return nil
}

// Hash returns a SHA-256 hash of the config for change detection.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// WorkspacePath returns the expanded workspace path.
func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Agent.Workspace)
}

const secretMask = "***"

// MaskedCopy returns a copy of the config with all secret fields masked.
// Used by `radar doctor` to print the effective config.
func (c *Config) MaskedCopy() *Config {
	cp := c.Snapshot()
	maskNonEmpty(&cp.Providers.OpenAI.APIKey)
	maskNonEmpty(&cp.Providers.OpenRouter.APIKey)
	maskNonEmpty(&cp.Channels.WhatsApp.APIKey)
	maskNonEmpty(&cp.Gateway.WebhookToken)
	maskNonEmpty(&cp.Database.PostgresDSN)
	return cp
}

func maskNonEmpty(s *string) {
	if *s != "" {
		*s = secretMask
	}
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
