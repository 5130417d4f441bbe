package config

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
// Phone numbers in allow lists are often written as numbers.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the Radar gateway.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Agent     AgentConfig     `json:"agent"`
	Providers ProvidersConfig `json:"providers"`
	Channels  ChannelsConfig  `json:"channels"`
	Database  DatabaseConfig  `json:"database"`
	Sessions  SessionsConfig  `json:"sessions"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
	mu        sync.RWMutex
}

// GatewayConfig controls the HTTP server and the debounce scheduler.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	DebounceMs        int    `json:"debounce_ms"`         // burst quiet period (default 15000)
	PresencePaddingMs int    `json:"presence_padding_ms"` // extra "composing" time (default 5000)
	InflightPolicy    string `json:"inflight_policy"`     // "queue" (default) or "drop"

	DedupeTTLMinutes int `json:"dedupe_ttl_minutes,omitempty"` // inbound redelivery window (default 10)
	WebhookRPM       int `json:"webhook_rpm,omitempty"`        // per-source webhook requests per minute (default 30)

	// WebhookToken, when set, must be sent as the apikey header by the webhook caller.
	WebhookToken string `json:"-"` // from env RADAR_WEBHOOK_TOKEN only
}

// Debounce returns the debounce delay.
func (g GatewayConfig) Debounce() time.Duration {
	return time.Duration(g.DebounceMs) * time.Millisecond
}

// PresencePadding returns the extra presence time past the debounce delay.
func (g GatewayConfig) PresencePadding() time.Duration {
	return time.Duration(g.PresencePaddingMs) * time.Millisecond
}

// AgentConfig configures the tool loop and the conversation features.
type AgentConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`

	MaxToolRounds       int `json:"max_tool_rounds"`       // default 10
	LoopWindow          int `json:"loop_window"`           // default 3
	LoopRepeatThreshold int `json:"loop_repeat_threshold"` // default 1
	HistoryLimit        int `json:"history_limit"`         // default 10
	MaxMessageChars     int `json:"max_message_chars,omitempty"`

	Clarify              bool   `json:"clarify"`                // variant clarification dialog
	FirstContactGreeting bool   `json:"first_contact_greeting"` // greet users without history
	Workspace            string `json:"workspace"`              // editable prompt files
}

// DatabaseConfig selects the storage backend.
// PostgresDSN is NEVER read from the config file (secret), only from env RADAR_POSTGRES_DSN.
type DatabaseConfig struct {
	Driver      string `json:"driver"` // "postgres", "sqlite" or "memory"
	PostgresDSN string `json:"-"`
	SQLitePath  string `json:"sqlite_path,omitempty"`
	// CatalogFile is a JSON product list imported at startup (sqlite/memory).
	CatalogFile string `json:"catalog_file,omitempty"`
}

// SessionsConfig configures the per-user conversation states.
type SessionsConfig struct {
	Storage         string `json:"storage"`           // directory for state files; empty = memory only
	StateTTLMinutes int    `json:"state_ttl_minutes"` // default 30
	SweepCron       string `json:"sweep_cron"`        // default "*/5 * * * *"
}

// StateTTL returns the idle expiry of a conversation state.
func (s SessionsConfig) StateTTL() time.Duration {
	return time.Duration(s.StateTTLMinutes) * time.Minute
}

// TelemetryConfig configures OpenTelemetry export for traces and spans.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext connection (local dev)
	ServiceName string            `json:"service_name,omitempty"` // default "radar-gateway"
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (e.g. auth tokens for cloud backends)
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"` // default "/metrics"
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
func (c *Config) ReplaceFrom(src *Config) {
	src.mu.RLock()
	defer src.mu.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gateway = src.Gateway
	c.Agent = src.Agent
	c.Providers = src.Providers
	c.Channels = src.Channels
	c.Database = src.Database
	c.Sessions = src.Sessions
	c.Telemetry = src.Telemetry
	c.Metrics = src.Metrics
}

// Snapshot returns a copy of the data fields, safe to read without locking.
func (c *Config) Snapshot() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Config{
		Gateway:   c.Gateway,
		Agent:     c.Agent,
		Providers: c.Providers,
		Channels:  c.Channels,
		Database:  c.Database,
		Sessions:  c.Sessions,
		Telemetry: c.Telemetry,
		Metrics:   c.Metrics,
	}
}
