package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Gateway.Debounce(); got != 15*time.Second {
		t.Errorf("debounce = %v, want 15s", got)
	}
	if cfg.Agent.MaxToolRounds != 10 || cfg.Agent.LoopWindow != 3 || cfg.Agent.LoopRepeatThreshold != 1 {
		t.Errorf("loop defaults = %+v", cfg.Agent)
	}
	if cfg.Sessions.StateTTL() != 30*time.Minute {
		t.Errorf("state ttl = %v", cfg.Sessions.StateTTL())
	}
}

func TestLoadJSON5AndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	data := `{
		// comments are allowed
		gateway: { debounce_ms: 2000, inflight_policy: "bogus" },
		agent: { max_tool_rounds: 4 },
		channels: { whatsapp: { allow_from: [5511999999999, "5511888888888"] } },
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RADAR_OPENAI_API_KEY", "sk-test")
	t.Setenv("RADAR_PORT", "9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.DebounceMs != 2000 {
		t.Errorf("debounce_ms = %d, want 2000", cfg.Gateway.DebounceMs)
	}
	if cfg.Gateway.InflightPolicy != "queue" {
		t.Errorf("inflight_policy = %q, want queue", cfg.Gateway.InflightPolicy)
	}
	if cfg.Agent.MaxToolRounds != 4 {
		t.Errorf("max_tool_rounds = %d, want 4", cfg.Agent.MaxToolRounds)
	}
	if cfg.Gateway.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Gateway.Port)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-test" {
		t.Errorf("api key not read from env")
	}
	allow := cfg.Channels.WhatsApp.AllowFrom
	if len(allow) != 2 || allow[0] != "5511999999999" {
		t.Errorf("allow_from = %v", allow)
	}
	if m := cfg.MaskedCopy(); m.Providers.OpenAI.APIKey != secretMask {
		t.Errorf("masked key = %q", m.Providers.OpenAI.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, true},
		{"evolution without url", func(c *Config) { c.Channels.WhatsApp.Enabled = true }, true},
		{"bridge ok", func(c *Config) {
			c.Channels.WhatsApp.Enabled = true
			c.Channels.WhatsApp.Transport = TransportBridge
			c.Channels.WhatsApp.BridgeURL = "ws://localhost:3001"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte(`{gateway: {debounce_ms: 1000}}`), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan *Config, 1)
	go Watch(ctx, path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{gateway: {debounce_ms: 3000}}`), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changed:
		if c.Gateway.DebounceMs != 3000 {
			t.Errorf("debounce_ms = %d, want 3000", c.Gateway.DebounceMs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}
