package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/radar/internal/bus"
	"github.com/nextlevelbuilder/radar/internal/config"
)

func TestConsumeInboundMessages(t *testing.T) {
	b := bus.New(8, time.Minute)
	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan struct{})
	handle := func(_ context.Context, msg bus.InboundMessage) error {
		mu.Lock()
		got = append(got, msg.SenderID+":"+msg.Content)
		n := len(got)
		mu.Unlock()
		if n == 2 {
			close(done)
		}
		return errors.New("ignored by the consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		consumeInboundMessages(ctx, b, handle)
		close(stopped)
	}()

	b.PublishInbound(bus.InboundMessage{Channel: "whatsapp", SenderID: "5511", Content: "oi", MessageID: "m1"})
	b.PublishInbound(bus.InboundMessage{Channel: "whatsapp", SenderID: "5522", Content: "cimento", MessageID: "m2"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages not consumed")
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, ",") != "5511:oi,5522:cimento" {
		t.Errorf("got = %v", got)
	}
}

func TestConsoleTransport(t *testing.T) {
	var buf bytes.Buffer
	c := newConsoleTransport(&buf, "5511")
	ctx := context.Background()

	_ = c.SendPresence(ctx, "5511", "composing", time.Second)
	_ = c.SendPresence(ctx, "5511", "paused", 0)
	_ = c.SendText(ctx, "5511", "Cheapest: Loja B")
	_ = c.SendText(ctx, "5599", "New order")

	out := buf.String()
	for _, want := range []string{"(typing...)", "Radar: Cheapest: Loja B", "[to 5599] New order"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "(typing...)") != 1 {
		t.Errorf("paused should print nothing:\n%s", out)
	}
}

func TestOpenStoresMemoryWithCatalog(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/catalog.json"
	body := `{"stores":[{"name":"Loja A","phone":"5511911110000"}],
	"products":[{"id":"a1","name":"Cimento","keywords":["cimento"],"price":38,"store":"Loja A"}]}`
	if err := writeFile(path, body); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Database.Driver = "memory"
	cfg.Database.CatalogFile = path

	stores, err := openStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	phone, err := stores.Catalog.StoreContact(context.Background(), "Loja A")
	if err != nil || phone != "5511911110000" {
		t.Errorf("StoreContact = %q, %v", phone, err)
	}
}

func TestOpenStoresUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "mongo"
	if _, err := openStores(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestNewProviderRequiresKey(t *testing.T) {
	cfg := config.Default()
	cfg.Providers.OpenAI.APIKey = ""
	if _, err := newProvider(cfg); err == nil || !strings.Contains(err.Error(), "RADAR_OPENAI_API_KEY") {
		t.Errorf("err = %v", err)
	}

	cfg.Providers.OpenAI.APIKey = "sk-test"
	p, err := newProvider(cfg)
	if err != nil {
		t.Fatalf("newProvider: %v", err)
	}
	if p.Name() != "openai" || p.DefaultModel() != cfg.Agent.Model {
		t.Errorf("provider = %s/%s", p.Name(), p.DefaultModel())
	}

	cfg.Agent.Provider = "anthropic"
	if _, err := newProvider(cfg); err == nil {
		t.Error("unknown provider should fail")
	}
}

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o644)
}
