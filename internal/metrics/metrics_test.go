package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nextlevelbuilder/radar/internal/providers"
)

func TestRecorder(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.LLMCall("openai", "gpt-4o-mini", time.Second, &providers.Usage{PromptTokens: 100, CompletionTokens: 20}, nil)
	m.LLMCall("openai", "gpt-4o-mini", time.Second, nil, errors.New("timeout"))
	m.ToolCall("search_products", 10*time.Millisecond, false)
	m.ToolCall("search_products", 10*time.Millisecond, true)
	m.Turn("reply", 2*time.Second)
	m.Turn("repeat", time.Second)

	expected := `
		# HELP radar_llm_tokens_total Tokens used by provider, model and type.
		# TYPE radar_llm_tokens_total counter
		radar_llm_tokens_total{model="gpt-4o-mini",provider="openai",type="completion"} 20
		radar_llm_tokens_total{model="gpt-4o-mini",provider="openai",type="prompt"} 100
	`
	if err := testutil.CollectAndCompare(m.LLMTokens, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected tokens metric: %v", err)
	}

	if got := testutil.ToFloat64(m.LLMRequests.WithLabelValues("openai", "gpt-4o-mini", "error")); got != 1 {
		t.Errorf("llm error requests = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.ToolCalls); got != 2 {
		t.Errorf("tool call series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(m.Turns.WithLabelValues("repeat")); got != 1 {
		t.Errorf("repeat turns = %v, want 1", got)
	}
}

func TestObserver(t *testing.T) {
	m := New(nil)

	m.Fired("u1")
	m.Superseded("u1")
	m.Superseded("u1")
	m.Deferred("u1", false)
	m.Deferred("u1", true)
	m.Failed("u1")

	tests := []struct {
		event string
		want  float64
	}{
		{"fired", 1},
		{"superseded", 2},
		{"deferred", 1},
		{"dropped", 1},
		{"failed", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.DebounceEvents.WithLabelValues(tt.event)); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.event, got, tt.want)
		}
	}
}

type stubTransport struct{ err error }

func (s stubTransport) SendText(context.Context, string, string) error { return s.err }
func (s stubTransport) SendPresence(context.Context, string, string, time.Duration) error {
	return nil
}

func TestWrapTransport(t *testing.T) {
	m := New(nil)
	ctx := context.Background()

	ok := m.WrapTransport(stubTransport{})
	_ = ok.SendText(ctx, "1", "hi")
	_ = ok.SendPresence(ctx, "1", "composing", time.Second)

	failing := m.WrapTransport(stubTransport{err: errors.New("down")})
	if err := failing.SendText(ctx, "1", "hi"); err == nil {
		t.Fatal("expected error to pass through")
	}

	if got := testutil.ToFloat64(m.OutboundMessages.WithLabelValues("text", "success")); got != 1 {
		t.Errorf("text success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OutboundMessages.WithLabelValues("text", "error")); got != 1 {
		t.Errorf("text error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OutboundMessages.WithLabelValues("presence", "success")); got != 1 {
		t.Errorf("presence success = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New(nil)
	m.Inbound("whatsapp", "accepted")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `radar_inbound_messages_total{channel="whatsapp",result="accepted"} 1`) {
		t.Errorf("metrics output missing inbound counter:\n%s", body)
	}
}
