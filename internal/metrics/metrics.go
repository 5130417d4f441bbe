// Package metrics exposes Prometheus instrumentation for the gateway.
//
// Metrics implements agent.Recorder for turn, LLM and tool measurements and
// debounce.Observer for scheduler events. Inbound and outbound traffic is
// counted by the webhook handler and WrapTransport.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nextlevelbuilder/radar/internal/channels"
	"github.com/nextlevelbuilder/radar/internal/providers"
)

const namespace = "radar"

type Metrics struct {
	gatherer prometheus.Gatherer

	// Labels: channel, result (accepted|ignored|rejected|error)
	InboundMessages *prometheus.CounterVec

	// Labels: kind (text|presence), status (success|error)
	OutboundMessages *prometheus.CounterVec

	// Labels: event (fired|superseded|deferred|dropped|failed)
	DebounceEvents *prometheus.CounterVec

	// Labels: outcome (reply|repeat|round_limit|empty|error)
	Turns        *prometheus.CounterVec
	TurnDuration prometheus.Histogram

	// Labels: provider, model, status (success|error)
	LLMRequests        *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	// Labels: provider, model, type (prompt|completion)
	LLMTokens *prometheus.CounterVec

	// Labels: tool, status (success|error)
	ToolCalls        *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
}

// New registers all metrics with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		InboundMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound chat messages by channel and result.",
		}, []string{"channel", "result"}),

		OutboundMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Outbound text and presence deliveries by status.",
		}, []string{"kind", "status"}),

		DebounceEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_events_total",
			Help:      "Debounce scheduler timer outcomes.",
		}, []string{"event"}),

		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed tool-loop turns by outcome.",
		}, []string{"outcome"}),

		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of a tool-loop turn in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),

		LLMRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM requests by provider, model and status.",
		}, []string{"provider", "model", "status"}),

		LLMRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM API requests in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		LLMTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens used by provider, model and type.",
		}, []string{"provider", "model", "type"}),

		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool and status.",
		}, []string{"tool", "status"}),

		ToolCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool executions in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"tool"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func status(failed bool) string {
	if failed {
		return "error"
	}
	return "success"
}

// --- agent.Recorder ---

func (m *Metrics) LLMCall(provider, model string, d time.Duration, usage *providers.Usage, err error) {
	m.LLMRequests.WithLabelValues(provider, model, status(err != nil)).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(d.Seconds())
	if usage != nil {
		m.LLMTokens.WithLabelValues(provider, model, "prompt").Add(float64(usage.PromptTokens))
		m.LLMTokens.WithLabelValues(provider, model, "completion").Add(float64(usage.CompletionTokens))
	}
}

func (m *Metrics) ToolCall(tool string, d time.Duration, isError bool) {
	m.ToolCalls.WithLabelValues(tool, status(isError)).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) Turn(outcome string, d time.Duration) {
	m.Turns.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(d.Seconds())
}

// --- debounce.Observer ---

func (m *Metrics) Fired(string)      { m.DebounceEvents.WithLabelValues("fired").Inc() }
func (m *Metrics) Superseded(string) { m.DebounceEvents.WithLabelValues("superseded").Inc() }
func (m *Metrics) Failed(string)     { m.DebounceEvents.WithLabelValues("failed").Inc() }

func (m *Metrics) Deferred(_ string, dropped bool) {
	if dropped {
		m.DebounceEvents.WithLabelValues("dropped").Inc()
		return
	}
	m.DebounceEvents.WithLabelValues("deferred").Inc()
}

// --- traffic ---

func (m *Metrics) Inbound(channel, result string) {
	m.InboundMessages.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) Outbound(kind string, err error) {
	m.OutboundMessages.WithLabelValues(kind, status(err != nil)).Inc()
}

// WrapTransport counts deliveries made through t.
func (m *Metrics) WrapTransport(t channels.Transport) channels.Transport {
	return &countingTransport{next: t, m: m}
}

type countingTransport struct {
	next channels.Transport
	m    *Metrics
}

func (c *countingTransport) SendText(ctx context.Context, recipient, text string) error {
	err := c.next.SendText(ctx, recipient, text)
	c.m.Outbound("text", err)
	return err
}

func (c *countingTransport) SendPresence(ctx context.Context, recipient, state string, ttl time.Duration) error {
	err := c.next.SendPresence(ctx, recipient, state, ttl)
	c.m.Outbound("presence", err)
	return err
}
