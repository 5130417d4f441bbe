package agent

import (
	"context"
	"sync"
	"time"

	"github.com/nextlevelbuilder/radar/internal/providers"
	"github.com/nextlevelbuilder/radar/internal/store"
)

// scriptedProvider replays canned responses in order. Once the script is
// exhausted it keeps returning fallback (or a plain "ok").
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*providers.ChatResponse
	errs      []error
	fallback  func(call int) *providers.ChatResponse
	calls     []providers.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req.Messages = append([]providers.Message(nil), req.Messages...)
	p.calls = append(p.calls, req)
	i := len(p.calls) - 1

	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i < len(p.responses) && p.responses[i] != nil {
		return p.responses[i], nil
	}
	if p.fallback != nil {
		return p.fallback(i), nil
	}
	return &providers.ChatResponse{Content: "ok"}, nil
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }
func (p *scriptedProvider) Name() string         { return "scripted" }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *scriptedProvider) call(i int) providers.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[i]
}

func text(s string) *providers.ChatResponse {
	return &providers.ChatResponse{Content: s, FinishReason: "stop", Usage: &providers.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
}

func toolCalls(calls ...providers.ToolCall) *providers.ChatResponse {
	return &providers.ChatResponse{ToolCalls: calls, FinishReason: "tool_calls"}
}

func tc(id, name, args string) providers.ToolCall {
	return providers.ToolCall{ID: id, Name: name, Arguments: args}
}

type sentText struct {
	to, text string
}

type sentPresence struct {
	to, state string
	ttl       time.Duration
}

// recordingTransport captures outbound traffic. Replies to users are also
// pushed to replies so tests can wait for them.
type recordingTransport struct {
	mu       sync.Mutex
	texts    []sentText
	presence []sentPresence
	replies  chan sentText
	err      error
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{replies: make(chan sentText, 32)}
}

func (r *recordingTransport) SendText(_ context.Context, to, text string) error {
	r.mu.Lock()
	r.texts = append(r.texts, sentText{to, text})
	r.mu.Unlock()
	select {
	case r.replies <- sentText{to, text}:
	default:
	}
	return r.err
}

func (r *recordingTransport) SendPresence(_ context.Context, to, state string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence = append(r.presence, sentPresence{to, state, ttl})
	return nil
}

func (r *recordingTransport) sent() []sentText {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentText(nil), r.texts...)
}

func (r *recordingTransport) presences() []sentPresence {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentPresence(nil), r.presence...)
}

type countingRecorder struct {
	mu       sync.Mutex
	llm      int
	tools    map[string]int
	outcomes []string
}

func (c *countingRecorder) LLMCall(string, string, time.Duration, *providers.Usage, error) {
	c.mu.Lock()
	c.llm++
	c.mu.Unlock()
}

func (c *countingRecorder) ToolCall(tool string, _ time.Duration, _ bool) {
	c.mu.Lock()
	if c.tools == nil {
		c.tools = map[string]int{}
	}
	c.tools[tool]++
	c.mu.Unlock()
}

func (c *countingRecorder) Turn(outcome string, _ time.Duration) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, outcome)
	c.mu.Unlock()
}

// failingHistory fails AppendHistory while failures > 0 and otherwise
// delegates to the wrapped store.
type failingHistory struct {
	store.HistoryStore
	mu       sync.Mutex
	failures int
	err      error
}

func (f *failingHistory) AppendHistory(ctx context.Context, turns ...store.ConversationTurn) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return f.err
	}
	f.mu.Unlock()
	return f.HistoryStore.AppendHistory(ctx, turns...)
}
