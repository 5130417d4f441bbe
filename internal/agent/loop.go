package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/radar/internal/budget"
	"github.com/nextlevelbuilder/radar/internal/channels"
	"github.com/nextlevelbuilder/radar/internal/providers"
	"github.com/nextlevelbuilder/radar/internal/tools"
)

// Fixed replies produced by the loop itself.
const (
	MsgNotUnderstood = "Sorry, I did not understand."
	MsgLoopDetected  = "Sorry, I ran into a problem processing your request. Could you rephrase it?"
	MsgRoundLimit    = "Sorry, something went wrong while processing your request."
)

const (
	defaultMaxRounds       = 10
	defaultMaxMessageChars = 8000
	finalizeToolName       = "finalize_purchase"
)

// State is the position of a run in the tool loop.
type State string

const (
	StateAwaitingModel  State = "AWAITING_MODEL"
	StateExecutingTools State = "EXECUTING_TOOLS"
	StateDone           State = "DONE"
	StateAborted        State = "ABORTED"
)

// Abort reasons reported in RunResult.Outcome.
const (
	OutcomeReply       = "reply"
	OutcomeRepeat      = "repeat"
	OutcomeRoundLimit  = "round_limit"
	OutcomeEmptyAnswer = "empty"
)

// Loop drives one turn of model calls and tool executions for a user.
// A Loop is safe for concurrent use; every Run owns its own call history.
type Loop struct {
	provider        providers.Provider
	model           string
	tools           *tools.Registry
	transport       channels.Transport
	systemPrompt    func(segment string) string
	maxRounds       int
	loopWindow      int
	repeatThreshold int
	maxTokens       int
	temperature     float64
	maxMessageChars int
	recorder        Recorder
}

// LoopConfig configures a new Loop.
type LoopConfig struct {
	Provider  providers.Provider
	Model     string // empty = provider default
	Tools     *tools.Registry
	Transport channels.Transport // out-of-band store notices

	// SystemPrompt is rendered at the start of every run for the run's
	// catalog segment.
	SystemPrompt func(segment string) string

	MaxRounds       int // default 10
	LoopWindow      int // default 3
	RepeatThreshold int // default 1
	MaxTokens       int
	Temperature     float64
	MaxMessageChars int // longer user turns are truncated; default 8000

	Recorder Recorder // nil = no metrics
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = defaultMaxMessageChars
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.NewRegistry()
	}
	model := cfg.Model
	if model == "" && cfg.Provider != nil {
		model = cfg.Provider.DefaultModel()
	}
	return &Loop{
		provider:        cfg.Provider,
		model:           model,
		tools:           cfg.Tools,
		transport:       cfg.Transport,
		systemPrompt:    cfg.SystemPrompt,
		maxRounds:       cfg.MaxRounds,
		loopWindow:      cfg.LoopWindow,
		repeatThreshold: cfg.RepeatThreshold,
		maxTokens:       cfg.MaxTokens,
		temperature:     cfg.Temperature,
		maxMessageChars: cfg.MaxMessageChars,
		recorder:        cfg.Recorder,
	}
}

// Model returns the model identifier used by this loop.
func (l *Loop) Model() string { return l.model }

// RunRequest is the input for one turn.
type RunRequest struct {
	UserID   string
	RunID    string
	Channel  string
	Segment  string              // catalog segment; selects the system prompt
	Messages []providers.Message // history followed by the consolidated user turn
}

// RunResult is the output of a completed turn. A run that aborted still has
// Content: the fixed reply for its abort reason.
type RunResult struct {
	Content   string           `json:"content"`
	RunID     string           `json:"runId"`
	State     State            `json:"state"`
	Outcome   string           `json:"outcome"`
	Rounds    int              `json:"rounds"`
	ToolCalls int              `json:"toolCalls"`
	Usage     *providers.Usage `json:"usage,omitempty"`

	// Budget is the last budget a compute_budget call produced this turn.
	Budget *budget.Result `json:"-"`
	// Finalized is set when finalize_purchase succeeded this turn.
	Finalized bool `json:"finalized"`
}

// Run processes one turn. It returns an error only when the model call
// fails; loop aborts are results.
func (l *Loop) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	ctx, span := l.startRunSpan(ctx, req)
	start := time.Now()

	result, err := l.runLoop(ctx, req)

	l.endRunSpan(span, result, err)
	outcome := "error"
	if result != nil {
		outcome = result.Outcome
	}
	l.recorder.Turn(outcome, time.Since(start))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *Loop) runLoop(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.UserID != "" {
		ctx = tools.WithToolUserID(ctx, req.UserID)
	}
	if req.Channel != "" {
		ctx = tools.WithToolChannel(ctx, req.Channel)
	}

	messages := make([]providers.Message, 0, len(req.Messages)+8)
	if l.systemPrompt != nil {
		if sp := l.systemPrompt(req.Segment); sp != "" {
			messages = append(messages, providers.Message{Role: "system", Content: sp})
		}
	}
	messages = append(messages, l.truncateLast(req)...)

	result := &RunResult{RunID: req.RunID, State: StateAwaitingModel, Usage: &providers.Usage{}}
	detector := newRepeatDetector(l.loopWindow, l.repeatThreshold)
	toolDefs := l.tools.ProviderDefs()

	for round := 1; ; round++ {
		if round > l.maxRounds {
			slog.Warn("agent: tool round limit reached", "user", req.UserID, "run", req.RunID, "rounds", l.maxRounds)
			return l.abort(result, OutcomeRoundLimit, MsgRoundLimit), nil
		}
		result.Rounds = round
		result.State = StateAwaitingModel

		chatReq := providers.ChatRequest{
			Messages: messages,
			Tools:    toolDefs,
			Model:    l.model,
			Options:  l.options(),
		}

		llmStart := time.Now()
		resp, err := l.provider.Chat(ctx, chatReq)
		l.emitLLMSpan(ctx, llmStart, round, resp, err)
		var usage *providers.Usage
		if resp != nil {
			usage = resp.Usage
		}
		l.recorder.LLMCall(l.provider.Name(), l.model, time.Since(llmStart), usage, err)
		if err != nil {
			return nil, fmt.Errorf("LLM call failed (round %d): %w", round, err)
		}
		result.Usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			content := SanitizeAssistantContent(resp.Content)
			result.State = StateDone
			result.Outcome = OutcomeReply
			if content == "" {
				content = MsgNotUnderstood
				result.Outcome = OutcomeEmptyAnswer
			}
			result.Content = content
			return result, nil
		}

		result.State = StateExecutingTools
		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			sig := toolSignature(tc.Name, tc.Arguments)
			if detector.seen(sig) {
				slog.Warn("agent: repeated tool call", "user", req.UserID, "run", req.RunID, "tool", tc.Name, "round", round)
				return l.abort(result, OutcomeRepeat, MsgLoopDetected), nil
			}
			detector.record(sig)

			res := l.executeTool(ctx, req, tc)
			result.ToolCalls++

			if !res.IsError {
				if res.Budget != nil {
					result.Budget = res.Budget
				}
				if tc.Name == finalizeToolName {
					result.Finalized = true
				}
				if res.Notice != nil {
					l.deliverNotice(ctx, req.UserID, res.Notice)
				}
			}

			messages = append(messages, providers.Message{
				Role:       "tool",
				Content:    res.ForLLM,
				ToolCallID: tc.ID,
			})
		}
	}
}

func (l *Loop) executeTool(ctx context.Context, req RunRequest, tc providers.ToolCall) *tools.Result {
	slog.Debug("agent: tool call", "user", req.UserID, "tool", tc.Name, "args", truncateStr(tc.Arguments, 200))

	start := time.Now()
	res := l.tools.Execute(ctx, tc.Name, tc.Arguments)
	l.emitToolSpan(ctx, start, tc, res)
	l.recorder.ToolCall(tc.Name, time.Since(start), res.IsError)

	if res.IsError {
		slog.Warn("agent: tool error", "user", req.UserID, "tool", tc.Name, "result", truncateStr(res.ForLLM, 200), "error", res.Err)
	}
	return res
}

// deliverNotice sends an out-of-band message. Failures never change the
// user's reply.
func (l *Loop) deliverNotice(ctx context.Context, userID string, n *tools.Notice) {
	if l.transport == nil || n.Recipient == "" {
		slog.Warn("agent: notice not delivered, no transport or recipient", "user", userID)
		return
	}
	if err := l.transport.SendText(ctx, n.Recipient, n.Text); err != nil {
		slog.Error("agent: notice delivery failed", "user", userID, "recipient", n.Recipient, "error", err)
	}
}

func (l *Loop) abort(result *RunResult, outcome, content string) *RunResult {
	result.State = StateAborted
	result.Outcome = outcome
	result.Content = content
	return result
}

func (l *Loop) options() map[string]interface{} {
	opts := map[string]interface{}{}
	if l.maxTokens > 0 {
		opts[providers.OptMaxTokens] = l.maxTokens
	}
	if l.temperature > 0 {
		opts[providers.OptTemperature] = l.temperature
	}
	return opts
}

// truncateLast caps the final user turn, telling the model it was cut.
func (l *Loop) truncateLast(req RunRequest) []providers.Message {
	msgs := req.Messages
	if len(msgs) == 0 {
		return msgs
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" || len(last.Content) <= l.maxMessageChars {
		return msgs
	}
	out := make([]providers.Message, len(msgs))
	copy(out, msgs)
	originalLen := len(last.Content)
	kept := cutAt(last.Content, l.maxMessageChars)
	out[len(out)-1].Content = kept +
		fmt.Sprintf("\n\n[System: Message was truncated from %d to %d characters.]", originalLen, len(kept))
	slog.Warn("agent: message truncated", "user", req.UserID, "original_len", originalLen, "truncated_to", len(kept))
	return out
}
