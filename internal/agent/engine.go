package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/radar/internal/channels"
	"github.com/nextlevelbuilder/radar/internal/debounce"
	"github.com/nextlevelbuilder/radar/internal/inbox"
	"github.com/nextlevelbuilder/radar/internal/menu"
	"github.com/nextlevelbuilder/radar/internal/providers"
	"github.com/nextlevelbuilder/radar/internal/store"
	"github.com/nextlevelbuilder/radar/pkg/protocol"
)

// MsgTemporaryFailure is sent when no reply could be generated. The burst
// stays pending and is answered with the user's next message.
const MsgTemporaryFailure = "Sorry, I'm having trouble right now. Please try again in a moment."

// Metadata describes an inbound message.
type Metadata struct {
	ExternalID string    // channel message id, used to ignore redeliveries
	ReceivedAt time.Time // zero = now
}

// Engine wires the per-turn pipeline: debounce, consolidation, the menu
// state machine, the tool loop, reply dispatch and bookkeeping.
type Engine struct {
	pending      store.PendingStore
	history      store.HistoryStore
	consolidator *inbox.Consolidator
	assembler    *HistoryAssembler
	loop         *Loop
	menu         *menu.Machine
	transport    channels.Transport
	scheduler    *debounce.Scheduler
	channel      string
	greeting     string
	clarify      bool
	segmenter    func(text string) string
	now          func() time.Time
}

// EngineConfig configures a new Engine.
type EngineConfig struct {
	Pending   store.PendingStore
	History   store.HistoryStore
	Loop      *Loop
	Menu      *menu.Machine
	Transport channels.Transport

	HistoryLimit int
	Debounce     debounce.Config
	Channel      string // reported to tools; e.g. "whatsapp"

	// Greeting is sent once to users without any history. Empty disables it.
	Greeting string
	// Clarify enables the variant clarification dialog for free text.
	Clarify bool
	// Segmenter names the catalog segment of a user message; an empty
	// result means no particular segment. Nil disables segment routing.
	Segmenter func(text string) string
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		pending:      cfg.Pending,
		history:      cfg.History,
		consolidator: inbox.NewConsolidator(cfg.Pending),
		assembler:    NewHistoryAssembler(cfg.History, cfg.HistoryLimit),
		loop:         cfg.Loop,
		menu:         cfg.Menu,
		transport:    cfg.Transport,
		channel:      cfg.Channel,
		greeting:     strings.TrimSpace(cfg.Greeting),
		clarify:      cfg.Clarify,
		segmenter:    cfg.Segmenter,
		now:          time.Now,
	}
	e.scheduler = debounce.NewScheduler(cfg.Debounce, e.Process, e.presence)
	return e
}

// Scheduler exposes the debounce scheduler (hot reload, stats).
func (e *Engine) Scheduler() *debounce.Scheduler { return e.scheduler }

// Stop cancels armed timers and waits for in-flight turns.
func (e *Engine) Stop() { e.scheduler.Stop() }

// Receive stores an inbound message durably and (re)arms the user's
// debounce timer. It returns once the message is stored.
func (e *Engine) Receive(ctx context.Context, userID, text string, meta Metadata) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("receive: empty user id")
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	at := meta.ReceivedAt
	if at.IsZero() {
		at = e.now()
	}
	msg := store.PendingMessage{
		ID:         store.GenNewID(),
		UserID:     userID,
		Content:    text,
		Role:       store.RoleUser,
		ExternalID: meta.ExternalID,
		ReceivedAt: at,
	}
	if err := e.pending.AppendPending(ctx, msg); err != nil {
		return fmt.Errorf("receive: append pending: %w", err)
	}
	e.scheduler.OnMessage(ctx, userID)
	return nil
}

// Process answers the user's pending burst. It is the scheduler's fire
// callback and may also be called directly (CLI, tests).
func (e *Engine) Process(ctx context.Context, userID string) error {
	c, err := e.consolidator.Consolidate(ctx, userID)
	if err != nil {
		return err
	}
	if c == nil || c.Content == "" {
		if c != nil {
			// Only blank messages; nothing to answer.
			return e.consolidator.Discard(ctx, c)
		}
		return nil
	}

	runID := uuid.NewString()
	slog.Info("agent: turn started", "user", userID, "run", runID, "messages", len(c.IDs))

	if err := e.greet(ctx, c); err != nil {
		slog.Warn("agent: greeting failed", "user", userID, "error", err)
	}

	reply, err := e.respond(ctx, c, runID)
	if err != nil {
		slog.Error("agent: turn failed", "user", userID, "run", runID, "error", err)
		e.send(ctx, userID, MsgTemporaryFailure)
		return err
	}

	e.send(ctx, userID, reply)
	if e.transport != nil {
		if err := e.transport.SendPresence(ctx, userID, protocol.PresencePaused, 0); err != nil {
			slog.Debug("agent: presence failed", "user", userID, "error", err)
		}
	}

	if err := e.logTurn(ctx, c, reply); err != nil {
		// Pending messages stay and fold into the next burst.
		return fmt.Errorf("log turn: %w", err)
	}
	if err := e.consolidator.Discard(ctx, c); err != nil {
		return err
	}
	slog.Info("agent: turn completed", "user", userID, "run", runID)
	return nil
}

// respond produces the reply text: a menu answer when the state machine
// handles the message, otherwise the tool loop's answer.
func (e *Engine) respond(ctx context.Context, c *inbox.Consolidated, runID string) (string, error) {
	userID := c.UserID

	if e.menu != nil {
		r, err := e.menu.Handle(ctx, userID, c.Content)
		if err != nil {
			return "", fmt.Errorf("menu: %w", err)
		}
		if r.Handled {
			return r.Text, nil
		}
		if e.clarify {
			r, err := e.menu.Begin(ctx, userID, c.Content)
			if err != nil {
				slog.Warn("agent: clarification skipped", "user", userID, "error", err)
			} else if r.Handled {
				return r.Text, nil
			}
		}
	}

	msgs, err := e.assembler.Build(ctx, userID, c)
	if err != nil {
		return "", err
	}
	res, err := e.loop.Run(ctx, RunRequest{
		UserID:   userID,
		RunID:    runID,
		Channel:  e.channel,
		Segment:  e.segment(msgs),
		Messages: msgs,
	})
	if err != nil {
		return "", err
	}

	if e.menu != nil {
		switch {
		case res.Finalized:
			if err := e.menu.Reset(userID); err != nil {
				slog.Warn("agent: reset menu state failed", "user", userID, "error", err)
			}
		case res.Budget != nil:
			e.menu.OpenBudget(userID, res.Budget)
		}
	}
	slog.Debug("agent: loop finished", "user", userID, "run", runID,
		"state", res.State, "outcome", res.Outcome, "rounds", res.Rounds, "tool_calls", res.ToolCalls)
	return res.Content, nil
}

// segment routes the turn by its newest user message that names a segment,
// so short follow-ups ("yes", "2 more") stay in the conversation's segment.
func (e *Engine) segment(msgs []providers.Message) string {
	if e.segmenter == nil {
		return ""
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != store.RoleUser {
			continue
		}
		if s := e.segmenter(msgs[i].Content); s != "" {
			return s
		}
	}
	return ""
}

// greet sends and logs the greeting for a user without history. It is
// logged just before the burst so history stays in order.
func (e *Engine) greet(ctx context.Context, c *inbox.Consolidated) error {
	if e.greeting == "" {
		return nil
	}
	turns, err := e.history.ListRecentHistory(ctx, c.UserID, 1)
	if err != nil {
		return err
	}
	if len(turns) > 0 {
		return nil
	}
	e.send(ctx, c.UserID, e.greeting)
	return e.history.AppendHistory(ctx, store.ConversationTurn{
		ID:        store.GenNewID(),
		UserID:    c.UserID,
		Role:      store.RoleAssistant,
		Content:   e.greeting,
		CreatedAt: c.CreatedAt.Add(-time.Millisecond),
	})
}

// logTurn stores the user turn and the reply together so a failed write
// leaves no half-logged burst behind.
func (e *Engine) logTurn(ctx context.Context, c *inbox.Consolidated, reply string) error {
	at := e.now()
	if !at.After(c.CreatedAt) {
		at = c.CreatedAt.Add(time.Millisecond)
	}
	return e.history.AppendHistory(ctx,
		store.ConversationTurn{
			ID:        store.GenNewID(),
			UserID:    c.UserID,
			Role:      c.Role,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		},
		store.ConversationTurn{
			ID:        store.GenNewID(),
			UserID:    c.UserID,
			Role:      store.RoleAssistant,
			Content:   reply,
			CreatedAt: at,
		})
}

// send delivers text to the user; transport errors are logged only.
func (e *Engine) send(ctx context.Context, userID, text string) {
	if e.transport == nil || text == "" {
		return
	}
	if err := e.transport.SendText(ctx, userID, text); err != nil {
		slog.Error("agent: send failed", "user", userID, "error", err)
	}
}

func (e *Engine) presence(ctx context.Context, userID, state string, ttl time.Duration) error {
	if e.transport == nil {
		return nil
	}
	return e.transport.SendPresence(ctx, userID, state, ttl)
}
