// Package menu implements the numeric option menu and the attribute
// clarification dialog. Which branch handles a message depends only on the
// state's Awaiting value, never on the shape of the text.
package menu

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/radar/internal/budget"
	"github.com/nextlevelbuilder/radar/internal/sessions"
	"github.com/nextlevelbuilder/radar/internal/store"
)

const (
	msgInvalidOption  = "❌ Invalid option."
	msgStartOver      = "Alright, let's start over. What do you need?"
	msgFinalizeFailed = "Sorry, I could not finalize your purchase. Please try again."
	maxOptions        = 9
)

// Reply is the outcome of handling one consolidated message.
type Reply struct {
	Text string
	// Handled is false when the message is not a menu answer and the AI
	// loop should produce the reply instead.
	Handled bool
	// Finalized is set when a purchase was closed.
	Finalized bool
}

// Finalizer closes a purchase at a store and returns the customer message.
type Finalizer interface {
	Finalize(ctx context.Context, userID string, st budget.StoreTotal) (string, error)
}

// ProductRequest is one product an analyzer found in a free-text message.
type ProductRequest struct {
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
	Quantity int      `json:"quantity"`
	// Category is the attribute the user left open (e.g. "type", "size").
	Category string `json:"category,omitempty"`
	// Specified is true when the request already names one variant.
	Specified bool `json:"specified"`
}

// Analyzer extracts product requests from free text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) ([]ProductRequest, error)
}

// Machine is the menu/clarification state machine.
type Machine struct {
	sessions  *sessions.Manager
	catalog   store.CatalogStore
	finalizer Finalizer
	analyzer  Analyzer
}

// New creates a Machine. analyzer may be nil, which disables Begin.
func New(sess *sessions.Manager, catalog store.CatalogStore, finalizer Finalizer, analyzer Analyzer) *Machine {
	return &Machine{sessions: sess, catalog: catalog, finalizer: finalizer, analyzer: analyzer}
}

// Handle routes text by the user's Awaiting state.
func (m *Machine) Handle(ctx context.Context, userID, text string) (Reply, error) {
	st, _ := m.sessions.Get(userID)

	switch st.Awaiting {
	case sessions.AwaitingClarification:
		return m.handleClarification(ctx, st, text)
	case sessions.AwaitingStoreSelection:
		return m.handleStoreSelection(st, text), nil
	case sessions.AwaitingPurchaseConfirm:
		return m.handlePurchaseConfirm(ctx, st, text), nil
	default:
		return m.handleTopLevel(ctx, st, text), nil
	}
}

// OpenBudget stores a computed budget so the top-level options apply.
func (m *Machine) OpenBudget(userID string, res *budget.Result) {
	if res == nil || len(res.Stores) == 0 {
		return
	}
	m.sessions.Update(userID, func(s *sessions.ConversationState) {
		s.Awaiting = sessions.AwaitingNone
		s.StoreTotals = append([]budget.StoreTotal(nil), res.Stores...)
		s.SelectedStore = ""
		s.PendingProducts = nil
		s.ClarifiedCategories = nil
		s.SelectedProducts = nil
	})
}

// Reset drops the user's menu state, e.g. after the AI loop closed a purchase.
func (m *Machine) Reset(userID string) error {
	return m.sessions.Clear(userID)
}

func (m *Machine) handleTopLevel(ctx context.Context, st sessions.ConversationState, text string) Reply {
	if !st.HasTotals() {
		return Reply{}
	}
	opt, ok := ParseOption(text)
	if !ok {
		return Reply{}
	}

	res := st.Budget()
	cheapest, _ := res.Cheapest()
	switch opt {
	case 0:
		m.clearState(st.UserID)
		return Reply{Text: msgStartOver, Handled: true}
	case 1:
		return m.finalize(ctx, st.UserID, cheapest)
	case 2:
		m.sessions.Update(st.UserID, func(s *sessions.ConversationState) {
			s.Awaiting = sessions.AwaitingPurchaseConfirm
			s.SelectedStore = cheapest.Store
		})
		return Reply{Text: budget.FormatStoreConfirm(cheapest), Handled: true}
	case 3:
		m.sessions.Update(st.UserID, func(s *sessions.ConversationState) {
			s.Awaiting = sessions.AwaitingStoreSelection
		})
		return Reply{Text: budget.FormatAllStores(res), Handled: true}
	default:
		return Reply{Text: msgInvalidOption + "\n\n" + budget.FormatSummary(res), Handled: true}
	}
}

func (m *Machine) handleStoreSelection(st sessions.ConversationState, text string) Reply {
	opt, ok := ParseOption(text)
	if !ok {
		return Reply{}
	}
	res := st.Budget()
	switch {
	case opt == 0:
		m.backToSummary(st.UserID)
		return Reply{Text: budget.FormatSummary(res), Handled: true}
	case opt >= 1 && opt <= len(res.Stores):
		chosen := res.Stores[opt-1]
		m.sessions.Update(st.UserID, func(s *sessions.ConversationState) {
			s.Awaiting = sessions.AwaitingPurchaseConfirm
			s.SelectedStore = chosen.Store
		})
		return Reply{Text: budget.FormatStoreConfirm(chosen), Handled: true}
	default:
		return Reply{Text: msgInvalidOption + "\n\n" + budget.FormatAllStores(res), Handled: true}
	}
}

func (m *Machine) handlePurchaseConfirm(ctx context.Context, st sessions.ConversationState, text string) Reply {
	opt, ok := ParseOption(text)
	if !ok {
		return Reply{}
	}
	res := st.Budget()
	target, found := res.Find(st.SelectedStore)
	if !found {
		target, _ = res.Cheapest()
	}
	switch opt {
	case 0:
		m.backToSummary(st.UserID)
		return Reply{Text: budget.FormatSummary(res), Handled: true}
	case 1:
		return m.finalize(ctx, st.UserID, target)
	default:
		return Reply{Text: msgInvalidOption + "\n\n" + budget.FormatStoreConfirm(target), Handled: true}
	}
}

func (m *Machine) backToSummary(userID string) {
	m.sessions.Update(userID, func(s *sessions.ConversationState) {
		s.Awaiting = sessions.AwaitingNone
		s.SelectedStore = ""
	})
}

func (m *Machine) finalize(ctx context.Context, userID string, target budget.StoreTotal) Reply {
	if target.Store == "" {
		return Reply{}
	}
	msg, err := m.finalizer.Finalize(ctx, userID, target)
	if err != nil {
		slog.Warn("menu: finalize failed", "user", userID, "store", target.Store, "error", err)
		return Reply{Text: msgFinalizeFailed, Handled: true}
	}
	m.clearState(userID)
	return Reply{Text: msg, Handled: true, Finalized: true}
}

// clearState drops the user's state. A failed removal of the persisted copy
// is logged; the in-memory state is gone either way.
func (m *Machine) clearState(userID string) {
	if err := m.sessions.Clear(userID); err != nil {
		slog.Warn("menu: clear state failed", "user", userID, "error", err)
	}
}

func formatPrompt(it sessions.ClarificationItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Which *%s* would you like?\n", it.Label)
	for i, opt := range it.Options {
		fmt.Fprintf(&sb, "%s %s\n", budget.Keycap(i+1), opt)
	}
	sb.WriteString("\nReply with the number or describe it.")
	return sb.String()
}
