package sessions

import (
	"time"

	"github.com/nextlevelbuilder/radar/internal/budget"
)

// Awaiting names the kind of reply a user's conversation is waiting for.
type Awaiting string

const (
	AwaitingNone            Awaiting = "NONE"
	AwaitingStoreSelection  Awaiting = "STORE_SELECTION"
	AwaitingPurchaseConfirm Awaiting = "PURCHASE_CONFIRM"
	AwaitingClarification   Awaiting = "CLARIFICATION"
)

// ClarificationItem is a requested product whose attribute (category) the
// user still has to pick among Options.
type ClarificationItem struct {
	Category string   `json:"category"`
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
	Quantity int      `json:"quantity"`
	Options  []string `json:"options"`
}

// ConversationState is the per-user interactive menu state.
type ConversationState struct {
	UserID   string   `json:"user_id"`
	Awaiting Awaiting `json:"awaiting"`

	// StoreTotals is the last computed budget, cheapest store first.
	StoreTotals   []budget.StoreTotal `json:"store_totals,omitempty"`
	SelectedStore string              `json:"selected_store,omitempty"`

	PendingProducts     []ClarificationItem `json:"pending_products,omitempty"`
	ClarifiedCategories map[string]bool     `json:"clarified_categories,omitempty"`
	// SelectedProducts holds the resolved picks, including items that
	// needed no clarification.
	SelectedProducts []budget.Pick `json:"selected_products,omitempty"`

	Updated time.Time `json:"updated"`
}

// Budget returns the stored totals as a budget result.
func (s *ConversationState) Budget() *budget.Result {
	return &budget.Result{Stores: s.StoreTotals}
}

// HasTotals reports whether a budget is available for the option menu.
func (s *ConversationState) HasTotals() bool {
	return len(s.StoreTotals) > 0
}

// Unresolved returns the clarification items not yet resolved, in prompt order.
func (s *ConversationState) Unresolved() []ClarificationItem {
	var out []ClarificationItem
	for _, it := range s.PendingProducts {
		if !s.ClarifiedCategories[it.Category] {
			out = append(out, it)
		}
	}
	return out
}

func (s *ConversationState) clone() ConversationState {
	c := *s
	c.StoreTotals = append([]budget.StoreTotal(nil), s.StoreTotals...)
	c.PendingProducts = append([]ClarificationItem(nil), s.PendingProducts...)
	c.SelectedProducts = append([]budget.Pick(nil), s.SelectedProducts...)
	if s.ClarifiedCategories != nil {
		c.ClarifiedCategories = make(map[string]bool, len(s.ClarifiedCategories))
		for k, v := range s.ClarifiedCategories {
			c.ClarifiedCategories[k] = v
		}
	}
	return c
}
