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

// Begin inspects free text for products that exist in several variants and,
// if any, opens a clarification dialog. It never errors on analyzer failure:
// the message then simply goes to the AI loop.
func (m *Machine) Begin(ctx context.Context, userID, text string) (Reply, error) {
	if m.analyzer == nil {
		return Reply{}, nil
	}
	if st, _ := m.sessions.Get(userID); st.Awaiting != sessions.AwaitingNone {
		return Reply{}, nil
	}

	requests, err := m.analyzer.Analyze(ctx, text)
	if err != nil {
		slog.Debug("menu: analyzer failed", "user", userID, "error", err)
		return Reply{}, nil
	}

	var (
		picks   []budget.Pick
		pending []sessions.ClarificationItem
		used    = make(map[string]bool)
	)
	for _, req := range requests {
		kw := store.NormalizeTerms(req.Keywords)
		if len(kw) == 0 {
			kw = store.NormalizeTerms([]string{req.Label})
		}
		if len(kw) == 0 {
			continue
		}
		qty := req.Quantity
		if qty <= 0 {
			qty = 1
		}
		label := req.Label
		if label == "" {
			label = strings.Join(kw, " ")
		}
		pick := budget.Pick{Label: label, Keywords: kw, Quantity: qty}
		if req.Specified {
			picks = append(picks, pick)
			continue
		}

		products, err := m.catalog.QueryCatalog(ctx, store.CatalogQuery{Terms: kw})
		if err != nil {
			return Reply{}, fmt.Errorf("clarify: query %q: %w", label, err)
		}
		variants := distinctNames(products)
		if len(variants) <= 1 {
			picks = append(picks, pick)
			continue
		}

		pending = append(pending, sessions.ClarificationItem{
			Category: uniqueCategory(req.Category, label, used),
			Label:    label,
			Keywords: kw,
			Quantity: qty,
			Options:  variants,
		})
	}

	if len(pending) == 0 {
		return Reply{}, nil
	}

	m.sessions.Update(userID, func(s *sessions.ConversationState) {
		s.Awaiting = sessions.AwaitingClarification
		s.StoreTotals = nil
		s.SelectedStore = ""
		s.PendingProducts = pending
		s.ClarifiedCategories = map[string]bool{}
		s.SelectedProducts = picks
	})
	return Reply{Text: formatPrompt(pending[0]), Handled: true}, nil
}

func (m *Machine) handleClarification(ctx context.Context, st sessions.ConversationState, text string) (Reply, error) {
	unresolved := st.Unresolved()
	if len(unresolved) == 0 {
		// Nothing left to ask; fall back to the budget.
		return m.completeClarification(ctx, st)
	}

	item, terms, exact := resolveTarget(unresolved, text)
	if len(terms) == 0 && exact == "" {
		return Reply{Text: "Please choose one of the options.\n\n" + formatPrompt(item), Handled: true}, nil
	}

	query := append(append([]string(nil), item.Keywords...), terms...)
	products, err := m.catalog.QueryCatalog(ctx, store.CatalogQuery{Terms: query})
	if err != nil {
		return Reply{}, fmt.Errorf("clarify: query %q: %w", item.Label, err)
	}
	if exact != "" {
		products = withName(products, exact)
	}
	if len(products) == 0 {
		return Reply{Text: "I could not find that option.\n\n" + formatPrompt(item), Handled: true}, nil
	}

	cheapest := products[0]
	st = m.sessions.Update(st.UserID, func(s *sessions.ConversationState) {
		if s.ClarifiedCategories == nil {
			s.ClarifiedCategories = map[string]bool{}
		}
		s.ClarifiedCategories[item.Category] = true
		s.SelectedProducts = append(s.SelectedProducts, budget.Pick{
			Label:    cheapest.Name,
			Name:     cheapest.Name,
			Keywords: item.Keywords,
			Quantity: item.Quantity,
		})
	})

	if next := st.Unresolved(); len(next) > 0 {
		return Reply{Text: formatPrompt(next[0]), Handled: true}, nil
	}
	return m.completeClarification(ctx, st)
}

func (m *Machine) completeClarification(ctx context.Context, st sessions.ConversationState) (Reply, error) {
	res, err := budget.Compute(ctx, m.catalog, st.SelectedProducts)
	if err != nil {
		return Reply{}, fmt.Errorf("clarify: compute budget: %w", err)
	}
	if len(res.Stores) == 0 {
		m.clearState(st.UserID)
		return Reply{Text: budget.FormatNoStore(res), Handled: true}, nil
	}
	m.OpenBudget(st.UserID, res)
	return Reply{Text: budget.FormatSummary(res), Handled: true}, nil
}

// resolveTarget picks the category a reply answers. A digit selects an
// option of the prompted (first unresolved) category by exact name; free text
// answers the category whose options it matches, else the prompted one, and
// contributes its words as extra search terms.
func resolveTarget(unresolved []sessions.ClarificationItem, text string) (item sessions.ClarificationItem, terms []string, exact string) {
	prompted := unresolved[0]
	if opt, ok := ParseOption(text); ok {
		if opt >= 1 && opt <= len(prompted.Options) {
			return prompted, nil, prompted.Options[opt-1]
		}
		return prompted, nil, ""
	}

	terms = store.NormalizeTerms([]string{text})
	if len(terms) == 0 {
		return prompted, nil, ""
	}
	for _, it := range unresolved {
		for _, opt := range it.Options {
			if store.MatchAllKeywords(store.Product{Name: opt}, terms) {
				return it, terms, ""
			}
		}
	}
	return prompted, terms, ""
}

func withName(products []store.Product, name string) []store.Product {
	var out []store.Product
	for _, p := range products {
		if strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name)) {
			out = append(out, p)
		}
	}
	return out
}

func distinctNames(products []store.Product) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range products {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p.Name)
		if len(out) == maxOptions {
			break
		}
	}
	return out
}

func uniqueCategory(category, label string, used map[string]bool) string {
	base := strings.ToLower(strings.TrimSpace(category))
	if base == "" {
		base = strings.ToLower(label)
	}
	name := base
	for i := 2; used[name]; i++ {
		name = fmt.Sprintf("%s#%d", base, i)
	}
	used[name] = true
	return name
}
