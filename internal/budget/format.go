package budget

import (
	"fmt"
	"strings"
)

const separator = "──────────────────────────────"

// Money formats a price in reais.
func Money(v float64) string {
	return fmt.Sprintf("R$ %.2f", v)
}

// FormatSummary renders all store totals with the top-level options.
func FormatSummary(r *Result) string {
	cheapest, ok := r.Cheapest()
	if !ok {
		return FormatNoStore(r)
	}

	var sb strings.Builder
	sb.WriteString("📦 *Complete budget:*\n\n")
	for i, st := range r.Stores {
		if i == 0 {
			fmt.Fprintf(&sb, "🏆 *%s*: %s ⭐\n", st.Store, Money(st.Total))
		} else {
			fmt.Fprintf(&sb, "🏪 %s: %s\n", st.Store, Money(st.Total))
		}
	}
	fmt.Fprintf(&sb, "\n💰 *Best option:* %s\n", cheapest.Store)
	if len(r.Stores) > 1 {
		fmt.Fprintf(&sb, "💵 *You save:* %s\n", Money(r.Stores[1].Total-cheapest.Total))
	}
	sb.WriteString("\n*Choose an option:*\n")
	fmt.Fprintf(&sb, "1️⃣ Finalize purchase at %s\n", cheapest.Store)
	fmt.Fprintf(&sb, "2️⃣ See details of %s\n", cheapest.Store)
	if len(r.Stores) > 1 {
		sb.WriteString("3️⃣ See details of all stores\n")
	}
	sb.WriteString("0️⃣ Start over")
	return sb.String()
}

// FormatStoreDetail renders one store's items and total.
func FormatStoreDetail(st StoreTotal) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏪 *%s* - %s:\n\n", st.Store, Money(st.Total))
	for _, it := range st.Items {
		if it.Quantity > 1 {
			fmt.Fprintf(&sb, "• %dx %s: %s (%s each)\n", it.Quantity, it.Name, Money(it.Subtotal), Money(it.Price))
		} else {
			fmt.Fprintf(&sb, "• %s: %s\n", it.Name, Money(it.Price))
		}
	}
	fmt.Fprintf(&sb, "\n💰 *Total:* %s", Money(st.Total))
	return sb.String()
}

// FormatStoreConfirm renders a store detail followed by the confirmation options.
func FormatStoreConfirm(st StoreTotal) string {
	return FormatStoreDetail(st) + "\n\n*Choose an option:*\n1️⃣ Finalize purchase\n0️⃣ Back to budget"
}

// FormatAllStores renders every store, numbered in ascending total order.
func FormatAllStores(r *Result) string {
	if len(r.Stores) == 0 {
		return FormatNoStore(r)
	}
	var sb strings.Builder
	sb.WriteString("📋 *Details of all stores:*\n")
	for _, st := range r.Stores {
		sb.WriteString("\n" + FormatStoreDetail(st) + "\n")
		sb.WriteString(separator + "\n")
	}
	sb.WriteString("\n*Choose a store:*\n")
	for i, st := range r.Stores {
		fmt.Fprintf(&sb, "%s %s (%s)\n", Keycap(i+1), st.Store, Money(st.Total))
	}
	sb.WriteString("0️⃣ Back to budget")
	return sb.String()
}

// FormatNoStore explains that no single store carries the whole list.
func FormatNoStore(r *Result) string {
	if r != nil && len(r.Missing) > 0 {
		return "❌ I could not find these items in any store: " + strings.Join(r.Missing, ", ") + "."
	}
	return "❌ No single store carries every item on your list."
}

// Keycap renders 0..9 as keycap emoji and larger numbers as plain digits.
func Keycap(n int) string {
	if n >= 0 && n <= 9 {
		return fmt.Sprintf("%d\ufe0f\u20e3", n)
	}
	return fmt.Sprintf("%d.", n)
}
