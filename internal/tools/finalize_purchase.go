package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nextlevelbuilder/radar/internal/budget"
	"github.com/nextlevelbuilder/radar/internal/store"
)

// FinalizePurchaseTool closes an order at one store: it builds the customer
// confirmation and the message the store receives out of band.
type FinalizePurchaseTool struct {
	catalog store.CatalogStore
	now     func() time.Time
}

func NewFinalizePurchaseTool(catalog store.CatalogStore) *FinalizePurchaseTool {
	return &FinalizePurchaseTool{catalog: catalog, now: time.Now}
}

func (t *FinalizePurchaseTool) Name() string { return "finalize_purchase" }

func (t *FinalizePurchaseTool) Description() string {
	return "Finalize the purchase at the chosen store. Call only after the customer confirmed. The store is notified automatically."
}

func (t *FinalizePurchaseTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"store": map[string]interface{}{"type": "string", "description": "Store name."},
			"items": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":     map[string]interface{}{"type": "string"},
						"quantity": map[string]interface{}{"type": "integer"},
						"price":    map[string]interface{}{"type": "number"},
					},
					"required": []string{"name", "price"},
				},
			},
			"total":        map[string]interface{}{"type": "number"},
			"customer_ref": map[string]interface{}{"type": "string", "description": "Customer phone or id; defaults to the current user."},
		},
		"required": []string{"store", "items"},
	}
}

// Purchase is the outcome of a finalized order.
type Purchase struct {
	CustomerMessage string `json:"customer_message"`
	StoreMessage    string `json:"store_message"`
	StoreContact    string `json:"store_contact,omitempty"`
	WhatsAppLink    string `json:"whatsapp_link,omitempty"`
}

func (t *FinalizePurchaseTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	var in struct {
		Store       string        `json:"store"`
		Items       []budget.Item `json:"items"`
		Total       float64       `json:"total"`
		CustomerRef string        `json:"customer_ref"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ErrorResult(fmt.Sprintf("invalid arguments: %v", err))
	}
	if strings.TrimSpace(in.Store) == "" {
		return ErrorResult("store is required")
	}
	if len(in.Items) == 0 {
		return ErrorResult("items is required")
	}
	if in.CustomerRef == "" {
		in.CustomerRef = ToolUserIDFromCtx(ctx)
	}

	var sum float64
	for i := range in.Items {
		if in.Items[i].Quantity <= 0 {
			in.Items[i].Quantity = 1
		}
		in.Items[i].Subtotal = in.Items[i].Price * float64(in.Items[i].Quantity)
		sum += in.Items[i].Subtotal
	}
	if in.Total <= 0 {
		in.Total = sum
	}

	phone, err := t.catalog.StoreContact(ctx, in.Store)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return ErrorResult("could not look up the store contact").WithError(err)
	}
	phone = DigitsOnly(phone)
	if phone == "" {
		slog.Warn("finalize_purchase: store has no contact", "store", in.Store)
	}

	p := Purchase{
		CustomerMessage: customerMessage(in.Store, in.Items, in.Total, phone),
		StoreMessage:    storeMessage(t.now(), in.CustomerRef, in.Items, in.Total),
		StoreContact:    phone,
	}
	if phone != "" {
		p.WhatsAppLink = WhatsAppLink(phone, fmt.Sprintf("Hello! I just placed an order of %s through Radar.", budget.Money(in.Total)))
	}

	r := jsonResult(p)
	r.ForUser = p.CustomerMessage
	if phone != "" {
		r.Notice = &Notice{Recipient: phone, Text: p.StoreMessage}
	}
	return r
}

// DigitsOnly strips everything but ASCII digits from a phone number.
func DigitsOnly(phone string) string {
	var sb strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// WhatsAppLink builds a wa.me link with a pre-filled message.
func WhatsAppLink(phone, text string) string {
	link := "https://wa.me/" + phone
	if text == "" {
		return link
	}
	return link + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

func itemLines(items []budget.Item) string {
	var sb strings.Builder
	for _, it := range items {
		if it.Quantity > 1 {
			fmt.Fprintf(&sb, "• %dx %s: %s (%s each)\n", it.Quantity, it.Name, budget.Money(it.Subtotal), budget.Money(it.Price))
		} else {
			fmt.Fprintf(&sb, "• %s: %s\n", it.Name, budget.Money(it.Price))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func customerMessage(storeName string, items []budget.Item, total float64, phone string) string {
	var sb strings.Builder
	sb.WriteString("✅ *Order confirmed!*\n\n")
	fmt.Fprintf(&sb, "🏪 Store: %s\n💰 Total: %s\n\n", storeName, budget.Money(total))
	sb.WriteString("📋 *Items:*\n")
	sb.WriteString(itemLines(items))
	fmt.Fprintf(&sb, "\n\n📞 %s will contact you to confirm prices, delivery fees and payment.", storeName)
	if phone != "" {
		fmt.Fprintf(&sb, "\n\n🔗 *Store contact:*\nhttps://wa.me/%s", phone)
	}
	sb.WriteString("\n\nThank you! 🎉")
	return sb.String()
}

func storeMessage(at time.Time, customerRef string, items []budget.Item, total float64) string {
	var sb strings.Builder
	sb.WriteString("🛒 *NEW ORDER - RADAR*\n\n")
	fmt.Fprintf(&sb, "📅 *Date:* %s\n", at.Format("02/01/2006 15:04"))
	fmt.Fprintf(&sb, "📞 *Customer:* %s\n\n", customerRef)
	sb.WriteString("📦 *ITEMS:*\n")
	for _, it := range items {
		fmt.Fprintf(&sb, "• %dx %s\n  Unit price: %s\n  Subtotal: %s\n", it.Quantity, it.Name, budget.Money(it.Price), budget.Money(it.Subtotal))
	}
	fmt.Fprintf(&sb, "\n💰 *TOTAL: %s*\n\n", budget.Money(total))
	sb.WriteString("Please contact the customer to confirm prices, delivery fees and availability.")
	return sb.String()
}

// RegisterCatalogTools registers search_products, compute_budget and
// finalize_purchase against catalog.
func RegisterCatalogTools(r *Registry, catalog store.CatalogStore) {
	r.Register(NewSearchProductsTool(catalog, 0))
	r.Register(NewComputeBudgetTool(catalog))
	r.Register(NewFinalizePurchaseTool(catalog))
}
