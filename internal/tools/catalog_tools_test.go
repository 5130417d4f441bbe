package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/radar/internal/store"
	"github.com/nextlevelbuilder/radar/internal/store/memory"
)

func testCatalog() *memory.Store {
	s := memory.New()
	s.SeedCatalog([]store.Product{
		{ID: "a1", Name: "Cimento CP II 50kg", Keywords: []string{"cimento", "cp2"}, Price: 38, Store: "Loja A"},
		{ID: "b1", Name: "Cimento CP II 50kg", Keywords: []string{"cimento", "cp2"}, Price: 35, Store: "Loja B"},
		{ID: "a2", Name: "Areia media", Keywords: []string{"areia"}, Price: 100, Store: "Loja A"},
	}, map[string]string{"Loja A": "+55 (11) 9111-0000"})
	return s
}

func TestSearchProducts(t *testing.T) {
	r := NewRegistry()
	RegisterCatalogTools(r, testCatalog())

	res := r.Execute(context.Background(), "search_products", `{"items":["cimento","tijolo"]}`)
	if res.IsError {
		t.Fatalf("search_products error: %s", res.ForLLM)
	}
	var out struct {
		Results []itemResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(res.ForLLM), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("results = %+v", out.Results)
	}
	if !out.Results[0].Found || out.Results[0].Offers[0].Store != "Loja B" {
		t.Errorf("cimento = %+v, want Loja B first", out.Results[0])
	}
	if out.Results[1].Found {
		t.Errorf("tijolo should not be found: %+v", out.Results[1])
	}

	if res := r.Execute(context.Background(), "search_products", `{}`); !res.IsError {
		t.Error("missing items should be an error result")
	}
}

func TestComputeBudgetTool(t *testing.T) {
	r := NewRegistry()
	RegisterCatalogTools(r, testCatalog())

	res := r.Execute(context.Background(), "compute_budget", `{"items":[{"keywords":"cimento","quantity":2},{"keywords":["areia"]}]}`)
	if res.IsError {
		t.Fatalf("compute_budget error: %s", res.ForLLM)
	}
	if res.Budget == nil || len(res.Budget.Stores) != 1 {
		t.Fatalf("Budget = %+v, want only Loja A", res.Budget)
	}
	if got := res.Budget.Stores[0].Total; got != 176 {
		t.Errorf("total = %v, want 176", got)
	}
	if !strings.Contains(res.ForLLM, `"summary"`) || !strings.Contains(res.ForLLM, `"cheapest"`) {
		t.Errorf("ForLLM = %s", res.ForLLM)
	}

	none := r.Execute(context.Background(), "compute_budget", `{"items":[{"keywords":["tijolo"]}]}`)
	if none.IsError || none.Budget != nil {
		t.Errorf("no-store budget: IsError=%v Budget=%+v", none.IsError, none.Budget)
	}
}

func TestFinalizePurchase(t *testing.T) {
	catalog := testCatalog()
	tool := NewFinalizePurchaseTool(catalog)
	tool.now = func() time.Time { return time.Date(2024, 5, 2, 14, 30, 0, 0, time.UTC) }
	r := NewRegistry()
	r.Register(tool)

	ctx := WithToolUserID(context.Background(), "5511988887777")
	res := r.Execute(ctx, "finalize_purchase", `{"store":"Loja A","items":[{"name":"Cimento","quantity":2,"price":38}]}`)
	if res.IsError {
		t.Fatalf("finalize_purchase error: %s", res.ForLLM)
	}

	var p Purchase
	if err := json.Unmarshal([]byte(res.ForLLM), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.StoreContact != "551191110000" {
		t.Errorf("StoreContact = %q, want digits only", p.StoreContact)
	}
	if !strings.HasPrefix(p.WhatsAppLink, "https://wa.me/551191110000?text=Hello%21%20I") {
		t.Errorf("WhatsAppLink = %q", p.WhatsAppLink)
	}
	if !strings.Contains(p.StoreMessage, "5511988887777") || !strings.Contains(p.StoreMessage, "02/05/2024 14:30") {
		t.Errorf("StoreMessage = %q", p.StoreMessage)
	}
	if !strings.Contains(p.CustomerMessage, "R$ 76.00") {
		t.Errorf("CustomerMessage = %q", p.CustomerMessage)
	}
	if res.Notice == nil || res.Notice.Recipient != "551191110000" || res.Notice.Text != p.StoreMessage {
		t.Errorf("Notice = %+v", res.Notice)
	}
	if res.ForUser != p.CustomerMessage {
		t.Error("ForUser should carry the customer message")
	}
}

func TestFinalizePurchaseUnknownStoreContact(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFinalizePurchaseTool(testCatalog()))
	res := r.Execute(context.Background(), "finalize_purchase", `{"store":"Loja Z","items":[{"name":"X","price":1}]}`)
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if res.Notice != nil {
		t.Errorf("Notice = %+v, want nil without a store contact", res.Notice)
	}
}

func TestDigitsOnly(t *testing.T) {
	tests := []struct{ in, want string }{
		{"+55 (11) 9111-0000", "551191110000"},
		{"", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		if got := DigitsOnly(tt.in); got != tt.want {
			t.Errorf("DigitsOnly(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
