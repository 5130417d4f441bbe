package budget

import (
	"context"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/radar/internal/store"
	"github.com/nextlevelbuilder/radar/internal/store/memory"
)

func seed(t *testing.T, products ...store.Product) *memory.Store {
	t.Helper()
	s := memory.New()
	s.SeedCatalog(products, nil)
	return s
}

func TestComputeOrdersStoresByTotal(t *testing.T) {
	s := seed(t,
		store.Product{ID: "a1", Name: "Cimento", Keywords: []string{"cimento"}, Price: 100, Store: "A"},
		store.Product{ID: "b1", Name: "Cimento", Keywords: []string{"cimento"}, Price: 90, Store: "B"},
		store.Product{ID: "c1", Name: "Cimento", Keywords: []string{"cimento"}, Price: 120, Store: "C"},
	)
	res, err := Compute(context.Background(), s, []Pick{{Keywords: []string{"cimento"}, Quantity: 1}})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	var order []string
	for _, st := range res.Stores {
		order = append(order, st.Store)
	}
	if got := strings.Join(order, ","); got != "B,A,C" {
		t.Errorf("store order = %s, want B,A,C", got)
	}
	if c, _ := res.Cheapest(); c.Store != "B" || c.Total != 90 {
		t.Errorf("Cheapest = %+v", c)
	}
}

func TestComputeOnlyStoresWithEveryItem(t *testing.T) {
	s := seed(t,
		store.Product{ID: "a1", Name: "Cimento", Keywords: []string{"cimento"}, Price: 30, Store: "A"},
		store.Product{ID: "a2", Name: "Cimento premium", Keywords: []string{"cimento"}, Price: 45, Store: "A"},
		store.Product{ID: "a3", Name: "Areia", Keywords: []string{"areia"}, Price: 100, Store: "A"},
		store.Product{ID: "b1", Name: "Cimento", Keywords: []string{"cimento"}, Price: 20, Store: "B"},
		store.Product{ID: "c1", Name: "Areia", Keywords: []string{"areia"}, Price: 80, Store: "C"},
	)
	res, err := Compute(context.Background(), s, []Pick{
		{Keywords: []string{"cimento"}, Quantity: 2},
		{Keywords: []string{"areia"}, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(res.Stores) != 1 || res.Stores[0].Store != "A" {
		t.Fatalf("Stores = %+v, want only A", res.Stores)
	}
	a := res.Stores[0]
	if a.Total != 160 {
		t.Errorf("A total = %v, want 160 (2x30 + 100)", a.Total)
	}
	if a.Items[0].Price != 30 || a.Items[0].Subtotal != 60 {
		t.Errorf("A cimento item = %+v, want cheapest offer", a.Items[0])
	}
}

func TestComputeMissingItems(t *testing.T) {
	s := seed(t, store.Product{ID: "a1", Name: "Cimento", Keywords: []string{"cimento"}, Price: 30, Store: "A"})
	res, err := Compute(context.Background(), s, []Pick{
		{Keywords: []string{"cimento"}},
		{Label: "tijolo baiano", Keywords: []string{"tijolo", "baiano"}},
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(res.Stores) != 0 {
		t.Errorf("Stores = %+v, want none", res.Stores)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "tijolo baiano" {
		t.Errorf("Missing = %v", res.Missing)
	}
	if !strings.Contains(FormatSummary(res), "tijolo baiano") {
		t.Errorf("summary should name the missing item: %q", FormatSummary(res))
	}
}

func TestComputeNoItems(t *testing.T) {
	if _, err := Compute(context.Background(), memory.New(), nil); err == nil {
		t.Fatal("expected error for empty list")
	}
}

func TestFormatting(t *testing.T) {
	res := &Result{Stores: []StoreTotal{
		{Store: "B", Total: 90, Items: []Item{{Name: "Cimento", Quantity: 3, Price: 30, Subtotal: 90}}},
		{Store: "A", Total: 100, Items: []Item{{Name: "Cimento", Quantity: 1, Price: 100, Subtotal: 100}}},
	}}

	tests := []struct {
		name string
		got  string
		want []string
	}{
		{"summary", FormatSummary(res), []string{"🏆 *B*: R$ 90.00", "🏪 A: R$ 100.00", "R$ 10.00", "1️⃣ Finalize purchase at B", "3️⃣"}},
		{"detail", FormatStoreDetail(res.Stores[0]), []string{"3x Cimento: R$ 90.00 (R$ 30.00 each)"}},
		{"all stores", FormatAllStores(res), []string{"1️⃣ B (R$ 90.00)", "2️⃣ A (R$ 100.00)", "0️⃣ Back to budget"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, w := range tt.want {
				if !strings.Contains(tt.got, w) {
					t.Errorf("output missing %q:\n%s", w, tt.got)
				}
			}
		})
	}
}

func TestMoney(t *testing.T) {
	if got := Money(1234.5); got != "R$ 1234.50" {
		t.Errorf("Money = %q, want %q", got, "R$ 1234.50")
	}
}

func TestComputeIgnoresProductsMatchedOnlyByShortWords(t *testing.T) {
	s := seed(t,
		store.Product{ID: "a1", Name: "Areia de rio", Keywords: []string{"areia"}, Price: 10, Store: "A"},
		store.Product{ID: "b1", Name: "Cadeado 40mm", Keywords: []string{"cadeado"}, Price: 50, Store: "B"},
	)
	res, err := Compute(context.Background(), s, []Pick{{Keywords: []string{"cadeado"}, Quantity: 1}})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(res.Stores) != 1 {
		t.Fatalf("stores = %+v, want only B", res.Stores)
	}
	if c, _ := res.Cheapest(); c.Store != "B" || c.Total != 50 {
		t.Errorf("Cheapest = %+v, want B at 50", c)
	}
}
