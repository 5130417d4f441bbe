// Package budget groups catalog offers by store and prices a shopping list.
package budget

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/radar/internal/store"
)

// Pick is one requested line of a shopping list.
type Pick struct {
	Label string `json:"label,omitempty"`
	// Name, when set, restricts matches to products with exactly this name.
	Name     string   `json:"name,omitempty"`
	Keywords []string `json:"keywords"`
	Quantity int      `json:"quantity"`
}

// Item is the offer a store contributes for one pick.
type Item struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Subtotal float64 `json:"subtotal"`
	Unit     string  `json:"unit,omitempty"`
}

// StoreTotal is the priced shopping list at one store.
type StoreTotal struct {
	Store   string  `json:"store"`
	Total   float64 `json:"total"`
	Items   []Item  `json:"items"`
	Contact string  `json:"contact,omitempty"`
}

// Result is a computed budget. Stores is sorted by ascending total.
type Result struct {
	Stores []StoreTotal `json:"stores"`
	// Missing lists picks no store in the catalog carries.
	Missing []string `json:"missing,omitempty"`
}

// Cheapest returns the lowest-total store.
func (r *Result) Cheapest() (StoreTotal, bool) {
	if r == nil || len(r.Stores) == 0 {
		return StoreTotal{}, false
	}
	return r.Stores[0], true
}

// Find returns the store total for name (case-insensitive).
func (r *Result) Find(name string) (StoreTotal, bool) {
	if r == nil {
		return StoreTotal{}, false
	}
	for _, st := range r.Stores {
		if strings.EqualFold(st.Store, name) {
			return st, true
		}
	}
	return StoreTotal{}, false
}

// Compute prices picks at every store. Only stores carrying every pick are
// listed; each store contributes its cheapest matching offer per pick.
func Compute(ctx context.Context, catalog store.CatalogStore, picks []Pick) (*Result, error) {
	if len(picks) == 0 {
		return nil, fmt.Errorf("budget: no items")
	}

	type storeAcc struct {
		name    string
		contact string
		items   []Item
		total   float64
	}
	acc := make(map[string]*storeAcc)
	res := &Result{}

	for i, pick := range picks {
		qty := pick.Quantity
		if qty <= 0 {
			qty = 1
		}
		products, err := catalog.QueryCatalog(ctx, store.CatalogQuery{Terms: pick.Keywords})
		if err != nil {
			return nil, fmt.Errorf("budget: query %q: %w", pick.label(), err)
		}
		if pick.Name != "" {
			products = filterByName(products, pick.Name)
		}
		if len(products) == 0 {
			res.Missing = append(res.Missing, pick.label())
		}

		seen := make(map[string]bool)
		for _, p := range products {
			key := strings.ToLower(p.Store)
			if seen[key] {
				continue
			}
			// Products come back cheapest first, so the first offer per store wins.
			seen[key] = true
			a, ok := acc[key]
			if !ok {
				if i > 0 {
					// Store already lacks an earlier pick.
					continue
				}
				a = &storeAcc{name: p.Store, contact: p.StorePhone}
				acc[key] = a
			}
			if len(a.items) != i {
				continue
			}
			if a.contact == "" {
				a.contact = p.StorePhone
			}
			sub := p.Price * float64(qty)
			a.items = append(a.items, Item{Name: p.Name, Quantity: qty, Price: p.Price, Subtotal: sub, Unit: p.Unit})
			a.total += sub
		}
	}

	for _, a := range acc {
		if len(a.items) != len(picks) {
			continue
		}
		res.Stores = append(res.Stores, StoreTotal{Store: a.name, Total: round2(a.total), Items: a.items, Contact: a.contact})
	}
	sort.SliceStable(res.Stores, func(i, j int) bool {
		if res.Stores[i].Total != res.Stores[j].Total {
			return res.Stores[i].Total < res.Stores[j].Total
		}
		return res.Stores[i].Store < res.Stores[j].Store
	})
	return res, nil
}

func (p Pick) label() string {
	if p.Label != "" {
		return p.Label
	}
	return strings.Join(p.Keywords, " ")
}

func filterByName(products []store.Product, name string) []store.Product {
	var out []store.Product
	for _, p := range products {
		if strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name)) {
			out = append(out, p)
		}
	}
	return out
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
