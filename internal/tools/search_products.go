package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/radar/internal/store"
)

const defaultSearchLimit = 10

// SearchProductsTool looks items up in the catalog, one query per item.
type SearchProductsTool struct {
	catalog store.CatalogStore
	limit   int
}

func NewSearchProductsTool(catalog store.CatalogStore, limit int) *SearchProductsTool {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return &SearchProductsTool{catalog: catalog, limit: limit}
}

func (t *SearchProductsTool) Name() string { return "search_products" }

func (t *SearchProductsTool) Description() string {
	return "Search the product catalog. Each item is a short product description; every word must match. Returns offers per store, cheapest first."
}

func (t *SearchProductsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"items": map[string]interface{}{
				"type":        "array",
				"description": "Product descriptions to search, e.g. [\"cimento cp2\", \"areia media\"].",
				"items":       map[string]interface{}{"type": "string"},
			},
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Optional category filter.",
			},
			"max_price": map[string]interface{}{
				"type":        "number",
				"description": "Optional maximum unit price.",
			},
		},
		"required": []string{"items"},
	}
}

type offer struct {
	Name     string  `json:"name"`
	Store    string  `json:"store"`
	Price    float64 `json:"price"`
	Unit     string  `json:"unit,omitempty"`
	Category string  `json:"category,omitempty"`
}

type itemResult struct {
	Item   string  `json:"item"`
	Found  bool    `json:"found"`
	Offers []offer `json:"offers"`
}

func (t *SearchProductsTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	var in struct {
		Items    []string `json:"items"`
		Category string   `json:"category"`
		MaxPrice float64  `json:"max_price"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ErrorResult(fmt.Sprintf("invalid arguments: %v", err))
	}
	if len(in.Items) == 0 {
		return ErrorResult("items is required")
	}

	out := make([]itemResult, 0, len(in.Items))
	for _, item := range in.Items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		products, err := t.catalog.QueryCatalog(ctx, store.CatalogQuery{
			Terms:    store.NormalizeTerms([]string{item}),
			Category: in.Category,
			MaxPrice: in.MaxPrice,
			Limit:    t.limit,
		})
		if err != nil {
			slog.Warn("search_products query failed", "item", item, "error", err)
			return ErrorResult(fmt.Sprintf("catalog search failed for %q", item)).WithError(err)
		}
		r := itemResult{Item: item, Found: len(products) > 0, Offers: []offer{}}
		for _, p := range products {
			r.Offers = append(r.Offers, offer{Name: p.Name, Store: p.Store, Price: p.Price, Unit: p.Unit, Category: p.Category})
		}
		out = append(out, r)
	}
	return jsonResult(map[string]interface{}{"results": out})
}
