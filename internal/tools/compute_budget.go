package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/radar/internal/budget"
	"github.com/nextlevelbuilder/radar/internal/store"
)

// ComputeBudgetTool prices a shopping list at every store that carries all of it.
type ComputeBudgetTool struct {
	catalog store.CatalogStore
}

func NewComputeBudgetTool(catalog store.CatalogStore) *ComputeBudgetTool {
	return &ComputeBudgetTool{catalog: catalog}
}

func (t *ComputeBudgetTool) Name() string { return "compute_budget" }

func (t *ComputeBudgetTool) Description() string {
	return "Compute the total of a shopping list per store. Only stores that carry every item are listed, cheapest first. Show the returned summary to the customer as-is."
}

func (t *ComputeBudgetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"items": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"keywords": map[string]interface{}{
							"type":        "array",
							"description": "Keywords identifying the product.",
							"items":       map[string]interface{}{"type": "string"},
						},
						"quantity": map[string]interface{}{
							"type":    "integer",
							"minimum": 1,
						},
					},
					"required": []string{"keywords"},
				},
			},
		},
		"required": []string{"items"},
	}
}

// keywordList accepts either a JSON array of strings or a single string.
type keywordList []string

func (k *keywordList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*k = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("keywords must be a string or a list of strings")
	}
	*k = strings.Fields(s)
	return nil
}

type budgetStore struct {
	Name    string        `json:"name"`
	Total   float64       `json:"total"`
	Items   []budget.Item `json:"items"`
	Contact string        `json:"contact,omitempty"`
}

func (t *ComputeBudgetTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	var in struct {
		Items []struct {
			Keywords keywordList `json:"keywords"`
			Quantity int         `json:"quantity"`
		} `json:"items"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return ErrorResult(fmt.Sprintf("invalid arguments: %v", err))
	}

	var picks []budget.Pick
	for _, it := range in.Items {
		kw := store.NormalizeTerms(it.Keywords)
		if len(kw) == 0 {
			continue
		}
		picks = append(picks, budget.Pick{Keywords: kw, Quantity: it.Quantity})
	}
	if len(picks) == 0 {
		return ErrorResult("items is required")
	}

	res, err := budget.Compute(ctx, t.catalog, picks)
	if err != nil {
		return ErrorResult(fmt.Sprintf("budget computation failed: %v", err)).WithError(err)
	}

	stores := make([]budgetStore, 0, len(res.Stores))
	for _, st := range res.Stores {
		stores = append(stores, budgetStore{Name: st.Store, Total: st.Total, Items: st.Items, Contact: st.Contact})
	}
	payload := map[string]interface{}{
		"stores":  stores,
		"summary": budget.FormatSummary(res),
	}
	if c, ok := res.Cheapest(); ok {
		payload["cheapest"] = map[string]interface{}{"name": c.Store, "total": c.Total}
	}
	if len(res.Missing) > 0 {
		payload["missing"] = res.Missing
	}

	r := jsonResult(payload)
	if len(res.Stores) > 0 {
		r.Budget = res
	}
	return r
}
