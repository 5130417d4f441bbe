package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/radar/internal/menu"
	"github.com/nextlevelbuilder/radar/internal/providers"
)

const analyzerPrompt = `Extract the products a customer asks for in a building-materials shop.
Answer with one JSON object: {"items":[{"label":"...","keywords":["..."],"quantity":1,"category":"...","specified":false}]}.
- label: the product as the customer named it.
- keywords: 1 to 3 lower-case search words, singular, no quantities or units.
- quantity: integer, 1 when not stated.
- category: the attribute the customer left open (for example "type", "size", "color"), empty if none.
- specified: true when the customer already named a precise variant.
If the message asks for no product, answer {"items":[]}.`

// Analyzer asks the model for a structured reading of a message. It
// implements menu.Analyzer.
type Analyzer struct {
	provider providers.Provider
	model    string
}

func NewAnalyzer(provider providers.Provider, model string) *Analyzer {
	if model == "" {
		model = provider.DefaultModel()
	}
	return &Analyzer{provider: provider, model: model}
}

func (a *Analyzer) Analyze(ctx context.Context, text string) ([]menu.ProductRequest, error) {
	resp, err := a.provider.Chat(ctx, providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: analyzerPrompt},
			{Role: "user", Content: text},
		},
		Model:    a.model,
		JSONMode: true,
		Options:  map[string]interface{}{providers.OptTemperature: 0.0},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return parseAnalysis(resp.Content)
}

// parseAnalysis accepts the JSON object, optionally wrapped in a code fence.
func parseAnalysis(content string) ([]menu.ProductRequest, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var out struct {
		Items []menu.ProductRequest `json:"items"`
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("analyze: parse %q: %w", truncateStr(s, 80), err)
	}
	return out.Items, nil
}
