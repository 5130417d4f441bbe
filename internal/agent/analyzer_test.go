package agent

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/radar/internal/providers"
)

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantItems int
		wantErr   bool
	}{
		{"plain", `{"items":[{"label":"cimento","keywords":["cimento"],"quantity":2,"category":"type"}]}`, 1, false},
		{"fenced", "```json\n{\"items\":[{\"label\":\"areia\",\"keywords\":[\"areia\"]},{\"label\":\"brita\"}]}\n```", 2, false},
		{"no products", `{"items":[]}`, 0, false},
		{"garbage", `I think you want cement`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := parseAnalysis(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(items) != tt.wantItems {
				t.Errorf("items = %+v, want %d", items, tt.wantItems)
			}
		})
	}
}

func TestAnalyzerRequestsJSON(t *testing.T) {
	prov := &scriptedProvider{responses: []*providers.ChatResponse{
		text(`{"items":[{"label":"cimento","keywords":["cimento"],"quantity":3,"category":"type","specified":false}]}`),
	}}
	a := NewAnalyzer(prov, "")

	items, err := a.Analyze(context.Background(), "3 sacos de cimento")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Quantity != 3 || items[0].Category != "type" {
		t.Errorf("items = %+v", items)
	}

	req := prov.call(0)
	if !req.JSONMode {
		t.Error("JSONMode = false")
	}
	if req.Model != "test-model" {
		t.Errorf("model = %q", req.Model)
	}
	if req.Messages[1].Content != "3 sacos de cimento" {
		t.Errorf("user message = %q", req.Messages[1].Content)
	}
}
