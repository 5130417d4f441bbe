package agent

import (
	"testing"
	"unicode/utf8"
)

func TestSanitizeAssistantContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Cimento: R$ 90 na Loja B", "Cimento: R$ 90 na Loja B"},
		{"think block", "<think>compare prices</think>\n\nLoja B is cheapest.", "Loja B is cheapest."},
		{"mixed case thinking", "<THINKING>\nstep 1\nstep 2\n</THINKING>Done", "Done"},
		{"thought block mid text", "A <thought>hidden</thought>B", "A B"},
		{"repeated paragraph", "Loja B: R$ 90\n\nLoja B: R$ 90\n\nTotal: R$ 90", "Loja B: R$ 90\n\nTotal: R$ 90"},
		{"repeat not adjacent kept", "x\n\ny\n\nx", "x\n\ny\n\nx"},
		{"blank paragraphs", "\n\n\n\nHello\n\n\n\n", "Hello"},
		{"only reasoning", "<think>nothing to say</think>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeAssistantContent(tt.in); got != tt.want {
				t.Errorf("SanitizeAssistantContent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCutAt(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 10, "abc"},
		{"abcdef", 3, "abc"},
		{"cimênto", 4, "cim"}, // ê is two bytes starting at index 3
		{"cimênto", 5, "cimê"},
		{"ção", 1, ""},
		{"", 0, ""},
	}
	for _, tt := range tests {
		got := cutAt(tt.in, tt.n)
		if got != tt.want || !utf8.ValidString(got) {
			t.Errorf("cutAt(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestTruncateStrKeepsValidUTF8(t *testing.T) {
	got := truncateStr("tubulação", 7)
	if !utf8.ValidString(got) || got != "tubula..." {
		t.Errorf("truncateStr = %q", got)
	}
}
