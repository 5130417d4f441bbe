package agent

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// reasoningBlock matches the hidden reasoning some models put in their reply.
// Opening and closing tag names are not paired; a mismatch is still hidden.
var reasoningBlock = regexp.MustCompile(`(?is)<(?:think|thinking|thought)>.*?</(?:think|thinking|thought)>`)

// SanitizeAssistantContent turns raw model text into what the shopper sees:
// no reasoning blocks, no paragraph printed twice in a row, no surrounding
// blank space.
func SanitizeAssistantContent(content string) string {
	if content == "" {
		return ""
	}
	cleaned := reasoningBlock.ReplaceAllString(content, "")
	cleaned = dedupeParagraphs(cleaned)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned != content {
		slog.Debug("agent: reply cleaned", "before", len(content), "after", len(cleaned))
	}
	return cleaned
}

// dedupeParagraphs drops empty paragraphs and any paragraph equal to the one
// kept just before it.
func dedupeParagraphs(s string) string {
	if !strings.Contains(s, "\n\n") {
		return s
	}
	var kept []string
	prev := ""
	for _, p := range strings.Split(s, "\n\n") {
		t := strings.TrimSpace(p)
		if t == "" || t == prev {
			continue
		}
		kept = append(kept, strings.TrimRight(p, " \t\r\n"))
		prev = t
	}
	return strings.Join(kept, "\n\n")
}

// cutAt returns the longest prefix of s that is at most n bytes and ends on a
// rune boundary.
func cutAt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return cutAt(s, max) + "..."
}
