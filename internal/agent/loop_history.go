package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/radar/internal/inbox"
	"github.com/nextlevelbuilder/radar/internal/providers"
	"github.com/nextlevelbuilder/radar/internal/store"
)

const defaultHistoryLimit = 10

// HistoryAssembler turns stored conversation turns plus the consolidated
// burst into the message list for one run. It makes no model calls; the
// system prompt is added by the Loop.
type HistoryAssembler struct {
	history store.HistoryStore
	limit   int
}

func NewHistoryAssembler(history store.HistoryStore, limit int) *HistoryAssembler {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &HistoryAssembler{history: history, limit: limit}
}

// Build returns the last limit turns, oldest first, followed by c.
func (h *HistoryAssembler) Build(ctx context.Context, userID string, c *inbox.Consolidated) ([]providers.Message, error) {
	turns, err := h.history.ListRecentHistory(ctx, userID, h.limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	msgs := make([]providers.Message, 0, len(turns)+1)
	for _, t := range turns {
		msgs = append(msgs, providers.Message{Role: t.Role, Content: t.Content})
	}
	msgs = sanitizeHistory(msgs)

	if c != nil {
		role := c.Role
		if role == "" {
			role = store.RoleUser
		}
		msgs = append(msgs, providers.Message{Role: role, Content: c.Content})
	}
	return msgs, nil
}

// sanitizeHistory keeps only user and assistant turns with content. Stored
// history never carries tool traffic; anything else is dropped.
func sanitizeHistory(msgs []providers.Message) []providers.Message {
	if len(msgs) == 0 {
		return msgs
	}
	result := make([]providers.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role != store.RoleUser && msg.Role != store.RoleAssistant {
			slog.Warn("dropping history turn with unexpected role", "role", msg.Role)
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		result = append(result, msg)
	}
	return result
}
