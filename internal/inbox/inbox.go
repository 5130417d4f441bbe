// Package inbox folds a user's pending messages into one consolidated turn.
package inbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/radar/internal/store"
)

// Consolidated is the single user turn built from a burst of pending messages.
type Consolidated struct {
	UserID    string
	Role      string
	Content   string
	CreatedAt time.Time
	// IDs are the pending messages folded into Content.
	IDs []uuid.UUID
}

// Consolidator reads and discards pending messages.
type Consolidator struct {
	pending store.PendingStore
}

func NewConsolidator(pending store.PendingStore) *Consolidator {
	return &Consolidator{pending: pending}
}

// Consolidate returns the user's pending messages as one turn, or nil when
// nothing is pending. It never deletes.
func (c *Consolidator) Consolidate(ctx context.Context, userID string) (*Consolidated, error) {
	msgs, err := c.pending.ListPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].ReceivedAt.Before(msgs[j].ReceivedAt)
	})

	parts := make([]string, 0, len(msgs))
	ids := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
		if s := strings.TrimSpace(m.Content); s != "" {
			parts = append(parts, s)
		}
	}

	role := msgs[0].Role
	if role == "" {
		role = store.RoleUser
	}
	return &Consolidated{
		UserID:    userID,
		Role:      role,
		Content:   strings.Join(parts, " "),
		CreatedAt: msgs[0].ReceivedAt,
		IDs:       ids,
	}, nil
}

// Discard deletes exactly the messages that were folded into c.
func (c *Consolidator) Discard(ctx context.Context, cm *Consolidated) error {
	if cm == nil || len(cm.IDs) == 0 {
		return nil
	}
	if err := c.pending.DeletePending(ctx, cm.IDs); err != nil {
		return fmt.Errorf("delete pending: %w", err)
	}
	return nil
}
