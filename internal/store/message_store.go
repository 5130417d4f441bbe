package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup has no matching row.
var ErrNotFound = errors.New("not found")

// Conversation roles stored with pending messages and turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PendingMessage is an inbound message that has not been answered yet.
// It stays durable until the reply for its burst has been generated and logged.
type PendingMessage struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	Role       string    `json:"role"`
	ExternalID string    `json:"external_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// ConversationTurn is one append-only entry of a user's conversation history.
type ConversationTurn struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingStore holds unanswered inbound messages.
type PendingStore interface {
	AppendPending(ctx context.Context, msg PendingMessage) error
	// ListPending returns the user's pending messages in no particular order.
	ListPending(ctx context.Context, userID string) ([]PendingMessage, error)
	DeletePending(ctx context.Context, ids []uuid.UUID) error
}

// HistoryStore holds conversation turns.
type HistoryStore interface {
	// AppendHistory stores all turns or none.
	AppendHistory(ctx context.Context, turns ...ConversationTurn) error
	// ListRecentHistory returns at most limit turns, oldest first.
	ListRecentHistory(ctx context.Context, userID string, limit int) ([]ConversationTurn, error)
}

// GenNewID returns a time-ordered UUID (v7) for new rows.
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
