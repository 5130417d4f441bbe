package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nextlevelbuilder/radar/internal/store"
)

// PGMessageStore implements store.PendingStore and store.HistoryStore.
type PGMessageStore struct {
	db *sql.DB
}

func NewPGMessageStore(db *sql.DB) *PGMessageStore {
	return &PGMessageStore{db: db}
}

func (s *PGMessageStore) AppendPending(ctx context.Context, msg store.PendingMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = store.GenNewID()
	}
	if msg.Role == "" {
		msg.Role = store.RoleUser
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	// Webhook retries carry the same external id; the unique index makes them no-ops.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_messages (id, user_id, role, content, external_id, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
		msg.ID, msg.UserID, msg.Role, msg.Content, nilIfEmpty(msg.ExternalID), msg.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pending message: %w", err)
	}
	return nil
}

func (s *PGMessageStore) ListPending(ctx context.Context, userID string) ([]store.PendingMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, content, COALESCE(external_id, ''), received_at
		 FROM pending_messages WHERE user_id = $1 ORDER BY received_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending messages: %w", err)
	}
	defer rows.Close()

	var out []store.PendingMessage
	for rows.Next() {
		var m store.PendingMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.ExternalID, &m.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan pending message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PGMessageStore) DeletePending(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_messages WHERE id = ANY($1::uuid[])`, pq.Array(strIDs),
	); err != nil {
		return fmt.Errorf("delete pending messages: %w", err)
	}
	return nil
}

// AppendHistory inserts turns in one transaction.
func (s *PGMessageStore) AppendHistory(ctx context.Context, turns ...store.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	for _, turn := range turns {
		if turn.ID == uuid.Nil {
			turn.ID = store.GenNewID()
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_turns (id, user_id, role, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			turn.ID, turn.UserID, turn.Role, turn.Content, turn.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert conversation turn: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PGMessageStore) ListRecentHistory(ctx context.Context, userID string, limit int) ([]store.ConversationTurn, error) {
	if limit <= 0 {
		limit = 10
	}
	// Newest first for the LIMIT, flipped back to chronological order below.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, content, created_at
		 FROM conversation_turns WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation turns: %w", err)
	}
	defer rows.Close()

	var out []store.ConversationTurn
	for rows.Next() {
		var t store.ConversationTurn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
