// Package sqlite is the standalone store backend: one local database file,
// no external services.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/radar/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_messages (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	external_id TEXT,
	received_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_user ON pending_messages (user_id, received_at);
CREATE UNIQUE INDEX IF NOT EXISTS uq_pending_external ON pending_messages (user_id, external_id);

CREATE TABLE IF NOT EXISTS conversation_turns (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_user ON conversation_turns (user_id, created_at);

CREATE TABLE IF NOT EXISTS stores (
	name  TEXT PRIMARY KEY COLLATE NOCASE,
	phone TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products (
	id       TEXT PRIMARY KEY,
	store    TEXT NOT NULL COLLATE NOCASE,
	name     TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	category TEXT NOT NULL DEFAULT '',
	unit     TEXT NOT NULL DEFAULT '',
	price    REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_price ON products (price);
`

// Store implements the pending, history and catalog stores on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStores wraps s in a store.Stores container that closes the database.
func NewStores(s *Store) *store.Stores {
	return &store.Stores{Pending: s, History: s, Catalog: s, Close: s.Close}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) AppendPending(ctx context.Context, msg store.PendingMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = store.GenNewID()
	}
	if msg.Role == "" {
		msg.Role = store.RoleUser
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	var externalID interface{}
	if msg.ExternalID != "" {
		externalID = msg.ExternalID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pending_messages (id, user_id, role, content, external_id, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID.String(), msg.UserID, msg.Role, msg.Content, externalID, msg.ReceivedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert pending message: %w", err)
	}
	return nil
}

func (s *Store) ListPending(ctx context.Context, userID string) ([]store.PendingMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, content, COALESCE(external_id, ''), received_at
		 FROM pending_messages WHERE user_id = ? ORDER BY received_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query pending messages: %w", err)
	}
	defer rows.Close()

	var out []store.PendingMessage
	for rows.Next() {
		var (
			m  store.PendingMessage
			id string
			at int64
		)
		if err := rows.Scan(&id, &m.UserID, &m.Role, &m.Content, &m.ExternalID, &at); err != nil {
			return nil, fmt.Errorf("scan pending message: %w", err)
		}
		m.ID, _ = uuid.Parse(id)
		m.ReceivedAt = time.Unix(0, at).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) DeletePending(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_messages WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete pending messages: %w", err)
	}
	return nil
}

// AppendHistory inserts turns in one transaction.
func (s *Store) AppendHistory(ctx context.Context, turns ...store.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
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
			`INSERT INTO conversation_turns (id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			turn.ID.String(), turn.UserID, turn.Role, turn.Content, turn.CreatedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert conversation turn: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListRecentHistory(ctx context.Context, userID string, limit int) ([]store.ConversationTurn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, content, created_at FROM (
			SELECT * FROM conversation_turns WHERE user_id = ? ORDER BY created_at DESC LIMIT ?
		 ) ORDER BY created_at ASC`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation turns: %w", err)
	}
	defer rows.Close()

	var out []store.ConversationTurn
	for rows.Next() {
		var (
			t  store.ConversationTurn
			id string
			at int64
		)
		if err := rows.Scan(&id, &t.UserID, &t.Role, &t.Content, &at); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		t.ID, _ = uuid.Parse(id)
		t.CreatedAt = time.Unix(0, at).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) QueryCatalog(ctx context.Context, q store.CatalogQuery) ([]store.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.keywords, p.category, p.unit, p.price, p.store, COALESCE(s.phone, '')
		 FROM products p LEFT JOIN stores s ON s.name = p.store
		 WHERE (? = '' OR p.category = ? COLLATE NOCASE)
		   AND (? <= 0 OR p.price <= ?)
		 ORDER BY p.price ASC, p.store ASC`,
		q.Category, q.Category, q.MaxPrice, q.MaxPrice)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var products []store.Product
	for rows.Next() {
		var (
			p        store.Product
			keywords string
		)
		if err := rows.Scan(&p.ID, &p.Name, &keywords, &p.Category, &p.Unit, &p.Price, &p.Store, &p.StorePhone); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &p.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords of %s: %w", p.ID, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.FilterProducts(products, store.CatalogQuery{Terms: q.Terms, Limit: q.Limit}), nil
}

func (s *Store) StoreContact(ctx context.Context, storeName string) (string, error) {
	var phone string
	err := s.db.QueryRowContext(ctx, `SELECT phone FROM stores WHERE name = ? COLLATE NOCASE`, storeName).Scan(&phone)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && phone == "") {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query store contact: %w", err)
	}
	return phone, nil
}

// ImportCatalog upserts products and their stores in one transaction.
func (s *Store) ImportCatalog(ctx context.Context, products []store.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range products {
		if p.ID == "" {
			p.ID = store.GenNewID().String()
		}
		kw, err := json.Marshal(p.Keywords)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stores (name, phone) VALUES (?, ?)
			 ON CONFLICT(name) DO UPDATE SET phone = CASE WHEN excluded.phone != '' THEN excluded.phone ELSE stores.phone END`,
			p.Store, p.StorePhone); err != nil {
			return fmt.Errorf("upsert store %s: %w", p.Store, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO products (id, store, name, keywords, category, unit, price)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Store, p.Name, string(kw), p.Category, p.Unit, p.Price); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Name, err)
		}
	}
	return tx.Commit()
}
