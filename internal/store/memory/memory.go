// Package memory is an in-process store backend used by `radar chat` and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/radar/internal/store"
)

// Store implements store.PendingStore, store.HistoryStore and store.CatalogStore
// on top of maps. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	pending  []store.PendingMessage // insertion order
	history  map[string][]store.ConversationTurn
	products []store.Product
	contacts map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		history:  make(map[string][]store.ConversationTurn),
		contacts: make(map[string]string),
	}
}

// NewStores wraps s in a store.Stores container.
func NewStores(s *Store) *store.Stores {
	return &store.Stores{Pending: s, History: s, Catalog: s}
}

// SeedCatalog replaces the catalog and the store contact book.
func (s *Store) SeedCatalog(products []store.Product, contacts map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append([]store.Product(nil), products...)
	s.contacts = make(map[string]string, len(contacts))
	for name, phone := range contacts {
		s.contacts[strings.ToLower(name)] = phone
	}
	for _, p := range products {
		if p.StorePhone == "" {
			continue
		}
		if _, ok := s.contacts[strings.ToLower(p.Store)]; !ok {
			s.contacts[strings.ToLower(p.Store)] = p.StorePhone
		}
	}
}

func (s *Store) AppendPending(_ context.Context, msg store.PendingMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = store.GenNewID()
	}
	if msg.Role == "" {
		msg.Role = store.RoleUser
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.pending {
		if m.ID == msg.ID || (msg.ExternalID != "" && m.UserID == msg.UserID && m.ExternalID == msg.ExternalID) {
			return nil
		}
	}
	s.pending = append(s.pending, msg)
	return nil
}

func (s *Store) ListPending(_ context.Context, userID string) ([]store.PendingMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.PendingMessage
	for _, m := range s.pending {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) DeletePending(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.pending[:0]
	for _, m := range s.pending {
		if !drop[m.ID] {
			kept = append(kept, m)
		}
	}
	s.pending = kept
	return nil
}

// PendingCount returns the number of pending messages across all users.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

func (s *Store) AppendHistory(_ context.Context, turns ...store.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, turn := range turns {
		if turn.ID == uuid.Nil {
			turn.ID = store.GenNewID()
		}
		s.history[turn.UserID] = append(s.history[turn.UserID], turn)
	}
	return nil
}

func (s *Store) ListRecentHistory(_ context.Context, userID string, limit int) ([]store.ConversationTurn, error) {
	s.mu.RLock()
	turns := append([]store.ConversationTurn(nil), s.history[userID]...)
	s.mu.RUnlock()

	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (s *Store) QueryCatalog(_ context.Context, q store.CatalogQuery) ([]store.Product, error) {
	s.mu.RLock()
	products := append([]store.Product(nil), s.products...)
	s.mu.RUnlock()

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Price < products[j].Price
	})
	return store.FilterProducts(products, q), nil
}

func (s *Store) StoreContact(_ context.Context, storeName string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	phone, ok := s.contacts[strings.ToLower(storeName)]
	if !ok || phone == "" {
		return "", store.ErrNotFound
	}
	return phone, nil
}
