package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/radar/internal/store"
)

func TestPendingLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := store.PendingMessage{ID: store.GenNewID(), UserID: "u1", Content: "a"}
	b := store.PendingMessage{ID: store.GenNewID(), UserID: "u1", Content: "b"}
	other := store.PendingMessage{UserID: "u2", Content: "x"}
	for _, m := range []store.PendingMessage{a, b, other} {
		if err := s.AppendPending(ctx, m); err != nil {
			t.Fatalf("AppendPending: %v", err)
		}
	}

	got, _ := s.ListPending(ctx, "u1")
	if len(got) != 2 {
		t.Fatalf("ListPending(u1) = %d messages, want 2", len(got))
	}

	if err := s.DeletePending(ctx, []uuid.UUID{a.ID}); err != nil {
		t.Fatalf("DeletePending: %v", err)
	}
	got, _ = s.ListPending(ctx, "u1")
	if len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("after delete ListPending(u1) = %+v, want only b", got)
	}
	if s.PendingCount() != 2 {
		t.Errorf("PendingCount = %d, want 2", s.PendingCount())
	}
}

func TestListRecentHistoryKeepsNewest(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range []string{"one", "two", "three", "four"} {
		s.AppendHistory(ctx, store.ConversationTurn{
			UserID:    "u1",
			Role:      store.RoleUser,
			Content:   c,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	got, err := s.ListRecentHistory(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("ListRecentHistory: %v", err)
	}
	if len(got) != 2 || got[0].Content != "three" || got[1].Content != "four" {
		t.Errorf("ListRecentHistory = %+v, want [three four]", got)
	}
}

func TestCatalogAndContacts(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SeedCatalog([]store.Product{
		{Name: "Cimento", Keywords: []string{"cimento"}, Price: 40, Store: "Loja A", StorePhone: "5511999990000"},
		{Name: "Cimento", Keywords: []string{"cimento"}, Price: 35, Store: "Loja B"},
	}, map[string]string{"Loja B": "5511888880000"})

	got, err := s.QueryCatalog(ctx, store.CatalogQuery{Terms: []string{"cimento"}})
	if err != nil {
		t.Fatalf("QueryCatalog: %v", err)
	}
	if len(got) != 2 || got[0].Store != "Loja B" {
		t.Errorf("QueryCatalog = %+v, want cheapest first", got)
	}

	if phone, err := s.StoreContact(ctx, "loja a"); err != nil || phone != "5511999990000" {
		t.Errorf("StoreContact(loja a) = %q, %v", phone, err)
	}
	if _, err := s.StoreContact(ctx, "Loja Z"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("StoreContact(Loja Z) err = %v, want ErrNotFound", err)
	}
}

func TestAppendPendingIgnoresRedelivery(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AppendPending(ctx, store.PendingMessage{UserID: "u1", Content: "a", ExternalID: "wa-1"})
	s.AppendPending(ctx, store.PendingMessage{UserID: "u1", Content: "a", ExternalID: "wa-1"})
	s.AppendPending(ctx, store.PendingMessage{UserID: "u2", Content: "a", ExternalID: "wa-1"})
	if s.PendingCount() != 2 {
		t.Errorf("PendingCount = %d, want 2", s.PendingCount())
	}
}
