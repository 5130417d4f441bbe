package sessions

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/radar/internal/budget"
)

func TestManagerUpdateAndGet(t *testing.T) {
	m := NewManager("", 0)

	if s, ok := m.Get("u1"); ok || s.Awaiting != AwaitingNone {
		t.Fatalf("Get on empty manager = %+v, %v", s, ok)
	}

	m.Update("u1", func(s *ConversationState) {
		s.Awaiting = AwaitingStoreSelection
		s.StoreTotals = []budget.StoreTotal{{Store: "B", Total: 90}}
	})

	s, ok := m.Get("u1")
	if !ok || s.Awaiting != AwaitingStoreSelection || !s.HasTotals() {
		t.Fatalf("Get = %+v, %v", s, ok)
	}

	// Mutating the copy must not leak into the manager.
	s.StoreTotals[0].Store = "X"
	again, _ := m.Get("u1")
	if again.StoreTotals[0].Store != "B" {
		t.Errorf("Get returned shared slice")
	}
}

func TestManagerExpiry(t *testing.T) {
	m := NewManager("", time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Update("u1", func(s *ConversationState) { s.Awaiting = AwaitingPurchaseConfirm })
	m.Update("u2", func(s *ConversationState) { s.Awaiting = AwaitingPurchaseConfirm })

	now = now.Add(30 * time.Second)
	m.Update("u2", func(s *ConversationState) {})

	now = now.Add(45 * time.Second)
	if _, ok := m.Get("u1"); ok {
		t.Error("u1 should have expired")
	}
	if n := m.Sweep(); n != 0 {
		t.Errorf("Sweep = %d, want 0 (u1 already dropped by Get)", n)
	}
	if _, ok := m.Get("u2"); !ok {
		t.Error("u2 should still be live")
	}

	now = now.Add(2 * time.Minute)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d, want 0", m.Count())
	}
}

func TestManagerPersistence(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, 0)
	m.Update("5511999990000", func(s *ConversationState) {
		s.Awaiting = AwaitingClarification
		s.PendingProducts = []ClarificationItem{{Category: "type", Label: "cimento", Options: []string{"CP II", "CP III"}}}
		s.ClarifiedCategories = map[string]bool{"size": true}
	})

	reloaded := NewManager(dir, 0)
	s, ok := reloaded.Get("5511999990000")
	if !ok {
		t.Fatal("state not reloaded from disk")
	}
	if s.Awaiting != AwaitingClarification || len(s.PendingProducts) != 1 || !s.ClarifiedCategories["size"] {
		t.Errorf("reloaded state = %+v", s)
	}
	if got := s.Unresolved(); len(got) != 1 || got[0].Category != "type" {
		t.Errorf("Unresolved = %+v", got)
	}

	if err := reloaded.Clear("5511999990000"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := NewManager(dir, 0).Get("5511999990000"); ok {
		t.Error("state file should be removed by Clear")
	}
}

func TestStateFilenameRejectsTraversal(t *testing.T) {
	for _, id := range []string{"", "../x", "a/b", "."} {
		if _, ok := stateFilename(id); ok {
			t.Errorf("stateFilename(%q) accepted", id)
		}
	}
}
