package inbox

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/radar/internal/store"
	"github.com/nextlevelbuilder/radar/internal/store/memory"
)

func TestConsolidate(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		msgs     []store.PendingMessage
		want     string
		wantNil  bool
		wantFrom time.Time
	}{
		{name: "nothing pending", wantNil: true},
		{
			name: "ordered by received time",
			msgs: []store.PendingMessage{
				{Content: "e areia", ReceivedAt: base.Add(2 * time.Second)},
				{Content: "quero cimento", ReceivedAt: base},
				{Content: "  ", ReceivedAt: base.Add(time.Second)},
			},
			want:     "quero cimento e areia",
			wantFrom: base,
		},
		{
			name: "ties keep insertion order",
			msgs: []store.PendingMessage{
				{Content: "a", ReceivedAt: base},
				{Content: "b", ReceivedAt: base},
			},
			want:     "a b",
			wantFrom: base,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := memory.New()
			for _, m := range tt.msgs {
				m.UserID = "u1"
				if err := s.AppendPending(ctx, m); err != nil {
					t.Fatal(err)
				}
			}
			c := NewConsolidator(s)
			got, err := c.Consolidate(ctx, "u1")
			if err != nil {
				t.Fatalf("Consolidate: %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("Consolidate = %+v, want nil", got)
				}
				return
			}
			if got.Content != tt.want {
				t.Errorf("Content = %q, want %q", got.Content, tt.want)
			}
			if got.Role != store.RoleUser || !got.CreatedAt.Equal(tt.wantFrom) {
				t.Errorf("Role/CreatedAt = %s/%v", got.Role, got.CreatedAt)
			}
			if len(got.IDs) != len(tt.msgs) {
				t.Errorf("IDs = %d, want %d", len(got.IDs), len(tt.msgs))
			}
			if s.PendingCount() != len(tt.msgs) {
				t.Error("Consolidate must not delete")
			}
		})
	}
}

func TestDiscardOnlyConsolidated(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	now := time.Now()
	s.AppendPending(ctx, store.PendingMessage{UserID: "u1", Content: "one", ReceivedAt: now})
	c := NewConsolidator(s)
	cm, _ := c.Consolidate(ctx, "u1")

	// Arrives while the reply is being generated.
	s.AppendPending(ctx, store.PendingMessage{UserID: "u1", Content: "two", ReceivedAt: now.Add(time.Second)})

	if err := c.Discard(ctx, cm); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	left, _ := s.ListPending(ctx, "u1")
	if len(left) != 1 || left[0].Content != "two" {
		t.Errorf("pending after discard = %+v, want only the late message", left)
	}
	if err := c.Discard(ctx, nil); err != nil {
		t.Errorf("Discard(nil) = %v", err)
	}
}
