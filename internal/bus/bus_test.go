package bus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPublishDropsRedelivery(t *testing.T) {
	b := New(4, time.Minute)
	msg := InboundMessage{Channel: "whatsapp", SenderID: "5511", Content: "hi", MessageID: "ABC"}

	if err := b.PublishInbound(msg); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := b.PublishInbound(msg); !errors.Is(err, ErrDuplicate) {
		t.Errorf("redelivery err = %v, want ErrDuplicate", err)
	}
	msg.MessageID = ""
	if err := b.PublishInbound(msg); err != nil {
		t.Errorf("message without id: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, ok := b.ConsumeInbound(ctx)
	if !ok || got.MessageID != "ABC" || got.ReceivedAt.IsZero() {
		t.Errorf("consume = %+v, %v", got, ok)
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New(1, 0)
	b.Close()
	if err := b.PublishInbound(InboundMessage{Content: "x"}); !errors.Is(err, ErrClosed) {
		t.Errorf("publish after close err = %v, want ErrClosed", err)
	}
	if _, ok := b.ConsumeInbound(context.Background()); ok {
		t.Error("consume on closed empty bus returned a message")
	}
}

func TestDroppedMessageCanBeRedelivered(t *testing.T) {
	b := New(1, time.Minute)
	m1 := InboundMessage{Channel: "whatsapp", SenderID: "5511", Content: "a", MessageID: "m1"}
	m2 := InboundMessage{Channel: "whatsapp", SenderID: "5511", Content: "b", MessageID: "m2"}

	if err := b.PublishInbound(m1); err != nil {
		t.Fatalf("publish m1: %v", err)
	}
	if err := b.PublishInbound(m2); !errors.Is(err, ErrFull) {
		t.Fatalf("publish m2 on full buffer err = %v, want ErrFull", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := b.ConsumeInbound(ctx); !ok {
		t.Fatal("consume m1 failed")
	}
	if err := b.PublishInbound(m2); err != nil {
		t.Errorf("redelivered m2: %v", err)
	}
	if err := b.PublishInbound(m2); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second m2 err = %v, want ErrDuplicate", err)
	}
}

func TestDedupeCacheExpiry(t *testing.T) {
	d := NewDedupeCache(time.Minute, 2)
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	if d.Seen("a") {
		t.Error("a seen on first insert")
	}
	if !d.Seen("a") {
		t.Error("a not seen on second insert")
	}
	now = now.Add(2 * time.Minute)
	if d.Seen("a") {
		t.Error("a seen after ttl")
	}
	d.Seen("b")
	d.Seen("c")
	if d.Len() > 2 {
		t.Errorf("len = %d, want <= 2", d.Len())
	}
}
