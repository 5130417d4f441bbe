// Package bus carries inbound messages from channels to the engine.
package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const defaultBufferSize = 256

var (
	ErrDuplicate = errors.New("bus: duplicate message")
	ErrFull      = errors.New("bus: inbound buffer full")
	ErrClosed    = errors.New("bus: closed")
)

// MessageBus is a buffered inbound queue with redelivery dedupe.
// Channels publish; the gateway consumer drains it into the engine.
type MessageBus struct {
	inbound chan InboundMessage
	dedupe  *DedupeCache

	mu     sync.RWMutex
	closed bool
}

// New creates a bus. dedupeTTL <= 0 disables redelivery dedupe.
func New(bufferSize int, dedupeTTL time.Duration) *MessageBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	b := &MessageBus{inbound: make(chan InboundMessage, bufferSize)}
	if dedupeTTL > 0 {
		b.dedupe = NewDedupeCache(dedupeTTL, 0)
	}
	return b
}

// PublishInbound enqueues msg. It returns ErrDuplicate for a redelivery,
// ErrClosed or ErrFull. Only an enqueued message is remembered for dedupe,
// so a message dropped on a full buffer can be redelivered.
func (b *MessageBus) PublishInbound(msg InboundMessage) error {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	key := ""
	if b.dedupe != nil && msg.MessageID != "" {
		key = msg.Channel + ":" + msg.MessageID
		if b.dedupe.Seen(key) {
			slog.Debug("bus: duplicate inbound dropped", "channel", msg.Channel, "message_id", msg.MessageID)
			return ErrDuplicate
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.forget(key)
		return ErrClosed
	}
	select {
	case b.inbound <- msg:
		return nil
	default:
		b.forget(key)
		slog.Warn("bus: inbound buffer full, message dropped", "channel", msg.Channel, "sender", msg.SenderID)
		return ErrFull
	}
}

func (b *MessageBus) forget(key string) {
	if key != "" {
		b.dedupe.Forget(key)
	}
}

// ConsumeInbound blocks until a message is available, ctx is done or the
// bus is closed.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg, ok := <-b.inbound:
		return msg, ok
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// Close stops accepting messages; queued messages can still be consumed.
func (b *MessageBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.inbound)
}
