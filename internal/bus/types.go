package bus

import (
	"context"
	"time"
)

// InboundMessage represents a message received from a channel.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"` // phone number or platform user id
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	MessageID  string            `json:"message_id,omitempty"` // platform id, used for redelivery dedupe
	ReceivedAt time.Time         `json:"received_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// MessageHandler handles an inbound message.
type MessageHandler func(context.Context, InboundMessage) error

// MessageRouter abstracts inbound routing between channels and the engine.
type MessageRouter interface {
	PublishInbound(msg InboundMessage) error
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
}
