// Package channels provides the channel abstraction layer for messaging
// platforms. Channels publish inbound messages to the bus and deliver
// outbound text and presence updates.
package channels

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nextlevelbuilder/radar/internal/bus"
)

// Transport delivers outbound messages to a recipient (a phone number or
// platform user id).
type Transport interface {
	SendText(ctx context.Context, recipient, text string) error
	// SendPresence asserts a presence state ("composing", "paused") for ttl.
	SendPresence(ctx context.Context, recipient, state string, ttl time.Duration) error
}

// Channel defines the interface that all channel implementations must satisfy.
type Channel interface {
	Transport

	// Name returns the channel identifier (e.g., "whatsapp").
	Name() string

	// Start begins listening for messages. Should be non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// IsRunning returns whether the channel is actively processing messages.
	IsRunning() bool

	// IsAllowed checks if a sender is permitted by the channel's policy.
	IsAllowed(senderID string) bool
}

// DMPolicy controls how messages from unknown senders are handled.
type DMPolicy string

const (
	DMPolicyAllowlist DMPolicy = "allowlist" // Only whitelisted senders
	DMPolicyOpen      DMPolicy = "open"      // Accept all
	DMPolicyDisabled  DMPolicy = "disabled"  // Reject all
)

// BaseChannel provides shared functionality for all channel implementations.
// Channel implementations should embed this struct.
type BaseChannel struct {
	name      string
	bus       bus.MessageRouter
	running   bool
	allowList []string
	policy    DMPolicy
}

// NewBaseChannel creates a new BaseChannel with the given parameters.
func NewBaseChannel(name string, router bus.MessageRouter, allowList []string, policy string) *BaseChannel {
	p := DMPolicy(policy)
	switch p {
	case DMPolicyAllowlist, DMPolicyOpen, DMPolicyDisabled:
	default:
		p = DMPolicyOpen
	}
	return &BaseChannel{
		name:      name,
		bus:       router,
		allowList: allowList,
		policy:    p,
	}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// IsAllowed applies the DM policy and the allowlist. Numbers are compared
// on their digits, so "+55 11 9999-9999" matches "551199999999".
func (c *BaseChannel) IsAllowed(senderID string) bool {
	switch c.policy {
	case DMPolicyDisabled:
		return false
	case DMPolicyAllowlist:
	default:
		if len(c.allowList) == 0 {
			return true
		}
	}

	id := normalizeID(senderID)
	for _, allowed := range c.allowList {
		if a := normalizeID(allowed); a != "" && a == id {
			return true
		}
	}
	return false
}

// HandleMessage publishes an inbound message to the bus if the sender is
// allowed. It reports false without error when the message was rejected or
// is a redelivery; bus errors (full, closed) are returned.
func (c *BaseChannel) HandleMessage(senderID, content, messageID string, receivedAt time.Time, metadata map[string]string) (bool, error) {
	if !c.IsAllowed(senderID) || c.bus == nil {
		return false, nil
	}
	err := c.bus.PublishInbound(bus.InboundMessage{
		Channel:    c.name,
		SenderID:   senderID,
		ChatID:     senderID,
		Content:    content,
		MessageID:  messageID,
		ReceivedAt: receivedAt,
		Metadata:   metadata,
	})
	switch {
	case errors.Is(err, bus.ErrDuplicate):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func normalizeID(id string) string {
	id = strings.TrimSpace(strings.TrimPrefix(id, "@"))
	if i := strings.IndexByte(id, '@'); i > 0 {
		id = id[:i]
	}
	var sb strings.Builder
	digits := true
	for _, r := range id {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		} else if r != '+' && r != ' ' && r != '-' && r != '(' && r != ')' {
			digits = false
		}
	}
	if digits && sb.Len() > 0 {
		return sb.String()
	}
	return strings.ToLower(id)
}

// Truncate shortens a string to maxLen, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
