package cmd

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/radar/internal/agent"
	"github.com/nextlevelbuilder/radar/internal/bus"
	"github.com/nextlevelbuilder/radar/internal/channels"
	"github.com/nextlevelbuilder/radar/internal/config"
	"github.com/nextlevelbuilder/radar/internal/debounce"
)

// consumeInboundMessages hands every message published by the channels to
// handle until ctx is done or the bus is closed.
func consumeInboundMessages(ctx context.Context, router bus.MessageRouter, handle bus.MessageHandler) {
	slog.Info("inbound message consumer started")
	for {
		msg, ok := router.ConsumeInbound(ctx)
		if !ok {
			slog.Info("inbound message consumer stopped")
			return
		}
		if err := handle(ctx, msg); err != nil {
			slog.Error("inbound: store message failed",
				"channel", msg.Channel, "sender", msg.SenderID, "error", err)
		}
	}
}

// engineHandler stores the message durably and arms the sender's debounce
// timer. The reply is produced later by the scheduler.
func engineHandler(e *agent.Engine) bus.MessageHandler {
	return func(ctx context.Context, msg bus.InboundMessage) error {
		return e.Receive(ctx, msg.SenderID, msg.Content, agent.Metadata{
			ExternalID: msg.MessageID,
			ReceivedAt: msg.ReceivedAt,
		})
	}
}

// statusSource feeds GET /v1/status.
type statusSource struct {
	channels  *channels.Manager
	scheduler *debounce.Scheduler
	cfg       *config.Config
}

func (s statusSource) ChannelStatus() map[string]interface{} { return s.channels.GetStatus() }
func (s statusSource) PendingTimers() int                    { return s.scheduler.Pending() }
func (s statusSource) ConfigHash() string                    { return s.cfg.Hash() }
