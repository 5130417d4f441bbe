package whatsapp

import (
	"fmt"

	"github.com/nextlevelbuilder/radar/internal/bus"
	"github.com/nextlevelbuilder/radar/internal/channels"
	"github.com/nextlevelbuilder/radar/internal/config"
)

// New creates the WhatsApp channel for the configured transport.
func New(cfg config.WhatsAppConfig, router bus.MessageRouter) (channels.Channel, error) {
	switch cfg.Transport {
	case "", config.TransportEvolution:
		return NewEvolution(cfg, router)
	case config.TransportBridge:
		return NewBridge(cfg, router)
	default:
		return nil, fmt.Errorf("unknown whatsapp transport %q", cfg.Transport)
	}
}
