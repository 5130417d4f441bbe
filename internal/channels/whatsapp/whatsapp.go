// Package whatsapp implements the WhatsApp channel over two transports:
// the Evolution REST API with webhook delivery, and a WebSocket bridge
// that carries both directions over one socket.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/radar/internal/bus"
	"github.com/nextlevelbuilder/radar/internal/channels"
	"github.com/nextlevelbuilder/radar/internal/config"
	"github.com/nextlevelbuilder/radar/pkg/protocol"
)

const channelName = "whatsapp"

// Bridge connects to a WhatsApp bridge via WebSocket.
// The bridge (e.g. whatsapp-web.js based) handles the actual WhatsApp
// protocol; this channel just sends/receives JSON messages over WS.
type Bridge struct {
	*channels.BaseChannel
	conn      *websocket.Conn
	url       string
	mu        sync.Mutex
	connected bool
	limiter   *rate.Limiter
	ctx       context.Context
	cancel    context.CancelFunc
}

// bridgeFrame is the JSON frame exchanged with the bridge.
// Inbound:  {"type":"message","from":"...","content":"...","id":"...","timestamp":...}
// Outbound: {"type":"message","to":"...","content":"..."}
//
//	{"type":"presence","to":"...","state":"composing","ttl_ms":20000}
type bridgeFrame struct {
	Type      string `json:"type"`
	From      string `json:"from,omitempty"`
	Chat      string `json:"chat,omitempty"`
	To        string `json:"to,omitempty"`
	Content   string `json:"content,omitempty"`
	ID        string `json:"id,omitempty"`
	FromName  string `json:"from_name,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	State     string `json:"state,omitempty"`
	TTLMs     int64  `json:"ttl_ms,omitempty"`
}

// NewBridge creates the WebSocket bridge transport from config.
func NewBridge(cfg config.WhatsAppConfig, router bus.MessageRouter) (*Bridge, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge_url is required")
	}
	rps := cfg.SendRPS
	if rps <= 0 {
		rps = 5
	}
	return &Bridge{
		BaseChannel: channels.NewBaseChannel(channelName, router, cfg.AllowFrom, cfg.DMPolicy),
		url:         cfg.BridgeURL,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Start connects to the WhatsApp bridge WebSocket and begins listening.
func (c *Bridge) Start(ctx context.Context) error {
	slog.Info("starting whatsapp channel", "transport", config.TransportBridge, "bridge_url", c.url)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		// The listen loop keeps retrying.
		slog.Warn("initial whatsapp bridge connection failed, will retry", "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop gracefully shuts down the WhatsApp channel.
func (c *Bridge) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.SetRunning(false)

	return nil
}

// SendText delivers a text message through the bridge.
func (c *Bridge) SendText(ctx context.Context, recipient, text string) error {
	return c.write(ctx, bridgeFrame{Type: protocol.FrameMessage, To: recipient, Content: text})
}

// SendPresence asks the bridge to show a presence state for ttl.
func (c *Bridge) SendPresence(ctx context.Context, recipient, state string, ttl time.Duration) error {
	return c.write(ctx, bridgeFrame{Type: protocol.FramePresence, To: recipient, State: state, TTLMs: ttl.Milliseconds()})
}

func (c *Bridge) write(ctx context.Context, frame bridgeFrame) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal whatsapp %s: %w", frame.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send whatsapp %s: %w", frame.Type, err)
	}
	return nil
}

// connect establishes the WebSocket connection to the bridge.
func (c *Bridge) connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	slog.Info("whatsapp bridge connected", "url", c.url)
	return nil
}

// listenLoop reads frames from the bridge with automatic reconnection.
func (c *Bridge) listenLoop() {
	backoff := time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := c.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, 30*time.Second)
				continue
			}

			backoff = time.Second
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("whatsapp read error, will reconnect", "error", err)

			c.mu.Lock()
			if c.conn == conn {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.connected = false
			c.mu.Unlock()

			continue
		}

		var frame bridgeFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			slog.Warn("invalid whatsapp message JSON", "error", err)
			continue
		}
		if frame.Type == protocol.FrameMessage {
			c.handleIncoming(frame)
		}
	}
}

// handleIncoming publishes a direct text message received from the bridge.
func (c *Bridge) handleIncoming(f bridgeFrame) {
	senderID, _, _ := strings.Cut(f.From, "@")
	if senderID == "" {
		return
	}
	if strings.HasSuffix(f.Chat, protocol.GroupJIDSuffix) {
		slog.Debug("whatsapp group message ignored", "chat_id", f.Chat)
		return
	}
	content := strings.TrimSpace(f.Content)
	if content == "" {
		return
	}

	receivedAt := time.Now()
	if f.Timestamp > 0 {
		receivedAt = time.Unix(f.Timestamp, 0)
	}
	metadata := map[string]string{"message_id": f.ID}
	if f.FromName != "" {
		metadata["user_name"] = f.FromName
	}

	slog.Debug("whatsapp message received",
		"sender_id", senderID,
		"preview", channels.Truncate(content, 50),
	)

	ok, err := c.HandleMessage(senderID, content, f.ID, receivedAt, metadata)
	switch {
	case err != nil:
		slog.Warn("whatsapp message dropped", "sender_id", senderID, "id", f.ID, "error", err)
	case !ok:
		slog.Debug("whatsapp message ignored", "sender_id", senderID, "id", f.ID)
	}
}

// Connected reports whether the bridge socket is open.
func (c *Bridge) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
