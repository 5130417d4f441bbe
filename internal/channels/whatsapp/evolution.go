package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/radar/internal/bus"
	"github.com/nextlevelbuilder/radar/internal/channels"
	"github.com/nextlevelbuilder/radar/internal/config"
	"github.com/nextlevelbuilder/radar/pkg/protocol"
)

const evolutionTimeout = 10 * time.Second

// Evolution sends messages through an Evolution API instance. Inbound
// messages arrive on the gateway webhook and are handed to HandleWebhook.
type Evolution struct {
	*channels.BaseChannel
	baseURL  string
	instance string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewEvolution creates the Evolution API transport from config.
func NewEvolution(cfg config.WhatsAppConfig, router bus.MessageRouter) (*Evolution, error) {
	if cfg.BaseURL == "" || cfg.Instance == "" {
		return nil, fmt.Errorf("whatsapp evolution transport requires base_url and instance")
	}
	rps := cfg.SendRPS
	if rps <= 0 {
		rps = 5
	}
	return &Evolution{
		BaseChannel: channels.NewBaseChannel(channelName, router, cfg.AllowFrom, cfg.DMPolicy),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		instance:    cfg.Instance,
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: evolutionTimeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

func (e *Evolution) Start(_ context.Context) error {
	slog.Info("starting whatsapp channel", "transport", config.TransportEvolution, "instance", e.instance)
	e.SetRunning(true)
	return nil
}

func (e *Evolution) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")
	e.SetRunning(false)
	return nil
}

// SendText posts a text message to the recipient's number.
func (e *Evolution) SendText(ctx context.Context, recipient, text string) error {
	if recipient == "" || text == "" {
		return fmt.Errorf("whatsapp send: recipient and text are required")
	}
	return e.post(ctx, "/message/sendText/", map[string]interface{}{
		"number": recipient,
		"text":   text,
	})
}

// SendPresence asserts a chat presence for ttl.
func (e *Evolution) SendPresence(ctx context.Context, recipient, state string, ttl time.Duration) error {
	return e.post(ctx, "/chat/sendPresence/", map[string]interface{}{
		"number":   recipient,
		"presence": state,
		"delay":    ttl.Milliseconds(),
	})
}

func (e *Evolution) post(ctx context.Context, path string, payload map[string]interface{}) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp request: %w", err)
	}

	url := e.baseURL + path + e.instance
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("whatsapp request %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// HandleWebhook parses an Evolution webhook body and publishes the user
// message to the bus. It reports whether a message was accepted.
func (e *Evolution) HandleWebhook(body []byte) (bool, error) {
	ev, ok, err := ParseWebhook(body)
	if err != nil || !ok {
		return false, err
	}
	slog.Debug("whatsapp message received",
		"sender_id", ev.SenderID,
		"preview", channels.Truncate(ev.Text, 50),
	)
	meta := map[string]string{"message_id": ev.MessageID}
	if ev.PushName != "" {
		meta["user_name"] = ev.PushName
	}
	return e.HandleMessage(ev.SenderID, ev.Text, ev.MessageID, ev.ReceivedAt, meta)
}

// InboundEvent is a user text message extracted from a webhook.
type InboundEvent struct {
	SenderID   string
	Text       string
	MessageID  string
	PushName   string
	ReceivedAt time.Time
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Key struct {
			RemoteJid string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
			ID        string `json:"id"`
		} `json:"key"`
		PushName string `json:"pushName"`
		Message  struct {
			Conversation        *string `json:"conversation"`
			ExtendedTextMessage *struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
		} `json:"message"`
		MessageTimestamp json.Number `json:"messageTimestamp"`
	} `json:"data"`
}

// ParseWebhook extracts a user text message from an Evolution webhook.
// ok is false for messages sent by the instance itself, group chats,
// events without a sender, and non-text messages.
func ParseWebhook(body []byte) (InboundEvent, bool, error) {
	var p webhookPayload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return InboundEvent{}, false, fmt.Errorf("decode webhook: %w", err)
	}

	if p.Event != "" && p.Event != protocol.EvolutionMessagesUpsert {
		return InboundEvent{}, false, nil
	}
	key := p.Data.Key
	if key.FromMe || key.RemoteJid == "" || strings.HasSuffix(key.RemoteJid, protocol.GroupJIDSuffix) {
		return InboundEvent{}, false, nil
	}
	sender, _, _ := strings.Cut(key.RemoteJid, "@")

	var text string
	switch m := p.Data.Message; {
	case m.Conversation != nil:
		text = *m.Conversation
	case m.ExtendedTextMessage != nil:
		text = m.ExtendedTextMessage.Text
	}
	text = strings.TrimSpace(text)
	if sender == "" || text == "" {
		return InboundEvent{}, false, nil
	}

	ev := InboundEvent{
		SenderID:  sender,
		Text:      text,
		MessageID: key.ID,
		PushName:  p.Data.PushName,
	}
	if sec, err := p.Data.MessageTimestamp.Int64(); err == nil && sec > 0 {
		ev.ReceivedAt = time.Unix(sec, 0)
	}
	return ev, true, nil
}
