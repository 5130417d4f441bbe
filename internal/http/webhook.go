package http

import (
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/radar/internal/bus"
	"github.com/nextlevelbuilder/radar/internal/channels"
)

const maxWebhookBody = 1 << 20

// WebhookReceiver parses a provider webhook body and publishes the message.
// It reports whether a message was accepted.
type WebhookReceiver interface {
	HandleWebhook(body []byte) (bool, error)
}

// InboundCounter counts webhook deliveries by result.
type InboundCounter interface {
	Inbound(channel, result string)
}

// WebhookHandler receives Evolution API webhook deliveries.
type WebhookHandler struct {
	channel  string
	receiver WebhookReceiver
	token    string
	limiter  *channels.WebhookRateLimiter
	counter  InboundCounter
}

// NewWebhookHandler creates the webhook handler. An empty token disables
// authentication; a nil limiter disables rate limiting.
func NewWebhookHandler(channel string, receiver WebhookReceiver, token string, limiter *channels.WebhookRateLimiter) *WebhookHandler {
	return &WebhookHandler{channel: channel, receiver: receiver, token: token, limiter: limiter}
}

// SetCounter attaches an inbound counter (metrics).
func (h *WebhookHandler) SetCounter(c InboundCounter) { h.counter = c }

// RegisterRoutes registers the webhook routes on the given mux.
// Evolution posts to the configured URL; both the root path and
// /webhook/{channel} are accepted.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/"+h.channel, h.handle)
	mux.HandleFunc("POST /{$}", h.handle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.count("rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if h.limiter != nil && !h.limiter.Allow(clientIP(r)) {
		h.count("rejected")
		slog.Warn("security.webhook_rate_limited", "ip", clientIP(r))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.count("error")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}

	accepted, err := h.receiver.HandleWebhook(body)
	if errors.Is(err, bus.ErrFull) || errors.Is(err, bus.ErrClosed) {
		h.count("error")
		slog.Warn("webhook: inbound queue unavailable", "channel", h.channel, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "busy, retry later"})
		return
	}
	if err != nil {
		h.count("error")
		slog.Warn("webhook: invalid payload", "channel", h.channel, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if !accepted {
		h.count("ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	h.count("accepted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// authorized accepts the token as a bearer header, an apikey header or a
// ?token= query parameter (Evolution cannot set custom auth headers).
func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	for _, got := range []string{extractBearerToken(r), r.Header.Get("apikey"), r.URL.Query().Get("token")} {
		if got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1 {
			return true
		}
	}
	return false
}

func (h *WebhookHandler) count(result string) {
	if h.counter != nil {
		h.counter.Inbound(h.channel, result)
	}
}
