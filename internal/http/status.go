package http

import (
	"net/http"
	"time"
)

// StatusSource reports runtime state for the status endpoint.
type StatusSource interface {
	ChannelStatus() map[string]interface{}
	PendingTimers() int
	ConfigHash() string
}

// StatusHandler serves GET /v1/status for operators.
type StatusHandler struct {
	src     StatusSource
	token   string
	started time.Time
}

func NewStatusHandler(src StatusSource, token string) *StatusHandler {
	return &StatusHandler{src: src, token: token, started: time.Now()}
}

// RegisterRoutes registers the status route on the given mux.
func (h *StatusHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/status", h.auth(h.handleStatus))
}

func (h *StatusHandler) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" {
			if extractBearerToken(r) != h.token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next(w, r)
	}
}

func (h *StatusHandler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channels":       h.src.ChannelStatus(),
		"pending_timers": h.src.PendingTimers(),
		"config_hash":    h.src.ConfigHash(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
