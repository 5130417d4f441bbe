package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/radar/internal/bus"
	"github.com/nextlevelbuilder/radar/internal/channels"
)

type fakeReceiver struct {
	accept bool
	err    error
	bodies []string
}

func (f *fakeReceiver) HandleWebhook(body []byte) (bool, error) {
	f.bodies = append(f.bodies, string(body))
	return f.accept, f.err
}

type countingSink map[string]int

func (c countingSink) Inbound(channel, result string) { c[channel+"/"+result]++ }

func serve(h *WebhookHandler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandler(t *testing.T) {
	tests := []struct {
		name       string
		receiver   *fakeReceiver
		token      string
		path       string
		header     map[string]string
		wantStatus int
		wantBody   string
		wantCount  string
	}{
		{"accepted", &fakeReceiver{accept: true}, "", "/webhook/whatsapp", nil, 200, `"accepted"`, "whatsapp/accepted"},
		{"root path", &fakeReceiver{accept: true}, "", "/", nil, 200, `"accepted"`, "whatsapp/accepted"},
		{"ignored", &fakeReceiver{}, "", "/webhook/whatsapp", nil, 200, `"ignored"`, "whatsapp/ignored"},
		{"invalid payload", &fakeReceiver{err: errors.New("bad json")}, "", "/webhook/whatsapp", nil, 400, "invalid payload", "whatsapp/error"},
		{"queue full", &fakeReceiver{err: fmt.Errorf("publish: %w", bus.ErrFull)}, "", "/webhook/whatsapp", nil, 503, "retry later", "whatsapp/error"},
		{"missing token", &fakeReceiver{accept: true}, "s3cret", "/webhook/whatsapp", nil, 401, "unauthorized", "whatsapp/rejected"},
		{"bearer token", &fakeReceiver{accept: true}, "s3cret", "/webhook/whatsapp", map[string]string{"Authorization": "Bearer s3cret"}, 200, `"accepted"`, "whatsapp/accepted"},
		{"apikey header", &fakeReceiver{accept: true}, "s3cret", "/webhook/whatsapp", map[string]string{"apikey": "s3cret"}, 200, `"accepted"`, "whatsapp/accepted"},
		{"query token", &fakeReceiver{accept: true}, "s3cret", "/webhook/whatsapp?token=s3cret", nil, 200, `"accepted"`, "whatsapp/accepted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebhookHandler("whatsapp", tt.receiver, tt.token, nil)
			sink := countingSink{}
			h.SetCounter(sink)

			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{"data":{}}`))
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := serve(h, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
			if sink[tt.wantCount] != 1 {
				t.Errorf("counts = %v, want %s", sink, tt.wantCount)
			}
		})
	}
}

func TestWebhookRejectsGet(t *testing.T) {
	h := NewWebhookHandler("whatsapp", &fakeReceiver{accept: true}, "", nil)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/webhook/whatsapp", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestWebhookRateLimit(t *testing.T) {
	recv := &fakeReceiver{accept: true}
	h := NewWebhookHandler("whatsapp", recv, "", channels.NewWebhookRateLimiter(2))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader("{}"))
		req.RemoteAddr = "10.0.0.1:5555"
		codes = append(codes, serve(h, req).Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
	if len(recv.bodies) != 2 {
		t.Errorf("receiver saw %d bodies, want 2", len(recv.bodies))
	}

	// Another source is tracked separately.
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader("{}"))
	req.RemoteAddr = "10.0.0.2:5555"
	if code := serve(h, req).Code; code != 200 {
		t.Errorf("second source status = %d, want 200", code)
	}
}

type fakeStatus struct{}

func (fakeStatus) ChannelStatus() map[string]interface{} {
	return map[string]interface{}{"whatsapp": map[string]interface{}{"running": true}}
}
func (fakeStatus) PendingTimers() int { return 3 }
func (fakeStatus) ConfigHash() string { return "abc123" }

func TestStatusHandler(t *testing.T) {
	h := NewStatusHandler(fakeStatus{}, "tok")
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got struct {
		PendingTimers int    `json:"pending_timers"`
		ConfigHash    string `json:"config_hash"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.PendingTimers != 3 || got.ConfigHash != "abc123" {
		t.Errorf("got %+v", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote, fwd, want string
	}{
		{"192.168.1.5:4000", "", "192.168.1.5"},
		{"192.168.1.5:4000", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
		{"pipe", "", "pipe"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if tt.fwd != "" {
			req.Header.Set("X-Forwarded-For", tt.fwd)
		}
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q, %q) = %q, want %q", tt.remote, tt.fwd, got, tt.want)
		}
	}
}
