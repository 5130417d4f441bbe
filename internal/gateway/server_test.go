package gateway

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/radar/internal/config"
	httpapi "github.com/nextlevelbuilder/radar/internal/http"
)

type acceptAll struct{}

func (acceptAll) HandleWebhook([]byte) (bool, error) { return true, nil }

func TestServerRoutes(t *testing.T) {
	s := NewServer(config.Default())
	s.SetWebhookHandler(httpapi.NewWebhookHandler("whatsapp", acceptAll{}, "", nil))
	s.SetMetricsHandler("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "radar_up 1\n")
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	}()

	base := "http://" + ln.Addr().String()
	tests := []struct {
		method, path string
		wantStatus   int
		wantBody     string
	}{
		{http.MethodGet, "/health", 200, `"status":"ok"`},
		{http.MethodGet, "/metrics", 200, "radar_up 1"},
		{http.MethodPost, "/webhook/whatsapp", 200, "accepted"},
		{http.MethodGet, "/v1/status", 404, ""},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, base+tt.path, strings.NewReader("{}"))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tt.method, tt.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.wantStatus)
		}
		if !strings.Contains(string(body), tt.wantBody) {
			t.Errorf("%s %s: body = %q, want %q", tt.method, tt.path, body, tt.wantBody)
		}
	}
}
