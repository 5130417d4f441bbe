// Package gateway runs the HTTP server that receives chat webhooks and
// exposes health, status and metrics endpoints.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/radar/internal/config"
	httpapi "github.com/nextlevelbuilder/radar/internal/http"
)

// Version is reported by /health; set by cmd at build time.
var Version = "dev"

// Server is the gateway HTTP server.
type Server struct {
	cfg *config.Config

	webhookHandler *httpapi.WebhookHandler // nil when no webhook transport is active
	statusHandler  *httpapi.StatusHandler
	metrics        http.Handler
	metricsPath    string

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new gateway server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// SetWebhookHandler mounts the chat webhook.
func (s *Server) SetWebhookHandler(h *httpapi.WebhookHandler) { s.webhookHandler = h }

// SetStatusHandler mounts GET /v1/status.
func (s *Server) SetStatusHandler(h *httpapi.StatusHandler) { s.statusHandler = h }

// SetMetricsHandler mounts the Prometheus handler at path.
func (s *Server) SetMetricsHandler(path string, h http.Handler) {
	s.metricsPath = path
	s.metrics = h
}

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.webhookHandler != nil {
		s.webhookHandler.RegisterRoutes(mux)
	}
	if s.statusHandler != nil {
		s.statusHandler.RegisterRoutes(mux)
	}
	if s.metrics != nil {
		mux.Handle("GET "+s.metricsPath, s.metrics)
	}

	s.mux = mux
	return mux
}

// Start listens until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.BuildMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("gateway starting", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","version":%q}`, Version)
}
