package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/radar/internal/bus"
	"github.com/nextlevelbuilder/radar/internal/channels"
	"github.com/nextlevelbuilder/radar/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/radar/internal/config"
	"github.com/nextlevelbuilder/radar/internal/gateway"
	httpapi "github.com/nextlevelbuilder/radar/internal/http"
	"github.com/nextlevelbuilder/radar/internal/metrics"
	"github.com/nextlevelbuilder/radar/internal/telemetry"
)

const inboundBufferSize = 256

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the WhatsApp gateway (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway()
		},
	}
}

func runGateway() error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Warn("telemetry disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	msgBus := bus.New(inboundBufferSize, time.Duration(cfg.Gateway.DedupeTTLMinutes)*time.Minute)
	channelMgr := channels.NewManager()

	opts := appOptions{transport: channelMgr, channel: "whatsapp"}
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		opts.transport = m.WrapTransport(channelMgr)
		opts.recorder = m
		opts.observer = m
	}

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	a, err := buildApp(cfg, stores, opts)
	if err != nil {
		if stores.Close != nil {
			stores.Close()
		}
		return err
	}
	defer a.close()

	server := gateway.NewServer(cfg)
	if cfg.Channels.WhatsApp.Enabled {
		ch, err := whatsapp.New(cfg.Channels.WhatsApp, msgBus)
		if err != nil {
			return fmt.Errorf("whatsapp channel: %w", err)
		}
		channelMgr.RegisterChannel(ch.Name(), ch)

		// Webhook transports receive through the gateway; the bridge reads its own socket.
		if recv, ok := ch.(httpapi.WebhookReceiver); ok {
			wh := httpapi.NewWebhookHandler(ch.Name(), recv, cfg.Gateway.WebhookToken,
				channels.NewWebhookRateLimiter(cfg.Gateway.WebhookRPM))
			if m != nil {
				wh.SetCounter(m)
			}
			server.SetWebhookHandler(wh)
		}
	} else {
		slog.Warn("whatsapp channel disabled; no messages will be received")
	}

	server.SetStatusHandler(httpapi.NewStatusHandler(statusSource{
		channels:  channelMgr,
		scheduler: a.engine.Scheduler(),
		cfg:       cfg,
	}, cfg.Gateway.WebhookToken))
	if m != nil {
		server.SetMetricsHandler(cfg.Metrics.Path, m.Handler())
	}

	if err := channelMgr.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		consumeInboundMessages(gctx, msgBus, engineHandler(a.engine))
		return nil
	})
	g.Go(func() error {
		return a.sessions.RunSweeper(gctx, cfg.Sessions.SweepCron)
	})
	g.Go(func() error {
		if err := config.Watch(gctx, cfgPath, a.applyReload); err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		}
		return nil
	})

	slog.Info("radar gateway running",
		"version", Version,
		"model", cfg.Agent.Model,
		"debounce", cfg.Gateway.Debounce(),
		"store", cfg.Database.Driver,
		"channels", channelMgr.GetEnabledChannels(),
	)

	err = g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopErr := channelMgr.StopAll(stopCtx); stopErr != nil {
		slog.Warn("stop channels", "error", stopErr)
	}
	msgBus.Close()
	slog.Info("radar gateway stopped")
	return err
}
