package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/radar/internal/agent"
	"github.com/nextlevelbuilder/radar/internal/bootstrap"
	"github.com/nextlevelbuilder/radar/internal/channels"
	"github.com/nextlevelbuilder/radar/internal/config"
	"github.com/nextlevelbuilder/radar/internal/debounce"
	"github.com/nextlevelbuilder/radar/internal/menu"
	"github.com/nextlevelbuilder/radar/internal/providers"
	"github.com/nextlevelbuilder/radar/internal/sessions"
	"github.com/nextlevelbuilder/radar/internal/store"
	"github.com/nextlevelbuilder/radar/internal/store/memory"
	"github.com/nextlevelbuilder/radar/internal/store/pg"
	"github.com/nextlevelbuilder/radar/internal/store/sqlite"
	"github.com/nextlevelbuilder/radar/internal/tools"
)

// app is the conversation pipeline shared by the gateway and the chat REPL.
type app struct {
	cfg      *config.Config
	stores   *store.Stores
	provider providers.Provider
	registry *tools.Registry
	sessions *sessions.Manager
	engine   *agent.Engine
}

type appOptions struct {
	transport channels.Transport
	channel   string
	recorder  agent.Recorder    // nil = no metrics
	observer  debounce.Observer // nil = no metrics
}

func buildApp(cfg *config.Config, stores *store.Stores, opts appOptions) (*app, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	workspace := cfg.WorkspacePath()
	if seeded, err := bootstrap.EnsureWorkspaceFiles(workspace); err != nil {
		slog.Warn("bootstrap template seeding failed", "error", err)
	} else if len(seeded) > 0 {
		slog.Info("seeded workspace templates", "files", seeded)
	}

	registry := tools.NewRegistry()
	tools.RegisterCatalogTools(registry, stores.Catalog)

	sess := sessions.NewManager(config.ExpandHome(cfg.Sessions.Storage), cfg.Sessions.StateTTL())

	var analyzer menu.Analyzer
	if cfg.Agent.Clarify {
		analyzer = agent.NewAnalyzer(provider, cfg.Agent.Model)
	}
	machine := menu.New(sess, stores.Catalog, agent.NewFinalizer(registry, opts.transport), analyzer)

	loop := agent.NewLoop(agent.LoopConfig{
		Provider:  provider,
		Model:     cfg.Agent.Model,
		Tools:     registry,
		Transport: opts.transport,
		SystemPrompt: func(segment string) string {
			return bootstrap.SystemPrompt(workspace, bootstrap.ParseSegment(segment), time.Now())
		},
		MaxRounds:       cfg.Agent.MaxToolRounds,
		LoopWindow:      cfg.Agent.LoopWindow,
		RepeatThreshold: cfg.Agent.LoopRepeatThreshold,
		MaxTokens:       cfg.Agent.MaxTokens,
		Temperature:     cfg.Agent.Temperature,
		MaxMessageChars: cfg.Agent.MaxMessageChars,
		Recorder:        opts.recorder,
	})

	var greeting string
	if cfg.Agent.FirstContactGreeting {
		greeting = bootstrap.Greeting(workspace)
	}

	engine := agent.NewEngine(agent.EngineConfig{
		Pending:      stores.Pending,
		History:      stores.History,
		Loop:         loop,
		Menu:         machine,
		Transport:    opts.transport,
		HistoryLimit: cfg.Agent.HistoryLimit,
		Debounce: debounce.Config{
			Delay:           cfg.Gateway.Debounce(),
			PresencePadding: cfg.Gateway.PresencePadding(),
			InflightPolicy:  cfg.Gateway.InflightPolicy,
			Observer:        opts.observer,
		},
		Channel:   opts.channel,
		Greeting:  greeting,
		Clarify:   cfg.Agent.Clarify,
		Segmenter: detectSegment,
	})

	return &app{
		cfg:      cfg,
		stores:   stores,
		provider: provider,
		registry: registry,
		sessions: sess,
		engine:   engine,
	}, nil
}

// detectSegment names the catalog segment of text, or "" for none.
func detectSegment(text string) string {
	if s := bootstrap.DetectSegment(text); s != bootstrap.SegmentGeneral {
		return string(s)
	}
	return ""
}

// applyReload pushes the hot-reloadable settings into the running pipeline.
func (a *app) applyReload(next *config.Config) {
	a.cfg.ReplaceFrom(next)
	a.engine.Scheduler().SetDelay(next.Gateway.Debounce())
	a.sessions.SetTTL(next.Sessions.StateTTL())
	slog.Info("config applied", "debounce", next.Gateway.Debounce(), "state_ttl", next.Sessions.StateTTL())
}

func (a *app) close() {
	a.engine.Stop()
	if a.stores.Close != nil {
		if err := a.stores.Close(); err != nil {
			slog.Warn("close stores", "error", err)
		}
	}
}

// openStores opens the configured storage backend and seeds its catalog
// from database.catalog_file when one is set.
func openStores(ctx context.Context, cfg *config.Config) (*store.Stores, error) {
	var catalog *store.CatalogFile
	if path := config.ExpandHome(cfg.Database.CatalogFile); path != "" {
		f, err := store.ReadCatalogFile(path)
		if err != nil {
			return nil, err
		}
		catalog = f
	}

	switch cfg.Database.Driver {
	case "postgres":
		if err := checkSchemaOrAutoUpgrade(ctx, cfg.Database.PostgresDSN); err != nil {
			return nil, err
		}
		if catalog != nil {
			slog.Warn("catalog_file ignored for postgres; load products with SQL")
		}
		return pg.NewPGStores(store.StoreConfig{Driver: "postgres", PostgresDSN: cfg.Database.PostgresDSN})

	case "sqlite":
		s, err := sqlite.Open(config.ExpandHome(cfg.Database.SQLitePath))
		if err != nil {
			return nil, err
		}
		if catalog != nil {
			if err := s.ImportCatalog(ctx, catalog.Products); err != nil {
				s.Close()
				return nil, fmt.Errorf("import catalog: %w", err)
			}
			slog.Info("catalog imported", "products", len(catalog.Products))
		}
		return sqlite.NewStores(s), nil

	case "memory":
		m := memory.New()
		if catalog != nil {
			m.SeedCatalog(catalog.Products, catalog.Contacts())
			slog.Info("catalog seeded", "products", len(catalog.Products))
		}
		return memory.NewStores(m), nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
