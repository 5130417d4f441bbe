package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/adhocore/gronx"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/radar/internal/config"
	"github.com/nextlevelbuilder/radar/internal/store"
	"github.com/nextlevelbuilder/radar/internal/store/pg"
	"github.com/nextlevelbuilder/radar/internal/upgrade"
)

func doctorCmd() *cobra.Command {
	var showConfig bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd.Context(), showConfig)
		},
	}
	cmd.Flags().BoolVar(&showConfig, "show-config", false, "print the effective config with secrets masked")
	return cmd
}

func runDoctor(ctx context.Context, showConfig bool) {
	fmt.Println("radar doctor")
	fmt.Printf("  Version:  %s (schema v%d)\n", Version, upgrade.RequiredSchemaVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Config invalid: %s\n", err)
	}
	if showConfig {
		data, _ := json.MarshalIndent(cfg.MaskedCopy(), "  ", "  ")
		fmt.Printf("  %s\n", data)
	}

	fmt.Println()
	fmt.Println("  Provider:")
	pc, ok := cfg.Providers.Get(cfg.Agent.Provider)
	switch {
	case !ok:
		fmt.Printf("    %-12s unknown provider %q\n", "Name:", cfg.Agent.Provider)
	case pc.APIKey == "":
		fmt.Printf("    %-12s %s (API key not set)\n", "Name:", cfg.Agent.Provider)
	default:
		fmt.Printf("    %-12s %s, model %s\n", "Name:", cfg.Agent.Provider, cfg.Agent.Model)
	}

	fmt.Println()
	fmt.Println("  Channel:")
	wa := cfg.Channels.WhatsApp
	status := "disabled"
	if wa.Enabled {
		status = "enabled (" + wa.Transport + ")"
	}
	fmt.Printf("    %-12s %s\n", "WhatsApp:", status)

	fmt.Println()
	fmt.Println("  Database:")
	fmt.Printf("    %-12s %s\n", "Driver:", cfg.Database.Driver)
	if cfg.Database.Driver == "postgres" && cfg.Database.PostgresDSN != "" {
		checkPostgres(ctx, cfg.Database.PostgresDSN)
	}
	if path := config.ExpandHome(cfg.Database.CatalogFile); path != "" {
		if f, err := store.ReadCatalogFile(path); err != nil {
			fmt.Printf("    %-12s %s\n", "Catalog:", err)
		} else {
			fmt.Printf("    %-12s %d products, %d stores\n", "Catalog:", len(f.Products), len(f.Stores))
		}
	}

	fmt.Println()
	fmt.Println("  Sessions:")
	fmt.Printf("    %-12s %s\n", "TTL:", cfg.Sessions.StateTTL())
	if next, err := gronx.NextTick(cfg.Sessions.SweepCron, false); err != nil {
		fmt.Printf("    %-12s %q is invalid (%s)\n", "Sweep:", cfg.Sessions.SweepCron, err)
	} else {
		fmt.Printf("    %-12s %q, next at %s\n", "Sweep:", cfg.Sessions.SweepCron, next.Format(time.RFC3339))
	}

	fmt.Println()
	ws := cfg.WorkspacePath()
	fmt.Printf("  Workspace: %s", ws)
	if _, err := os.Stat(ws); err != nil {
		fmt.Println(" (NOT FOUND, seeded on first run)")
	} else {
		fmt.Println(" (OK)")
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkPostgres(ctx context.Context, dsn string) {
	db, err := pg.OpenDB(dsn)
	if err != nil {
		fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", err)
		return
	}
	defer db.Close()
	fmt.Printf("    %-12s connected\n", "Status:")

	s, err := upgrade.CheckSchema(ctx, db)
	switch {
	case err != nil:
		fmt.Printf("    %-12s CHECK FAILED (%s)\n", "Schema:", err)
	case s.Dirty:
		fmt.Printf("    %-12s v%d (DIRTY, run: radar migrate force %d)\n", "Schema:", s.CurrentVersion, s.CurrentVersion-1)
	case s.Compatible:
		fmt.Printf("    %-12s v%d (up to date)\n", "Schema:", s.CurrentVersion)
	case s.CurrentVersion > s.RequiredVersion:
		fmt.Printf("    %-12s v%d (binary too old, requires v%d)\n", "Schema:", s.CurrentVersion, s.RequiredVersion)
	default:
		fmt.Printf("    %-12s v%d (upgrade needed, run: radar migrate up)\n", "Schema:", s.CurrentVersion)
	}

	if pending, err := upgrade.PendingHooks(ctx, db); err == nil {
		fmt.Printf("    %-12s %d pending\n", "Data hooks:", len(pending))
	}
}
