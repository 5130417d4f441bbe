package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/radar/internal/store/pg"
	"github.com/nextlevelbuilder/radar/internal/upgrade"
)

// ErrUpgradeFailed is returned when upgrade cannot proceed.
var ErrUpgradeFailed = errors.New("upgrade cannot proceed")

func upgradeCmd() *cobra.Command {
	var dryRun bool
	var status bool

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade the database schema and run data hooks",
		Long:  "Applies pending SQL migrations and Go data hooks. Safe to run multiple times.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := resolveDSN()
			if err != nil {
				return err
			}
			if status {
				return runUpgradeStatus(cmd.Context(), dsn)
			}
			return runUpgrade(cmd.Context(), dsn, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without applying changes")
	cmd.Flags().BoolVar(&status, "status", false, "show current upgrade status")
	return cmd
}

func runUpgradeStatus(ctx context.Context, dsn string) error {
	db, err := pg.OpenDB(dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	s, err := upgrade.CheckSchema(ctx, db)
	if err != nil {
		return fmt.Errorf("check schema: %w", err)
	}

	fmt.Printf("  App version:     %s\n", Version)
	fmt.Printf("  Schema current:  %d\n", s.CurrentVersion)
	fmt.Printf("  Schema required: %d\n", s.RequiredVersion)

	switch {
	case s.Dirty:
		fmt.Println("  Status:          DIRTY (failed migration)")
		fmt.Println()
		fmt.Print(upgrade.FormatError(s))
		return nil
	case s.Compatible:
		fmt.Println("  Status:          UP TO DATE")
	case s.CurrentVersion > s.RequiredVersion:
		fmt.Println("  Status:          BINARY TOO OLD")
	default:
		fmt.Printf("  Status:          UPGRADE NEEDED (%d -> %d)\n", s.CurrentVersion, s.RequiredVersion)
	}

	if pending, err := upgrade.PendingHooks(ctx, db); err != nil {
		slog.Debug("could not check pending data hooks", "error", err)
	} else if len(pending) > 0 {
		fmt.Printf("\n  Pending data hooks: %d\n", len(pending))
		for _, name := range pending {
			fmt.Printf("    - %s\n", name)
		}
	}
	return nil
}

func runUpgrade(ctx context.Context, dsn string, dryRun bool) error {
	db, err := pg.OpenDB(dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	s, err := upgrade.CheckSchema(ctx, db)
	if err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	if s.Dirty || s.CurrentVersion > s.RequiredVersion {
		fmt.Print(upgrade.FormatError(s))
		return ErrUpgradeFailed
	}

	if dryRun {
		if s.NeedsMigration {
			fmt.Printf("  Would apply SQL migrations: v%d -> v%d\n", s.CurrentVersion, s.RequiredVersion)
		} else {
			fmt.Println("  SQL schema is up to date.")
		}
		pending, err := upgrade.PendingHooks(ctx, db)
		if err != nil {
			return fmt.Errorf("pending hooks: %w", err)
		}
		fmt.Printf("  Would run %d data hook(s)\n", len(pending))
		return nil
	}

	version, err := applyMigrations(dsn, s)
	if err != nil {
		return err
	}
	count, err := upgrade.RunPendingHooks(ctx, db, version)
	if err != nil {
		return fmt.Errorf("data hooks: %w", err)
	}
	fmt.Printf("  Schema v%d, %d data hook(s) applied.\n", version, count)
	return nil
}

// applyMigrations runs the SQL migrations when s needs them and returns the
// resulting schema version.
func applyMigrations(dsn string, s *upgrade.SchemaStatus) (uint, error) {
	if !s.NeedsMigration {
		return s.CurrentVersion, nil
	}
	m, err := newMigrator(dsn)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	v, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("migration version: %w", err)
	}
	slog.Info("SQL migrations applied", "from", s.CurrentVersion, "to", v)
	return v, nil
}

// checkSchemaOrAutoUpgrade gates gateway startup on schema compatibility.
// With RADAR_AUTO_UPGRADE=true an outdated schema is upgraded inline.
func checkSchemaOrAutoUpgrade(ctx context.Context, dsn string) error {
	db, err := pg.OpenDB(dsn)
	if err != nil {
		return fmt.Errorf("schema check: %w", err)
	}
	defer db.Close()

	s, err := upgrade.CheckSchema(ctx, db)
	if err != nil {
		return fmt.Errorf("schema check: %w", err)
	}
	if s.Compatible {
		slog.Info("schema check passed", "current", s.CurrentVersion, "required", s.RequiredVersion)
		return nil
	}
	if s.Dirty || s.CurrentVersion > s.RequiredVersion || os.Getenv("RADAR_AUTO_UPGRADE") != "true" {
		return fmt.Errorf("%w\n%s", s.Err(), upgrade.FormatError(s))
	}

	slog.Info("auto-upgrade: applying migrations", "from", s.CurrentVersion, "to", s.RequiredVersion)
	version, err := applyMigrations(dsn, s)
	if err != nil {
		return fmt.Errorf("auto-upgrade: %w", err)
	}
	count, err := upgrade.RunPendingHooks(ctx, db, version)
	if err != nil {
		return fmt.Errorf("auto-upgrade: data hooks: %w", err)
	}
	slog.Info("auto-upgrade complete", "version", version, "hooks", count)
	return nil
}
