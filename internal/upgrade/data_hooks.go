package upgrade

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DataHookFunc rewrites catalog or contact rows once the schema it depends
// on is in place.
type DataHookFunc func(ctx context.Context, db *sql.DB) error

type dataHook struct {
	SchemaVersion uint
	Name          string
	Fn            DataHookFunc
}

// registry is filled from init functions and read in order.
var registry []dataHook

// RegisterDataHook queues fn to run once the database reaches schemaVersion.
// name is the key recorded in data_migrations and must not be reused.
func RegisterDataHook(schemaVersion uint, name string, fn DataHookFunc) {
	registry = append(registry, dataHook{SchemaVersion: schemaVersion, Name: name, Fn: fn})
}

const createDataMigrations = `CREATE TABLE IF NOT EXISTS data_migrations (
	name       VARCHAR(255) PRIMARY KEY,
	version    INT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// appliedHooks returns the set of hook names already recorded, creating the
// ledger table on first use.
func appliedHooks(ctx context.Context, db *sql.DB) (map[string]struct{}, error) {
	if _, err := db.ExecContext(ctx, createDataMigrations); err != nil {
		return nil, fmt.Errorf("create data_migrations: %w", err)
	}
	rows, err := db.QueryContext(ctx, "SELECT name FROM data_migrations")
	if err != nil {
		return nil, fmt.Errorf("read data_migrations: %w", err)
	}
	defer rows.Close()

	done := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("read data_migrations: %w", err)
		}
		done[name] = struct{}{}
	}
	return done, rows.Err()
}

// PendingHooks lists registered hooks with no ledger row, whatever their
// schema version.
func PendingHooks(ctx context.Context, db *sql.DB) ([]string, error) {
	done, err := appliedHooks(ctx, db)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, h := range registry {
		if _, ok := done[h.Name]; !ok {
			names = append(names, h.Name)
		}
	}
	return names, nil
}

// RunPendingHooks applies every unrecorded hook whose schema version is at
// most current and reports how many ran. It stops at the first failure;
// hooks applied before it stay recorded.
func RunPendingHooks(ctx context.Context, db *sql.DB, current uint) (int, error) {
	done, err := appliedHooks(ctx, db)
	if err != nil {
		return 0, err
	}
	ran := 0
	for _, h := range registry {
		if _, ok := done[h.Name]; ok || h.SchemaVersion > current {
			continue
		}
		if err := applyHook(ctx, db, h); err != nil {
			return ran, err
		}
		ran++
	}
	return ran, nil
}

func applyHook(ctx context.Context, db *sql.DB, h dataHook) error {
	slog.Info("upgrade.hook.start", "name", h.Name, "schema_version", h.SchemaVersion)
	start := time.Now()
	if err := h.Fn(ctx, db); err != nil {
		return fmt.Errorf("data hook %s: %w", h.Name, err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO data_migrations (name, version, applied_at) VALUES ($1, $2, NOW())",
		h.Name, h.SchemaVersion); err != nil {
		return fmt.Errorf("record data hook %s: %w", h.Name, err)
	}
	slog.Info("upgrade.hook.done", "name", h.Name, "took", time.Since(start))
	return nil
}
