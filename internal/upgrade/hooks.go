package upgrade

import (
	"context"
	"database/sql"
)

// RequiredSchemaVersion is the highest migration in migrations/.
const RequiredSchemaVersion uint = 1

func init() {
	RegisterDataHook(1, "001_normalize_store_phones", normalizeStorePhones)
}

// normalizeStorePhones strips formatting from store phone numbers so
// purchase notices can address them directly.
func normalizeStorePhones(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx,
		`UPDATE stores SET phone = regexp_replace(phone, '[^0-9]', '', 'g') WHERE phone ~ '[^0-9]'`)
	return err
}
