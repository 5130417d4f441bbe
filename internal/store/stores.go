package store

// Stores is the top-level container for the storage backends.
// A single backend usually implements all three interfaces.
type Stores struct {
	Pending PendingStore
	History HistoryStore
	Catalog CatalogStore

	// Close releases the underlying connection pool (nil for in-memory stores).
	Close func() error
}

// StoreConfig selects and configures a backend.
type StoreConfig struct {
	Driver      string // "postgres", "sqlite" or "memory"
	PostgresDSN string
	SQLitePath  string
}
