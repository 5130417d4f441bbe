package pg

import (
	"fmt"

	"github.com/nextlevelbuilder/radar/internal/store"
)

// NewPGStores creates all stores backed by Postgres.
func NewPGStores(cfg store.StoreConfig) (*store.Stores, error) {
	db, err := OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	messages := NewPGMessageStore(db)
	return &store.Stores{
		Pending: messages,
		History: messages,
		Catalog: NewPGCatalogStore(db),
		Close:   db.Close,
	}, nil
}
