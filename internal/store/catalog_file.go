package store

import (
	"fmt"
	"os"
	"strings"

	"github.com/titanous/json5"
)

// CatalogFile is the import format for seeding sqlite and in-memory catalogs.
type CatalogFile struct {
	Stores   []StoreContact `json:"stores"`
	Products []Product      `json:"products"`
}

// StoreContact is a store's name and notification phone.
type StoreContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ReadCatalogFile parses a JSON5 catalog. Store phones from the stores list
// are copied onto products that do not carry one.
func ReadCatalogFile(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f CatalogFile
	if err := json5.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	phones := f.Contacts()
	for i, p := range f.Products {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Store) == "" {
			return nil, fmt.Errorf("catalog %s: product %d needs name and store", path, i)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("catalog %s: product %q has negative price", path, p.Name)
		}
		if p.StorePhone == "" {
			f.Products[i].StorePhone = phones[strings.ToLower(p.Store)]
		}
	}
	return &f, nil
}

// Contacts returns the store phones keyed by lower-cased store name.
func (f *CatalogFile) Contacts() map[string]string {
	m := make(map[string]string, len(f.Stores))
	for _, s := range f.Stores {
		m[strings.ToLower(s.Name)] = s.Phone
	}
	return m
}
