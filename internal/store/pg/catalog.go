package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/nextlevelbuilder/radar/internal/store"
)

// PGCatalogStore implements store.CatalogStore over the products and stores tables.
type PGCatalogStore struct {
	db *sql.DB
}

func NewPGCatalogStore(db *sql.DB) *PGCatalogStore {
	return &PGCatalogStore{db: db}
}

// foldSQL lower-cases a column and strips the Portuguese diacritics, the SQL
// counterpart of store.Fold.
const foldSQL = "translate(lower(%s), 'áàâãäéèêëíìîïóòôõöúùûüçñ', 'aaaaaeeeeiiiiooooouuuucn')"

// catalogQuery pre-filters on any term with the same word rules as
// store.MatchAllKeywords; the all-terms rule is applied in Go.
var catalogQuery = fmt.Sprintf(
	`SELECT p.id, p.name, p.keywords, p.category, p.unit, p.price, s.name, s.phone
	 FROM products p JOIN stores s ON s.id = p.store_id
	 WHERE EXISTS (
	     SELECT 1
	     FROM unnest(p.keywords || regexp_split_to_array(p.name, '\s+')) AS w(word),
	          unnest($1::text[]) AS t(term)
	     WHERE %[1]s LIKE '%%' || t.term || '%%'
	        OR (char_length(w.word) >= $2 AND t.term LIKE '%%' || %[1]s || '%%'))
	   AND ($3 = '' OR p.category ILIKE $3)
	   AND ($4 <= 0 OR p.price <= $4)
	 ORDER BY p.price ASC, s.name ASC`,
	fmt.Sprintf(foldSQL, "w.word"))

// QueryCatalog returns products matching every term, cheapest first.
func (s *PGCatalogStore) QueryCatalog(ctx context.Context, q store.CatalogQuery) ([]store.Product, error) {
	terms := store.NormalizeTerms(q.Terms)
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, catalogQuery,
		pq.Array(terms), store.MinReverseMatch, q.Category, q.MaxPrice,
	)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var products []store.Product
	for rows.Next() {
		var p store.Product
		var keywords []string
		if err := rows.Scan(&p.ID, &p.Name, pq.Array(&keywords), &p.Category, &p.Unit, &p.Price, &p.Store, &p.StorePhone); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Keywords = keywords
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.FilterProducts(products, store.CatalogQuery{Terms: terms, Limit: q.Limit}), nil
}

func (s *PGCatalogStore) StoreContact(ctx context.Context, storeName string) (string, error) {
	var phone string
	err := s.db.QueryRowContext(ctx,
		`SELECT phone FROM stores WHERE name ILIKE $1 LIMIT 1`, storeName,
	).Scan(&phone)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && phone == "") {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query store contact: %w", err)
	}
	return phone, nil
}
