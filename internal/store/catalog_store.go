package store

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Product is one store's offer for a catalog item.
type Product struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Keywords   []string `json:"keywords,omitempty"`
	Category   string   `json:"category,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Price      float64  `json:"price"`
	Store      string   `json:"store"`
	StorePhone string   `json:"store_phone,omitempty"`
}

// CatalogQuery filters catalog lookups. Every term must match the product
// (see MatchAllKeywords); zero-value fields are ignored.
type CatalogQuery struct {
	Terms    []string
	Category string
	MaxPrice float64
	Limit    int
}

// CatalogStore is the read side of the product catalog.
type CatalogStore interface {
	// QueryCatalog returns matching products ordered by ascending price.
	QueryCatalog(ctx context.Context, q CatalogQuery) ([]Product, error)
	// StoreContact returns the phone number registered for a store.
	// Returns ErrNotFound when the store is unknown.
	StoreContact(ctx context.Context, storeName string) (string, error)
}

// MinReverseMatch is the shortest keyword or name word that may match by
// being contained in a longer query term ("tijolos" finds "tijolo"). Shorter
// words such as "de" or "rio" only match the other way around.
const MinReverseMatch = 4

// Fold lower-cases s and strips diacritics ("Água Média" -> "agua media").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// NormalizeTerms folds, trims, splits and de-duplicates search terms.
func NormalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		for _, f := range strings.FieldsFunc(Fold(t), func(r rune) bool {
			return unicode.IsSpace(r) || r == ',' || r == ';'
		}) {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// MatchAllKeywords reports whether every query term is found in the product.
// Terms and product words are compared accent-insensitively: a term matches
// a keyword or name word that contains it, or one of at least
// MinReverseMatch runes that it contains.
func MatchAllKeywords(p Product, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	candidates := make([]string, 0, len(p.Keywords)+4)
	for _, k := range p.Keywords {
		candidates = append(candidates, Fold(k))
	}
	candidates = append(candidates, strings.Fields(Fold(p.Name))...)

	for _, term := range terms {
		term = Fold(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		found := false
		for _, c := range candidates {
			if c == "" {
				continue
			}
			if strings.Contains(c, term) ||
				(utf8.RuneCountInString(c) >= MinReverseMatch && strings.Contains(term, c)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FilterProducts applies the non-term filters of q and the keyword match,
// keeping input order.
func FilterProducts(products []Product, q CatalogQuery) []Product {
	terms := NormalizeTerms(q.Terms)
	var out []Product
	for _, p := range products {
		if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
			continue
		}
		if q.MaxPrice > 0 && p.Price > q.MaxPrice {
			continue
		}
		if !MatchAllKeywords(p, terms) {
			continue
		}
		out = append(out, p)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}
