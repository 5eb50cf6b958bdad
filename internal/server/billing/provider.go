// Package billing reaches the external payment provider's catalog API.
// The synchronizer only needs read access to products and prices, so the
// surface is two cursor-paged listings behind an interface the tests stub.
package billing

import "context"

// Product is one catalog product as the provider reports it.
type Product struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

// Price is one catalog price. Only active recurring prices are fetched.
type Price struct {
	ID         string            `json:"id"`
	ProductID  string            `json:"product"`
	Active     bool              `json:"active"`
	UnitAmount int64             `json:"unit_amount"`
	Currency   string            `json:"currency"`
	Interval   string            `json:"-"`
	Metadata   map[string]string `json:"metadata"`
}

// ProductPage is one page of a cursor-paged product listing. Cursor is
// empty on the last page.
type ProductPage struct {
	Products []Product
	Cursor   string
}

// PricePage is one page of a cursor-paged price listing.
type PricePage struct {
	Prices []Price
	Cursor string
}

// Provider lists catalog objects page by page. Implementations must treat
// cursor=="" as the first page.
type Provider interface {
	ListProducts(ctx context.Context, cursor string, limit int) (*ProductPage, error)
	ListPrices(ctx context.Context, cursor string, limit int) (*PricePage, error)
}

// Metadata keys the provider catalog is tagged with.
const (
	MetaTag      = "tag"
	MetaTier     = "tier"
	MetaAudience = "audience"
)
