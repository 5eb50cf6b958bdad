package models

import "time"

// CatalogProduct mirrors one product from the external billing provider.
type CatalogProduct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tier string `json:"tier"`
}

// CatalogPrice mirrors one recurring price from the external billing
// provider. Tier, Interval, and Audience together select exactly one price
// at checkout time.
type CatalogPrice struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Tier       string `json:"tier"`
	Interval   string `json:"interval"`
	Audience   string `json:"audience"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Active     bool   `json:"active"`
}

// CatalogPayload is the snapshot body stored as JSON.
type CatalogPayload struct {
	Products []CatalogProduct `json:"products"`
	Prices   []CatalogPrice   `json:"prices"`
}

// PricingSnapshot is the locally cached mirror of the provider catalog.
// A successful sync overwrites Payload wholesale; a failed sync leaves
// Payload untouched and only records the error.
type PricingSnapshot struct {
	ID          string
	Payload     CatalogPayload
	SyncedAt    *time.Time
	LastError   *string
	LastErrorAt *time.Time
	CreatedAt   time.Time
}
