package models

import "time"

// InventoryItem is a snapshot of one tracked household item. Items are owned
// and edited by the external inventory service; the engine only reads them.
type InventoryItem struct {
	ID                 string     `bson:"item_id" json:"item_id"`
	Name               string     `bson:"name" json:"name"`
	Category           string     `bson:"category" json:"category"`
	CurrentQuantity    float64    `bson:"current_quantity" json:"current_quantity"`
	Unit               string     `bson:"unit" json:"unit"`
	MinQuantity        float64    `bson:"min_quantity" json:"min_quantity"`
	PreferredQuantity  float64    `bson:"preferred_quantity" json:"preferred_quantity"`
	ExpiryDate         *time.Time `bson:"expiry_date,omitempty" json:"expiry_date,omitempty"`
	LastPurchaseDate   *time.Time `bson:"last_purchase_date,omitempty" json:"last_purchase_date,omitempty"`
	AvgConsumptionRate float64    `bson:"avg_consumption_rate" json:"avg_consumption_rate"`
	PreferredBrands    []string   `bson:"preferred_brands" json:"preferred_brands"`
	SearchKeywords     []string   `bson:"search_keywords" json:"search_keywords"`

	// PlatformProducts pins a known product id per platform. Pinned pairs are
	// polled with GetPrice; unpinned platforms fall back to search.
	PlatformProducts map[string]string `bson:"platform_products" json:"platform_products"`

	Active bool `bson:"active" json:"active"`
}

// IsLowStock reports whether the item sits at or below its minimum quantity.
func (i InventoryItem) IsLowStock() bool {
	return i.CurrentQuantity <= i.MinQuantity
}

// ExpiresWithin reports whether the item expires within d of now.
func (i InventoryItem) ExpiresWithin(now time.Time, d time.Duration) bool {
	return i.ExpiryDate != nil && !i.ExpiryDate.After(now.Add(d))
}

// ConsumptionLogEntry records one externally-logged quantity decrement.
type ConsumptionLogEntry struct {
	ItemID   string    `bson:"item_id" json:"item_id"`
	Quantity float64   `bson:"quantity" json:"quantity"`
	LoggedAt time.Time `bson:"logged_at" json:"logged_at"`
	Notes    string    `bson:"notes,omitempty" json:"notes,omitempty"`
}
