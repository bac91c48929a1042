package models

import "time"

// Product is the shape adapters return from a search.
type Product struct {
	ProductID     string   `json:"product_id"`
	Name          string   `json:"name"`
	Brand         string   `json:"brand,omitempty"`
	Category      string   `json:"category,omitempty"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	UnitPrice     float64  `json:"unit_price"`
	UnitSize      string   `json:"unit_size,omitempty"`
	InStock       bool     `json:"in_stock"`
	StockQuantity int      `json:"stock_quantity,omitempty"`
	DeliveryFee   float64  `json:"delivery_fee"`
	URL           string   `json:"url"`
	ImageURL      string   `json:"image_url,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	ReviewCount   int      `json:"review_count,omitempty"`
	SoldCount     int      `json:"sold_count,omitempty"`
	PromoInfo     string   `json:"promo_info,omitempty"`
}

// ProductDetails extends Product with the long-form fields only a detail
// lookup returns.
type ProductDetails struct {
	Product
	Description string            `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// PriceQuote is a point-in-time price reading for a single product, as
// reported by an adapter. The poller turns quotes into observations.
type PriceQuote struct {
	ProductID     string    `json:"product_id"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"original_price,omitempty"`
	UnitPrice     float64   `json:"unit_price"`
	InStock       bool      `json:"in_stock"`
	DeliveryFee   float64   `json:"delivery_fee"`
	URL           string    `json:"url"`
	CheckedAt     time.Time `json:"checked_at"`
}

// PriceObservation is one immutable ledger entry for an (item, platform)
// pair. Observations are never mutated or deleted once appended.
type PriceObservation struct {
	ItemID            string    `bson:"item_id" json:"item_id"`
	Platform          string    `bson:"platform" json:"platform"`
	PlatformProductID string    `bson:"platform_product_id" json:"platform_product_id"`
	Price             float64   `bson:"price" json:"price"`
	OriginalPrice     *float64  `bson:"original_price,omitempty" json:"original_price,omitempty"`
	UnitPrice         float64   `bson:"unit_price" json:"unit_price"`
	InStock           bool      `bson:"in_stock" json:"in_stock"`
	DeliveryFee       float64   `bson:"delivery_fee" json:"delivery_fee"`
	CapturedAt        time.Time `bson:"captured_at" json:"captured_at"`
	SourceURL         string    `bson:"source_url" json:"source_url"`
}

// DiscountPercent returns the discount relative to the original price, or 0
// when no original price is known or no discount applies.
func (o PriceObservation) DiscountPercent() float64 {
	if o.OriginalPrice == nil || *o.OriginalPrice <= 0 || o.Price >= *o.OriginalPrice {
		return 0
	}
	return (*o.OriginalPrice - o.Price) / *o.OriginalPrice * 100
}
