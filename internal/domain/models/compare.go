package models

import "time"

// RankedOffer is one platform's freshest offer for an item, as ranked by the
// comparison engine.
type RankedOffer struct {
	Platform        string    `json:"platform"`
	ProductID       string    `json:"product_id"`
	Price           float64   `json:"price"`
	UnitPrice       float64   `json:"unit_price"`
	InStock         bool      `json:"in_stock"`
	DeliveryFee     float64   `json:"delivery_fee"`
	DiscountPercent float64   `json:"discount_percent,omitempty"`
	CapturedAt      time.Time `json:"captured_at"`
	SourceURL       string    `json:"source_url"`
}

// ComparisonResult is the derived best-price view for one item. It is
// computed on demand from the latest observation per platform and never
// persisted on its own.
type ComparisonResult struct {
	ItemID        string        `json:"item_id"`
	BestPlatform  string        `json:"best_platform,omitempty"`
	BestUnitPrice float64       `json:"best_unit_price,omitempty"`
	Offers        []RankedOffer `json:"offers"`
	Events        []Event       `json:"events,omitempty"`
}

// Best returns the top-ranked offer, if any platform qualified.
func (r ComparisonResult) Best() (RankedOffer, bool) {
	if len(r.Offers) == 0 {
		return RankedOffer{}, false
	}
	return r.Offers[0], true
}
