package models

import "time"

// Confidence grades how much signal backed a forecast.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ConsumptionForecast is the derived depletion estimate for one item. It is
// recomputed from the consumption log on every run, never stored.
type ConsumptionForecast struct {
	ItemID string `json:"item_id"`

	// Rate is the smoothed consumption rate in units per day. Zero means the
	// depletion date is undefined.
	Rate          float64    `json:"rate"`
	DepletionDate *time.Time `json:"depletion_date,omitempty"`
	Confidence    Confidence `json:"confidence"`
	Samples       int        `json:"samples"`
}

// TriggerReason tells why an item entered the restock set.
type TriggerReason string

const (
	ReasonLowStock  TriggerReason = "low_stock"
	ReasonDepleting TriggerReason = "depleting"
	ReasonExpiring  TriggerReason = "expiring"
)

// RestockTrigger joins an item with the forecast that flagged it.
type RestockTrigger struct {
	Item     InventoryItem       `json:"item"`
	Forecast ConsumptionForecast `json:"forecast"`
	Reason   TriggerReason       `json:"reason"`
}
