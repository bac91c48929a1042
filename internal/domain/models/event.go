package models

import "time"

// EventType enumerates the discrete domain events the engine produces.
type EventType string

const (
	EventPriceDrop     EventType = "price_drop"
	EventBackInStock   EventType = "back_in_stock"
	EventOutOfStock    EventType = "out_of_stock"
	EventRestockNeeded EventType = "restock_needed"
)

// Event is an ephemeral domain event. Events are produced by the comparison
// engine and the forecaster and consumed once per cycle by the notification
// router; consumers must tolerate redelivery.
type Event struct {
	Type     EventType `json:"type"`
	ItemID   string    `json:"item_id"`
	ItemName string    `json:"item_name"`
	Platform string    `json:"platform,omitempty"`

	// Price-change magnitude, set for price_drop.
	OldPrice      float64 `json:"old_price,omitempty"`
	NewPrice      float64 `json:"new_price,omitempty"`
	ChangePercent float64 `json:"change_percent,omitempty"`

	// Restock context, set for restock_needed.
	Quantity      float64    `json:"quantity,omitempty"`
	DepletionDate *time.Time `json:"depletion_date,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}
