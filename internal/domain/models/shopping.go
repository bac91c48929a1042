package models

import "time"

// ListStatus tracks a shopping list through its lifecycle. The engine only
// ever creates drafts; later transitions are driven by the order-management
// collaborator.
type ListStatus string

const (
	ListStatusDraft     ListStatus = "draft"
	ListStatusPending   ListStatus = "pending"
	ListStatusOrdered   ListStatus = "ordered"
	ListStatusCompleted ListStatus = "completed"
)

// ShoppingListItem is one line of a generated list with its chosen sourcing
// option and the ranked alternatives snapshot it was chosen from.
type ShoppingListItem struct {
	ItemID         string        `bson:"item_id" json:"item_id"`
	Name           string        `bson:"name" json:"name"`
	QuantityNeeded float64       `bson:"quantity_needed" json:"quantity_needed"`
	Unit           string        `bson:"unit,omitempty" json:"unit,omitempty"`
	Reason         TriggerReason `bson:"reason" json:"reason"`

	Platform  string  `bson:"platform,omitempty" json:"platform,omitempty"`
	ProductID string  `bson:"product_id,omitempty" json:"product_id,omitempty"`
	UnitPrice float64 `bson:"unit_price,omitempty" json:"unit_price,omitempty"`
	SourceURL string  `bson:"source_url,omitempty" json:"source_url,omitempty"`

	Alternatives []RankedOffer `bson:"alternatives,omitempty" json:"alternatives,omitempty"`

	// Unavailable marks items for which no platform had stock; they stay on
	// the list instead of being dropped.
	Unavailable bool `bson:"unavailable" json:"unavailable"`
}

// Total returns quantity times chosen unit price, zero for unavailable items.
func (i ShoppingListItem) Total() float64 {
	if i.Unavailable {
		return 0
	}
	return i.QuantityNeeded * i.UnitPrice
}

// ShoppingList aggregates generated list items for one run.
type ShoppingList struct {
	ID                 string             `bson:"list_id" json:"list_id"`
	Name               string             `bson:"name" json:"name"`
	Status             ListStatus         `bson:"status" json:"status"`
	Items              []ShoppingListItem `bson:"items" json:"items"`
	TotalEstimatedCost float64            `bson:"total_estimated_cost" json:"total_estimated_cost"`
	ActualCost         float64            `bson:"actual_cost,omitempty" json:"actual_cost,omitempty"`
	Notes              string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	CompletedAt        *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
