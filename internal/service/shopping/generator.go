// Package shopping joins restock triggers with comparison output to build
// draft shopping lists.
package shopping

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pantrywatch/pantrywatch/internal/domain/models"
)

// minOrderUnit floors the quantity of every generated line. Sources may
// report their own minimum; 1 is the default.
const minOrderUnit = 1.0

// Comparer is the slice of the comparison engine the generator needs.
type Comparer interface {
	Compare(item models.InventoryItem, platforms []string) models.ComparisonResult
}

// ListRepository persists generated lists for the order-management
// collaborator.
type ListRepository interface {
	SaveShoppingList(ctx context.Context, list models.ShoppingList) error
}

// Generator builds shopping lists from restock triggers. Generation is
// deterministic: the same triggers against the same ledger snapshot always
// choose the same platforms.
type Generator struct {
	engine    Comparer
	platforms func() []string
	repo      ListRepository
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewGenerator wires a list generator. platforms supplies the registered
// platform ids in deterministic order.
func NewGenerator(engine Comparer, platforms func() []string, repo ListRepository, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		engine:    engine,
		platforms: platforms,
		repo:      repo,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithClock overrides the generator clock. Intended for tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithIDFunc overrides list id generation. Intended for tests.
func (g *Generator) WithIDFunc(newID func() string) *Generator {
	g.newID = newID
	return g
}

// Generate builds and persists one draft list from the trigger set. Items
// with no in-stock platform stay on the list flagged unavailable; the total
// excludes them.
func (g *Generator) Generate(ctx context.Context, triggers []models.RestockTrigger) (models.ShoppingList, error) {
	now := g.now()
	list := models.ShoppingList{
		ID:        g.newID(),
		Name:      fmt.Sprintf("Auto-generated %s", now.Format("2006-01-02")),
		Status:    models.ListStatusDraft,
		CreatedAt: now,
	}

	platforms := g.platforms()

	for _, trigger := range triggers {
		item := trigger.Item

		quantity := quantityNeeded(item)
		if quantity <= 0 {
			// Already at or above the preferred level; nothing to buy.
			continue
		}

		line := models.ShoppingListItem{
			ItemID:         item.ID,
			Name:           item.Name,
			QuantityNeeded: quantity,
			Unit:           item.Unit,
			Reason:         trigger.Reason,
		}

		result := g.engine.Compare(item, platforms)
		line.Alternatives = result.Offers

		if chosen, ok := firstInStock(result.Offers); ok {
			line.Platform = chosen.Platform
			line.ProductID = chosen.ProductID
			line.UnitPrice = chosen.UnitPrice
			line.SourceURL = chosen.SourceURL
			list.TotalEstimatedCost += line.Total()
		} else {
			line.Unavailable = true
			g.logger.Warn("no platform has stock for item",
				zap.String("item_id", item.ID),
				zap.Int("offers", len(result.Offers)))
		}

		list.Items = append(list.Items, line)
	}

	if g.repo != nil {
		if err := g.repo.SaveShoppingList(ctx, list); err != nil {
			return list, fmt.Errorf("persist shopping list %s: %w", list.ID, err)
		}
	}

	g.logger.Info("shopping list generated",
		zap.String("list_id", list.ID),
		zap.Int("items", len(list.Items)),
		zap.Float64("total", list.TotalEstimatedCost))

	return list, nil
}

// Summary groups a list's lines by chosen platform with subtotals.
// Unavailable lines group under "unassigned".
func Summary(list models.ShoppingList) map[string]float64 {
	out := make(map[string]float64)
	for _, line := range list.Items {
		platform := line.Platform
		if line.Unavailable || platform == "" {
			platform = "unassigned"
		}
		out[platform] += line.Total()
	}
	return out
}

// quantityNeeded is preferred minus current, never negative, ceiled to whole
// units and floored at the minimum order unit.
func quantityNeeded(item models.InventoryItem) float64 {
	needed := item.PreferredQuantity - item.CurrentQuantity
	if needed <= 0 {
		return 0
	}
	return math.Max(math.Ceil(needed), minOrderUnit)
}

// firstInStock walks the ranked offers and returns the best one with stock.
func firstInStock(offers []models.RankedOffer) (models.RankedOffer, bool) {
	for _, offer := range offers {
		if offer.InStock {
			return offer, true
		}
	}
	return models.RankedOffer{}, false
}
