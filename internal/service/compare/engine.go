// Package compare derives the current best price per item and the discrete
// price/stock events from the observation ledger.
package compare

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pantrywatch/pantrywatch/internal/domain/models"
	"github.com/pantrywatch/pantrywatch/internal/history"
)

// Config holds the comparison thresholds.
type Config struct {
	// Staleness is the maximum observation age eligible for ranking.
	Staleness time.Duration
	// DropThresholdPct is the relative unit-price decrease, in percent,
	// required to emit a price_drop event.
	DropThresholdPct float64
}

// Engine computes comparison results on demand from the ledger.
type Engine struct {
	store  history.Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine wires a comparison engine.
func NewEngine(store history.Store, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = 24 * time.Hour
	}
	if cfg.DropThresholdPct <= 0 {
		cfg.DropThresholdPct = 5
	}
	return &Engine{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// WithClock overrides the engine clock. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Compare ranks the freshest offer per platform for one item. Platforms
// whose latest observation is older than the staleness threshold are
// excluded: stale data must not win a comparison.
func (e *Engine) Compare(item models.InventoryItem, platforms []string) models.ComparisonResult {
	result := models.ComparisonResult{ItemID: item.ID}
	cutoff := e.now().Add(-e.cfg.Staleness)

	for _, platform := range platforms {
		latest, ok := e.store.Latest(item.ID, platform)
		if !ok {
			continue
		}
		if latest.CapturedAt.Before(cutoff) {
			e.logger.Debug("excluding stale observation",
				zap.String("item_id", item.ID),
				zap.String("platform", platform),
				zap.Time("captured_at", latest.CapturedAt))
			continue
		}
		result.Offers = append(result.Offers, models.RankedOffer{
			Platform:        platform,
			ProductID:       latest.PlatformProductID,
			Price:           latest.Price,
			UnitPrice:       latest.UnitPrice,
			InStock:         latest.InStock,
			DeliveryFee:     latest.DeliveryFee,
			DiscountPercent: latest.DiscountPercent(),
			CapturedAt:      latest.CapturedAt,
			SourceURL:       latest.SourceURL,
		})
	}

	rankOffers(result.Offers)

	if best, ok := result.Best(); ok {
		result.BestPlatform = best.Platform
		result.BestUnitPrice = best.UnitPrice
	}
	result.Events = e.DetectEvents(item, platforms)

	return result
}

// rankOffers sorts ascending by unit price with deterministic tie-breaks:
// in_stock desc, delivery fee asc, platform id asc.
func rankOffers(offers []models.RankedOffer) {
	sort.SliceStable(offers, func(i, j int) bool {
		a, b := offers[i], offers[j]
		if a.UnitPrice != b.UnitPrice {
			return a.UnitPrice < b.UnitPrice
		}
		if a.InStock != b.InStock {
			return a.InStock
		}
		if a.DeliveryFee != b.DeliveryFee {
			return a.DeliveryFee < b.DeliveryFee
		}
		return a.Platform < b.Platform
	})
}

// DetectEvents compares the latest observation against its predecessor for
// each platform and reports price-drop and stock-transition events. The
// first-ever observation for a pair never produces an event.
func (e *Engine) DetectEvents(item models.InventoryItem, platforms []string) []models.Event {
	var events []models.Event

	for _, platform := range platforms {
		latest, ok := e.store.Latest(item.ID, platform)
		if !ok {
			continue
		}
		prior, ok := e.priorObservation(item.ID, platform, latest)
		if !ok {
			continue
		}

		if prior.UnitPrice > 0 && latest.UnitPrice < prior.UnitPrice {
			change := (prior.UnitPrice - latest.UnitPrice) / prior.UnitPrice * 100
			if change > e.cfg.DropThresholdPct {
				events = append(events, models.Event{
					Type:          models.EventPriceDrop,
					ItemID:        item.ID,
					ItemName:      item.Name,
					Platform:      platform,
					OldPrice:      prior.UnitPrice,
					NewPrice:      latest.UnitPrice,
					ChangePercent: change,
					OccurredAt:    latest.CapturedAt,
				})
			}
		}

		switch {
		case !prior.InStock && latest.InStock:
			events = append(events, models.Event{
				Type:       models.EventBackInStock,
				ItemID:     item.ID,
				ItemName:   item.Name,
				Platform:   platform,
				NewPrice:   latest.UnitPrice,
				OccurredAt: latest.CapturedAt,
			})
		case prior.InStock && !latest.InStock:
			events = append(events, models.Event{
				Type:       models.EventOutOfStock,
				ItemID:     item.ID,
				ItemName:   item.Name,
				Platform:   platform,
				OldPrice:   prior.UnitPrice,
				OccurredAt: latest.CapturedAt,
			})
		}
	}

	return events
}

// priorObservation finds the observation immediately preceding latest in the
// pair's series.
func (e *Engine) priorObservation(itemID, platform string, latest models.PriceObservation) (models.PriceObservation, bool) {
	series := e.store.Series(itemID, platform, time.Time{})
	if len(series) < 2 {
		return models.PriceObservation{}, false
	}
	return series[len(series)-2], true
}
