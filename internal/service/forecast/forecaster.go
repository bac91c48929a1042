// Package forecast estimates when tracked items run out from the externally
// recorded consumption log and emits restock triggers.
package forecast

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pantrywatch/pantrywatch/internal/domain/models"
)

// Config holds trigger windows and the smoothing factor.
type Config struct {
	// RestockLead is how far ahead of the depletion date restocking triggers.
	RestockLead time.Duration
	// ExpiryWarning is the window in which expiring items join the restock set.
	ExpiryWarning time.Duration
	// Alpha is the EWMA smoothing factor over daily consumption totals.
	Alpha float64
}

// Forecaster computes consumption forecasts and restock triggers. Forecasts
// are recomputed from the log on every run, never persisted.
type Forecaster struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New wires a forecaster.
func New(cfg Config, logger *zap.Logger) *Forecaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RestockLead <= 0 {
		cfg.RestockLead = 3 * 24 * time.Hour
	}
	if cfg.ExpiryWarning <= 0 {
		cfg.ExpiryWarning = 3 * 24 * time.Hour
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = 0.3
	}
	return &Forecaster{cfg: cfg, logger: logger, now: time.Now}
}

// WithClock overrides the forecaster clock. Intended for tests.
func (f *Forecaster) WithClock(now func() time.Time) *Forecaster {
	f.now = now
	return f
}

// Forecast estimates the depletion date for one item from its consumption
// log. Fewer than two entries is the insufficient-data state: the item's
// static rate is used and confidence is low. A zero rate leaves the
// depletion date undefined.
func (f *Forecaster) Forecast(item models.InventoryItem, log []models.ConsumptionLogEntry) models.ConsumptionForecast {
	fc := models.ConsumptionForecast{
		ItemID:     item.ID,
		Samples:    len(log),
		Confidence: models.ConfidenceLow,
	}

	var lastKnown time.Time
	if len(log) < 2 {
		fc.Rate = item.AvgConsumptionRate
		lastKnown = f.now()
	} else {
		log = append([]models.ConsumptionLogEntry(nil), log...)
		sort.Slice(log, func(i, j int) bool { return log[i].LoggedAt.Before(log[j].LoggedAt) })
		daily := dailyTotals(log)
		fc.Rate = ewma(daily, f.cfg.Alpha)
		fc.Confidence = confidence(daily, len(log))
		lastKnown = log[len(log)-1].LoggedAt
	}

	if fc.Rate > 0 {
		days := item.CurrentQuantity / fc.Rate
		depletion := lastKnown.Add(time.Duration(days * float64(24*time.Hour)))
		fc.DepletionDate = &depletion
	}

	return fc
}

// Triggers evaluates every item and returns the restock set together with
// the restock_needed events to route. The quantity threshold is a hard
// override: current_quantity at or below min_quantity always triggers, with
// or without a usable rate.
func (f *Forecaster) Triggers(items []models.InventoryItem, logs map[string][]models.ConsumptionLogEntry) ([]models.RestockTrigger, []models.Event) {
	now := f.now()
	var triggers []models.RestockTrigger
	var events []models.Event

	for _, item := range items {
		if !item.Active {
			continue
		}

		fc := f.Forecast(item, logs[item.ID])

		reason, ok := f.evaluate(item, fc, now)
		if !ok {
			continue
		}

		triggers = append(triggers, models.RestockTrigger{Item: item, Forecast: fc, Reason: reason})
		events = append(events, models.Event{
			Type:          models.EventRestockNeeded,
			ItemID:        item.ID,
			ItemName:      item.Name,
			Quantity:      item.CurrentQuantity,
			DepletionDate: fc.DepletionDate,
			OccurredAt:    now,
		})

		f.logger.Info("restock trigger",
			zap.String("item_id", item.ID),
			zap.String("reason", string(reason)),
			zap.Float64("quantity", item.CurrentQuantity),
			zap.Float64("rate", fc.Rate))
	}

	sort.Slice(triggers, func(i, j int) bool { return triggers[i].Item.ID < triggers[j].Item.ID })
	return triggers, events
}

func (f *Forecaster) evaluate(item models.InventoryItem, fc models.ConsumptionForecast, now time.Time) (models.TriggerReason, bool) {
	if item.IsLowStock() {
		return models.ReasonLowStock, true
	}
	if fc.DepletionDate != nil && !fc.DepletionDate.After(now.Add(f.cfg.RestockLead)) {
		return models.ReasonDepleting, true
	}
	if item.ExpiresWithin(now, f.cfg.ExpiryWarning) {
		return models.ReasonExpiring, true
	}
	return "", false
}

// dailyTotals buckets log entries into per-day consumption totals, ordered
// oldest first. Days without entries do not produce zero buckets; the EWMA
// smooths over logged days only.
func dailyTotals(log []models.ConsumptionLogEntry) []float64 {
	totals := make(map[string]float64)
	var order []string
	for _, entry := range log {
		day := entry.LoggedAt.Format("2006-01-02")
		if _, seen := totals[day]; !seen {
			order = append(order, day)
		}
		totals[day] += entry.Quantity
	}
	sort.Strings(order)

	out := make([]float64, len(order))
	for i, day := range order {
		out[i] = totals[day]
	}
	return out
}

func ewma(daily []float64, alpha float64) float64 {
	if len(daily) == 0 {
		return 0
	}
	avg := daily[0]
	for _, v := range daily[1:] {
		avg = alpha*v + (1-alpha)*avg
	}
	return avg
}

// confidence grades the forecast from sample count and the coefficient of
// variation of daily totals.
func confidence(daily []float64, samples int) models.Confidence {
	if samples < 4 {
		return models.ConfidenceLow
	}

	mean := 0.0
	for _, v := range daily {
		mean += v
	}
	mean /= float64(len(daily))
	if mean == 0 {
		return models.ConfidenceLow
	}

	variance := 0.0
	for _, v := range daily {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(daily))
	cv := math.Sqrt(variance) / mean

	if samples >= 8 && cv < 0.5 {
		return models.ConfidenceHigh
	}
	return models.ConfidenceMedium
}
