// Package poller drives adapter calls across all tracked (item, platform)
// pairs. Each pair is an independent unit of work; one source failing,
// timing out or throttling never aborts sibling polls.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pantrywatch/pantrywatch/internal/adapter"
	"github.com/pantrywatch/pantrywatch/internal/domain/models"
	"github.com/pantrywatch/pantrywatch/internal/history"
	"github.com/pantrywatch/pantrywatch/internal/metrics"
)

// ItemSource supplies the inventory snapshot a cycle polls for.
type ItemSource interface {
	Items(ctx context.Context) ([]models.InventoryItem, error)
}

// Config bounds the fan-out and the retry policy.
type Config struct {
	PerPlatformConcurrency int
	MaxConcurrency         int
	MaxAttempts            int
	BaseBackoff            time.Duration
	RateLimitBackoff       time.Duration
	SearchLimit            int
}

func (c Config) withDefaults() Config {
	if c.PerPlatformConcurrency <= 0 {
		c.PerPlatformConcurrency = 2
	}
	if c.MaxConcurrency < c.PerPlatformConcurrency {
		c.MaxConcurrency = c.PerPlatformConcurrency * 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	if c.RateLimitBackoff <= 0 {
		c.RateLimitBackoff = 5 * time.Second
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 5
	}
	return c
}

// CycleSummary reports the outcome of one polling cycle. Partial results are
// normal: appended observations stay committed no matter how many units
// failed.
type CycleSummary struct {
	Started            time.Time      `json:"started"`
	Finished           time.Time      `json:"finished"`
	Units              int            `json:"units"`
	Appended           int            `json:"appended"`
	Failed             int            `json:"failed"`
	Dropped            int            `json:"dropped"`
	FailuresByPlatform map[string]int `json:"failures_by_platform,omitempty"`
}

// SourceStatus is the operator-facing health of one platform.
type SourceStatus struct {
	Platform                string `json:"platform"`
	ConsecutiveFailedCycles int    `json:"consecutive_failed_cycles"`
	Failing                 bool   `json:"failing"`
}

// failingThreshold is the number of fully-failed cycles after which a
// platform is reported as failing.
const failingThreshold = 3

// Poller executes polling cycles against the adapter registry and commits
// observations to the ledger.
type Poller struct {
	registry *adapter.Registry
	store    history.Store
	source   ItemSource
	metrics  *metrics.Registry
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	streaks map[string]int
}

// New wires a poller instance.
func New(registry *adapter.Registry, store history.Store, source ItemSource, m *metrics.Registry, cfg Config, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		registry: registry,
		store:    store,
		source:   source,
		metrics:  m,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
		streaks:  make(map[string]int),
	}
}

type unit struct {
	item     models.InventoryItem
	platform string
}

// RunCycle refreshes observations for every tracked (item, platform) pair.
// The cycle is done once every unit has either produced an observation or
// exhausted its retries.
func (p *Poller) RunCycle(ctx context.Context) (CycleSummary, error) {
	summary := CycleSummary{
		Started:            p.now(),
		FailuresByPlatform: make(map[string]int),
	}

	items, err := p.source.Items(ctx)
	if err != nil {
		return summary, fmt.Errorf("load inventory snapshot: %w", err)
	}

	platforms := p.registry.IDs()
	var units []unit
	for _, item := range items {
		if !item.Active {
			continue
		}
		for _, platform := range platforms {
			units = append(units, unit{item: item, platform: platform})
		}
	}
	summary.Units = len(units)

	global := make(chan struct{}, p.cfg.MaxConcurrency)
	perPlatform := make(map[string]chan struct{}, len(platforms))
	for _, platform := range platforms {
		perPlatform[platform] = make(chan struct{}, p.cfg.PerPlatformConcurrency)
	}

	var (
		wg        sync.WaitGroup
		resultsMu sync.Mutex
		successes = make(map[string]int)
		attempts  = make(map[string]int)
	)

	for _, u := range units {
		wg.Add(1)
		go func(u unit) {
			defer wg.Done()

			global <- struct{}{}
			defer func() { <-global }()
			sem := perPlatform[u.platform]
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := p.pollUnit(ctx, u)

			resultsMu.Lock()
			defer resultsMu.Unlock()
			attempts[u.platform]++
			switch outcome {
			case unitAppended:
				summary.Appended++
				successes[u.platform]++
			case unitDropped:
				summary.Dropped++
			default:
				summary.Failed++
				summary.FailuresByPlatform[u.platform]++
			}
		}(u)
	}
	wg.Wait()

	p.updateStreaks(attempts, successes)

	summary.Finished = p.now()
	if p.metrics != nil {
		p.metrics.CycleDurationSec.Observe(summary.Finished.Sub(summary.Started).Seconds())
	}
	p.logger.Info("polling cycle finished",
		zap.Int("units", summary.Units),
		zap.Int("appended", summary.Appended),
		zap.Int("failed", summary.Failed),
		zap.Int("dropped", summary.Dropped),
		zap.Duration("took", summary.Finished.Sub(summary.Started)))

	return summary, nil
}

type unitOutcome int

const (
	unitAppended unitOutcome = iota
	unitDropped
	unitFailed
)

// pollUnit polls one (item, platform) pair with bounded retries. NotFound
// drops the unit from the cycle without retrying; rate limiting backs off
// longer than a generic source failure.
func (p *Poller) pollUnit(ctx context.Context, u unit) unitOutcome {
	a, ok := p.registry.Get(u.platform)
	if !ok {
		return unitFailed
	}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		obs, err := p.observe(ctx, a, u.item)
		if err == nil {
			if err := p.store.Append(ctx, obs); err != nil {
				p.logger.Error("failed to append observation",
					zap.String("item_id", u.item.ID),
					zap.String("platform", u.platform),
					zap.Error(err))
				return unitFailed
			}
			if p.metrics != nil {
				p.metrics.ObservationsAppended.Inc()
			}
			return unitAppended
		}

		rateLimited := errors.Is(err, adapter.ErrRateLimited)
		if p.metrics != nil {
			p.metrics.PollFailures.WithLabelValues(u.platform, errKind(err)).Inc()
		}

		if errors.Is(err, adapter.ErrNotFound) {
			p.logger.Info("product no longer resolves, dropping from cycle",
				zap.String("item_id", u.item.ID),
				zap.String("platform", u.platform))
			return unitDropped
		}

		p.logger.Warn("poll attempt failed",
			zap.String("item_id", u.item.ID),
			zap.String("platform", u.platform),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == p.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}
		if !sleep(ctx, p.backoff(attempt, rateLimited)) {
			break
		}
	}

	return unitFailed
}

// observe produces a fresh observation for one pair. Pinned product ids go
// through GetPrice; unpinned platforms fall back to searching by item name
// and preferred brands and keep the cheapest listed offer.
func (p *Poller) observe(ctx context.Context, a adapter.PlatformAdapter, item models.InventoryItem) (models.PriceObservation, error) {
	platform := a.PlatformID()

	if productID, ok := item.PlatformProducts[platform]; ok {
		quote, err := a.GetPrice(ctx, productID)
		if err != nil {
			return models.PriceObservation{}, err
		}
		return p.observationFromQuote(item.ID, platform, quote), nil
	}

	for _, query := range searchQueries(item) {
		products, err := a.Search(ctx, query, p.cfg.SearchLimit)
		if err != nil {
			return models.PriceObservation{}, err
		}
		if best, ok := cheapest(products); ok {
			return p.observationFromProduct(item.ID, platform, best), nil
		}
	}

	return models.PriceObservation{}, fmt.Errorf("no listing for item %s on %s: %w", item.ID, platform, adapter.ErrNotFound)
}

func (p *Poller) observationFromQuote(itemID, platform string, q models.PriceQuote) models.PriceObservation {
	capturedAt := q.CheckedAt
	if capturedAt.IsZero() {
		capturedAt = p.now()
	}
	return models.PriceObservation{
		ItemID:            itemID,
		Platform:          platform,
		PlatformProductID: q.ProductID,
		Price:             q.Price,
		OriginalPrice:     q.OriginalPrice,
		UnitPrice:         q.UnitPrice,
		InStock:           q.InStock,
		DeliveryFee:       q.DeliveryFee,
		CapturedAt:        capturedAt,
		SourceURL:         q.URL,
	}
}

func (p *Poller) observationFromProduct(itemID, platform string, product models.Product) models.PriceObservation {
	return models.PriceObservation{
		ItemID:            itemID,
		Platform:          platform,
		PlatformProductID: product.ProductID,
		Price:             product.Price,
		OriginalPrice:     product.OriginalPrice,
		UnitPrice:         product.UnitPrice,
		InStock:           product.InStock,
		DeliveryFee:       product.DeliveryFee,
		CapturedAt:        p.now(),
		SourceURL:         product.URL,
	}
}

// SearchAll runs an ad-hoc search across every registered platform,
// isolating per-platform failures. Failed platforms map to a nil slice.
func (p *Poller) SearchAll(ctx context.Context, query string, limit int) map[string][]models.Product {
	if limit <= 0 {
		limit = p.cfg.SearchLimit
	}

	results := make(map[string][]models.Product)
	for _, a := range p.registry.All() {
		products, err := a.Search(ctx, query, limit)
		if err != nil {
			p.logger.Warn("ad-hoc search failed",
				zap.String("platform", a.PlatformID()),
				zap.String("query", query),
				zap.Error(err))
			results[a.PlatformID()] = nil
			continue
		}
		results[a.PlatformID()] = products
	}
	return results
}

// SourceHealth reports per-platform consecutive fully-failed cycles.
func (p *Poller) SourceHealth() []SourceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]SourceStatus, 0, len(p.streaks))
	for _, platform := range p.registry.IDs() {
		streak := p.streaks[platform]
		out = append(out, SourceStatus{
			Platform:                platform,
			ConsecutiveFailedCycles: streak,
			Failing:                 streak >= failingThreshold,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}

func (p *Poller) updateStreaks(attempts, successes map[string]int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for platform, tried := range attempts {
		if tried == 0 {
			continue
		}
		if successes[platform] > 0 {
			p.streaks[platform] = 0
		} else {
			p.streaks[platform]++
		}
		if p.metrics != nil {
			p.metrics.ConsecutiveFailures.WithLabelValues(platform).Set(float64(p.streaks[platform]))
		}
	}
}

// backoff returns the delay before the next attempt, doubling per attempt
// and capped at one minute.
func (p *Poller) backoff(attempt int, rateLimited bool) time.Duration {
	base := p.cfg.BaseBackoff
	if rateLimited {
		base = p.cfg.RateLimitBackoff
	}
	delay := base << (attempt - 1)
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func searchQueries(item models.InventoryItem) []string {
	queries := []string{item.Name}
	for i, brand := range item.PreferredBrands {
		if i == 2 {
			break
		}
		queries = append(queries, brand+" "+item.Name)
	}
	return queries
}

// cheapest picks the representative offer from a search result page: the
// lowest unit price among in-stock products, falling back to out-of-stock
// listings so stockouts are still observed.
func cheapest(products []models.Product) (models.Product, bool) {
	if len(products) == 0 {
		return models.Product{}, false
	}

	best := -1
	for i, candidate := range products {
		if best == -1 {
			best = i
			continue
		}
		current := products[best]
		if candidate.InStock != current.InStock {
			if candidate.InStock {
				best = i
			}
			continue
		}
		if effectiveUnitPrice(candidate) < effectiveUnitPrice(current) {
			best = i
		}
	}
	return products[best], true
}

func effectiveUnitPrice(p models.Product) float64 {
	if p.UnitPrice > 0 {
		return p.UnitPrice
	}
	return p.Price
}

func errKind(err error) string {
	switch {
	case errors.Is(err, adapter.ErrNotFound):
		return "not_found"
	case errors.Is(err, adapter.ErrRateLimited):
		return "rate_limited"
	default:
		return "unavailable"
	}
}
