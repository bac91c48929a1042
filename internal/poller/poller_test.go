package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pantrywatch/pantrywatch/internal/adapter"
	"github.com/pantrywatch/pantrywatch/internal/domain/models"
	"github.com/pantrywatch/pantrywatch/internal/history"
)

// fakeAdapter scripts per-product errors and counts calls.
type fakeAdapter struct {
	id string

	mu          sync.Mutex
	priceCalls  int
	searchCalls int

	priceErr  error
	searchErr error
	quote     models.PriceQuote
	products  []models.Product
}

func (f *fakeAdapter) PlatformID() string { return f.id }

func (f *fakeAdapter) GetPrice(ctx context.Context, productID string) (models.PriceQuote, error) {
	f.mu.Lock()
	f.priceCalls++
	f.mu.Unlock()
	if f.priceErr != nil {
		return models.PriceQuote{}, f.priceErr
	}
	quote := f.quote
	if quote.ProductID == "" {
		quote.ProductID = productID
	}
	return quote, nil
}

func (f *fakeAdapter) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.products, nil
}

func (f *fakeAdapter) GetDetails(ctx context.Context, productID string) (models.ProductDetails, error) {
	return models.ProductDetails{}, adapter.ErrNotFound
}

func (f *fakeAdapter) calls() (price, search int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.priceCalls, f.searchCalls
}

type staticSource struct {
	items []models.InventoryItem
}

func (s staticSource) Items(ctx context.Context) ([]models.InventoryItem, error) {
	return s.items, nil
}

func fastConfig() Config {
	return Config{
		MaxAttempts:      2,
		BaseBackoff:      time.Millisecond,
		RateLimitBackoff: time.Millisecond,
	}
}

func pinnedItem(id, platform, productID string) models.InventoryItem {
	return models.InventoryItem{
		ID:               id,
		Name:             id,
		Active:           true,
		PlatformProducts: map[string]string{platform: productID},
	}
}

func newTestPoller(t *testing.T, source ItemSource, cfg Config, adapters ...adapter.PlatformAdapter) (*Poller, *history.MemoryStore) {
	t.Helper()
	registry := adapter.NewRegistry()
	for _, a := range adapters {
		if err := registry.Register(a); err != nil {
			t.Fatalf("register %s: %v", a.PlatformID(), err)
		}
	}
	store := history.NewMemoryStore(nil, nil)
	return New(registry, store, source, nil, cfg, nil), store
}

func TestRunCyclePinnedProductAppendsObservation(t *testing.T) {
	a := &fakeAdapter{
		id:    "freshmart",
		quote: models.PriceQuote{Price: 3.50, UnitPrice: 1.75, InStock: true, URL: "https://freshmart/p1"},
	}
	item := pinnedItem("milk-2l", "freshmart", "p1")
	p, store := newTestPoller(t, staticSource{items: []models.InventoryItem{item}}, fastConfig(), a)

	summary, err := p.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Units != 1 || summary.Appended != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	obs, ok := store.Latest("milk-2l", "freshmart")
	if !ok {
		t.Fatal("observation not committed")
	}
	if obs.PlatformProductID != "p1" || obs.UnitPrice != 1.75 {
		t.Fatalf("observation = %+v", obs)
	}
	if obs.CapturedAt.IsZero() {
		t.Fatal("captured_at must be filled when the quote has no timestamp")
	}
}

func TestRunCycleIsolatesPlatformFailures(t *testing.T) {
	healthy := &fakeAdapter{
		id:    "freshmart",
		quote: models.PriceQuote{Price: 3.50, UnitPrice: 1.75, InStock: true},
	}
	broken := &fakeAdapter{id: "quickshop", priceErr: adapter.ErrSourceUnavailable}

	item := models.InventoryItem{
		ID:     "milk-2l",
		Name:   "milk-2l",
		Active: true,
		PlatformProducts: map[string]string{
			"freshmart": "p1",
			"quickshop": "q1",
		},
	}
	p, store := newTestPoller(t, staticSource{items: []models.InventoryItem{item}}, fastConfig(), healthy, broken)

	summary, err := p.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Appended != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.FailuresByPlatform["quickshop"] != 1 {
		t.Fatalf("failures by platform = %v", summary.FailuresByPlatform)
	}

	// The healthy platform's observation survives the sibling failure.
	if _, ok := store.Latest("milk-2l", "freshmart"); !ok {
		t.Fatal("healthy platform observation missing")
	}
	if _, ok := store.Latest("milk-2l", "quickshop"); ok {
		t.Fatal("failed platform must not commit an observation")
	}
}

func TestPollUnitRetriesUpToMaxAttempts(t *testing.T) {
	a := &fakeAdapter{id: "freshmart", priceErr: adapter.ErrSourceUnavailable}
	item := pinnedItem("milk-2l", "freshmart", "p1")
	cfg := fastConfig()
	cfg.MaxAttempts = 3
	p, _ := newTestPoller(t, staticSource{items: []models.InventoryItem{item}}, cfg, a)

	summary, err := p.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if price, _ := a.calls(); price != 3 {
		t.Fatalf("price calls = %d, want 3", price)
	}
}

func TestPollUnitNotFoundDropsWithoutRetry(t *testing.T) {
	a := &fakeAdapter{id: "freshmart", priceErr: adapter.ErrNotFound}
	item := pinnedItem("milk-2l", "freshmart", "gone")
	p, _ := newTestPoller(t, staticSource{items: []models.InventoryItem{item}}, fastConfig(), a)

	summary, err := p.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Dropped != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if price, _ := a.calls(); price != 1 {
		t.Fatalf("price calls = %d, want 1 (no retry on not found)", price)
	}
}

func TestRunCycleSkipsInactiveItems(t *testing.T) {
	a := &fakeAdapter{id: "freshmart", quote: models.PriceQuote{UnitPrice: 1}}
	item := pinnedItem("milk-2l", "freshmart", "p1")
	item.Active = false
	p, _ := newTestPoller(t, staticSource{items: []models.InventoryItem{item}}, fastConfig(), a)

	summary, err := p.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Units != 0 {
		t.Fatalf("units = %d, want 0", summary.Units)
	}
}

func TestObserveSearchFallbackKeepsCheapestInStock(t *testing.T) {
	a := &fakeAdapter{
		id: "freshmart",
		products: []models.Product{
			{ProductID: "expensive", UnitPrice: 2.50, InStock: true},
			{ProductID: "cheap-oos", UnitPrice: 1.00, InStock: false},
			{ProductID: "cheap", UnitPrice: 1.40, InStock: true},
		},
	}
	item := models.InventoryItem{ID: "milk-2l", Name: "milk", Active: true}
	p, store := newTestPoller(t, staticSource{items: []models.InventoryItem{item}}, fastConfig(), a)

	summary, err := p.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Appended != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	obs, ok := store.Latest("milk-2l", "freshmart")
	if !ok {
		t.Fatal("observation not committed")
	}
	// In-stock listings beat a cheaper out-of-stock one.
	if obs.PlatformProductID != "cheap" {
		t.Fatalf("picked %q, want cheap", obs.PlatformProductID)
	}
}

func TestObserveSearchTriesBrandQueries(t *testing.T) {
	a := &fakeAdapter{id: "freshmart"}
	item := models.InventoryItem{
		ID:              "milk-2l",
		Name:            "milk",
		Active:          true,
		PreferredBrands: []string{"BrandA", "BrandB", "BrandC"},
	}
	p, _ := newTestPoller(t, staticSource{items: []models.InventoryItem{item}}, fastConfig(), a)

	summary, err := p.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	// Empty results for every query end in a dropped unit, after trying
	// the plain name plus the first two brands.
	if summary.Dropped != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, search := a.calls(); search != 3 {
		t.Fatalf("search calls = %d, want 3", search)
	}
}

func TestSearchAllIsolatesFailures(t *testing.T) {
	ok := &fakeAdapter{id: "freshmart", products: []models.Product{{ProductID: "p1"}}}
	bad := &fakeAdapter{id: "quickshop", searchErr: adapter.ErrSourceUnavailable}
	p, _ := newTestPoller(t, staticSource{}, fastConfig(), ok, bad)

	results := p.SearchAll(context.Background(), "milk", 5)
	if len(results) != 2 {
		t.Fatalf("got %d platform entries, want 2", len(results))
	}
	if len(results["freshmart"]) != 1 {
		t.Fatalf("freshmart results = %v", results["freshmart"])
	}
	if results["quickshop"] != nil {
		t.Fatalf("failed platform must map to nil, got %v", results["quickshop"])
	}
}

func TestSourceHealthStreaks(t *testing.T) {
	a := &fakeAdapter{id: "freshmart", priceErr: adapter.ErrSourceUnavailable}
	item := pinnedItem("milk-2l", "freshmart", "p1")
	p, _ := newTestPoller(t, staticSource{items: []models.InventoryItem{item}}, fastConfig(), a)

	for range 3 {
		if _, err := p.RunCycle(context.Background()); err != nil {
			t.Fatalf("run cycle: %v", err)
		}
	}

	health := p.SourceHealth()
	if len(health) != 1 {
		t.Fatalf("got %d statuses, want 1", len(health))
	}
	if health[0].ConsecutiveFailedCycles != 3 || !health[0].Failing {
		t.Fatalf("health = %+v, want 3 failed cycles and failing", health[0])
	}

	// One successful cycle resets the streak.
	a.mu.Lock()
	a.priceErr = nil
	a.quote = models.PriceQuote{UnitPrice: 1.75, InStock: true}
	a.mu.Unlock()

	if _, err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	health = p.SourceHealth()
	if health[0].ConsecutiveFailedCycles != 0 || health[0].Failing {
		t.Fatalf("health after recovery = %+v", health[0])
	}
}

func TestRunCycleCancelledContextCommitsNothing(t *testing.T) {
	a := &fakeAdapter{id: "freshmart", quote: models.PriceQuote{UnitPrice: 1.75}}
	item := pinnedItem("milk-2l", "freshmart", "p1")
	p, store := newTestPoller(t, staticSource{items: []models.InventoryItem{item}}, fastConfig(), a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.RunCycle(ctx)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if summary.Appended != 0 {
		t.Fatalf("summary = %+v, want nothing appended", summary)
	}
	if _, ok := store.Latest("milk-2l", "freshmart"); ok {
		t.Fatal("cancelled cycle must not commit observations")
	}
}
