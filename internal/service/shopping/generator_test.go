package shopping

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/pantrywatch/pantrywatch/internal/domain/models"
)

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// fakeComparer serves canned comparison results keyed by item id.
type fakeComparer struct {
	results map[string]models.ComparisonResult
}

func (f *fakeComparer) Compare(item models.InventoryItem, platforms []string) models.ComparisonResult {
	return f.results[item.ID]
}

type fakeListRepo struct {
	saved []models.ShoppingList
	err   error
}

func (f *fakeListRepo) SaveShoppingList(ctx context.Context, list models.ShoppingList) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, list)
	return nil
}

func newTestGenerator(comparer Comparer, repo ListRepository) *Generator {
	g := NewGenerator(comparer, func() []string { return []string{"freshmart", "quickshop"} }, repo, nil)
	return g.WithClock(func() time.Time { return fixedNow }).WithIDFunc(func() string { return "list-1" })
}

func offer(platform string, unitPrice float64, inStock bool) models.RankedOffer {
	return models.RankedOffer{
		Platform:  platform,
		ProductID: platform + "-p1",
		UnitPrice: unitPrice,
		InStock:   inStock,
	}
}

func trigger(id string, current, preferred float64) models.RestockTrigger {
	return models.RestockTrigger{
		Item: models.InventoryItem{
			ID:                id,
			Name:              id,
			CurrentQuantity:   current,
			PreferredQuantity: preferred,
			Active:            true,
		},
		Reason: models.ReasonLowStock,
	}
}

func TestGeneratePicksCheapestInStock(t *testing.T) {
	comparer := &fakeComparer{results: map[string]models.ComparisonResult{
		"milk-2l": {Offers: []models.RankedOffer{
			offer("quickshop", 1.65, false),
			offer("freshmart", 1.80, true),
		}},
	}}
	repo := &fakeListRepo{}
	g := newTestGenerator(comparer, repo)

	list, err := g.Generate(context.Background(), []models.RestockTrigger{trigger("milk-2l", 1, 3)})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(list.Items))
	}
	line := list.Items[0]
	// The cheapest offer is out of stock; the generator falls through to
	// the next ranked offer with stock.
	if line.Platform != "freshmart" {
		t.Fatalf("platform = %q, want freshmart", line.Platform)
	}
	if line.Unavailable {
		t.Fatal("line must not be flagged unavailable")
	}
	if line.QuantityNeeded != 2 {
		t.Fatalf("quantity = %v, want 2", line.QuantityNeeded)
	}
	if list.TotalEstimatedCost != 2*1.80 {
		t.Fatalf("total = %v, want %v", list.TotalEstimatedCost, 2*1.80)
	}
	if list.Status != models.ListStatusDraft {
		t.Fatalf("status = %q, want draft", list.Status)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("list not persisted")
	}
}

func TestGenerateFlagsUnavailableAndExcludesFromTotal(t *testing.T) {
	comparer := &fakeComparer{results: map[string]models.ComparisonResult{
		"flour-1kg": {Offers: []models.RankedOffer{
			offer("freshmart", 1.20, false),
			offer("quickshop", 1.30, false),
		}},
		"milk-2l": {Offers: []models.RankedOffer{offer("freshmart", 1.80, true)}},
	}}
	g := newTestGenerator(comparer, nil)

	list, err := g.Generate(context.Background(), []models.RestockTrigger{
		trigger("flour-1kg", 0, 2),
		trigger("milk-2l", 0, 1),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(list.Items) != 2 {
		t.Fatalf("got %d items, want 2: unavailable items stay on the list", len(list.Items))
	}
	if !list.Items[0].Unavailable {
		t.Fatal("flour line must be flagged unavailable")
	}
	if len(list.Items[0].Alternatives) != 2 {
		t.Fatalf("alternatives = %d, want 2", len(list.Items[0].Alternatives))
	}
	if list.TotalEstimatedCost != 1.80 {
		t.Fatalf("total = %v, want 1.80 (unavailable lines excluded)", list.TotalEstimatedCost)
	}
}

func TestGenerateSkipsItemsAtPreferredLevel(t *testing.T) {
	g := newTestGenerator(&fakeComparer{}, nil)

	list, err := g.Generate(context.Background(), []models.RestockTrigger{
		trigger("eggs-12", 3, 3),
		trigger("oats-500g", 5, 2),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(list.Items) != 0 {
		t.Fatalf("got %d items, want 0", len(list.Items))
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	comparer := &fakeComparer{results: map[string]models.ComparisonResult{
		"milk-2l": {Offers: []models.RankedOffer{
			offer("freshmart", 1.80, true),
			offer("quickshop", 1.80, true),
		}},
		"rice-5kg": {Offers: []models.RankedOffer{offer("quickshop", 4.20, true)}},
	}}
	g := newTestGenerator(comparer, nil)
	triggers := []models.RestockTrigger{
		trigger("milk-2l", 1, 3),
		trigger("rice-5kg", 0, 1),
	}

	first, err := g.Generate(context.Background(), triggers)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := g.Generate(context.Background(), triggers)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same triggers produced different lists:\n%+v\n%+v", first, second)
	}
}

func TestGenerateReturnsListOnPersistError(t *testing.T) {
	comparer := &fakeComparer{results: map[string]models.ComparisonResult{
		"milk-2l": {Offers: []models.RankedOffer{offer("freshmart", 1.80, true)}},
	}}
	repo := &fakeListRepo{err: errors.New("mongo down")}
	g := newTestGenerator(comparer, repo)

	list, err := g.Generate(context.Background(), []models.RestockTrigger{trigger("milk-2l", 0, 1)})
	if err == nil {
		t.Fatal("expected persist error")
	}
	if len(list.Items) != 1 {
		t.Fatalf("generated list must be returned alongside the error, got %+v", list)
	}
}

func TestQuantityNeededFloorsAndCeils(t *testing.T) {
	tests := []struct {
		name      string
		current   float64
		preferred float64
		want      float64
	}{
		{"fractional gap ceiled", 1.2, 3, 2},
		{"below minimum order unit", 2.7, 3, 1},
		{"at preferred", 3, 3, 0},
		{"above preferred", 5, 3, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			item := models.InventoryItem{CurrentQuantity: tc.current, PreferredQuantity: tc.preferred}
			if got := quantityNeeded(item); got != tc.want {
				t.Fatalf("quantityNeeded = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSummaryGroupsByPlatform(t *testing.T) {
	list := models.ShoppingList{Items: []models.ShoppingListItem{
		{ItemID: "milk-2l", Platform: "freshmart", QuantityNeeded: 2, UnitPrice: 1.80},
		{ItemID: "rice-5kg", Platform: "freshmart", QuantityNeeded: 1, UnitPrice: 4.20},
		{ItemID: "sugar-1kg", Platform: "quickshop", QuantityNeeded: 1, UnitPrice: 1.10},
		{ItemID: "flour-1kg", Unavailable: true, QuantityNeeded: 2, UnitPrice: 1.20},
	}}

	got := Summary(list)
	want := map[string]float64{
		"freshmart":  2*1.80 + 4.20,
		"quickshop":  1.10,
		"unassigned": 0,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("summary = %v, want %v", got, want)
	}
}
