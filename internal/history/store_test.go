package history

import (
	"context"
	"testing"
	"time"

	"github.com/pantrywatch/pantrywatch/internal/domain/models"
)

func obsAt(item, platform string, price float64, at time.Time) models.PriceObservation {
	return models.PriceObservation{
		ItemID:     item,
		Platform:   platform,
		Price:      price,
		UnitPrice:  price,
		InStock:    true,
		CapturedAt: at,
	}
}

func TestAppendAndLatest(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if _, ok := store.Latest("milk", "alpha"); ok {
		t.Fatal("expected no observation before first append")
	}

	if err := store.Append(context.Background(), obsAt("milk", "alpha", 3.50, base)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(context.Background(), obsAt("milk", "alpha", 3.20, base.Add(time.Hour))); err != nil {
		t.Fatalf("append: %v", err)
	}

	latest, ok := store.Latest("milk", "alpha")
	if !ok {
		t.Fatal("expected latest observation")
	}
	if latest.Price != 3.20 {
		t.Fatalf("latest price = %.2f, want 3.20", latest.Price)
	}

	if _, ok := store.Latest("milk", "beta"); ok {
		t.Fatal("platforms must not share series")
	}
}

func TestAppendNeverMutatesExisting(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	store.Append(context.Background(), obsAt("milk", "alpha", 3.50, base))
	before := store.Series("milk", "alpha", time.Time{})

	store.Append(context.Background(), obsAt("milk", "alpha", 3.20, base.Add(time.Hour)))
	store.Append(context.Background(), obsAt("milk", "alpha", 3.10, base.Add(2*time.Hour)))

	if len(before) != 1 || before[0].Price != 3.50 {
		t.Fatal("earlier read must not observe later appends")
	}

	series := store.Series("milk", "alpha", time.Time{})
	if len(series) != 3 {
		t.Fatalf("series length = %d, want 3", len(series))
	}
	if series[0].Price != 3.50 {
		t.Fatalf("first observation mutated: price = %.2f", series[0].Price)
	}
}

func TestSeriesOrderingAndSince(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Deliberately out of order on captured_at.
	store.Append(context.Background(), obsAt("milk", "alpha", 2, base.Add(2*time.Hour)))
	store.Append(context.Background(), obsAt("milk", "alpha", 1, base.Add(time.Hour)))
	store.Append(context.Background(), obsAt("milk", "alpha", 3, base.Add(3*time.Hour)))

	series := store.Series("milk", "alpha", time.Time{})
	if len(series) != 3 {
		t.Fatalf("series length = %d, want 3", len(series))
	}
	for i := 1; i < len(series); i++ {
		if series[i].CapturedAt.Before(series[i-1].CapturedAt) {
			t.Fatal("series must be ordered by captured_at")
		}
	}

	since := store.Series("milk", "alpha", base.Add(2*time.Hour))
	if len(since) != 2 {
		t.Fatalf("since-filtered series length = %d, want 2", len(since))
	}
	if since[0].Price != 2 {
		t.Fatalf("since boundary must be inclusive, got price %.2f", since[0].Price)
	}
}

func TestTimestampTiesKeepInsertionOrder(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	store.Append(context.Background(), obsAt("milk", "alpha", 1, at))
	store.Append(context.Background(), obsAt("milk", "alpha", 2, at))

	latest, _ := store.Latest("milk", "alpha")
	if latest.Price != 2 {
		t.Fatalf("ties must break by insertion order, latest price = %.2f", latest.Price)
	}
}

func TestAppendCancelledContext(t *testing.T) {
	store := NewMemoryStore(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Append(ctx, obsAt("milk", "alpha", 3.50, time.Now()))
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if _, ok := store.Latest("milk", "alpha"); ok {
		t.Fatal("cancelled append must not leave a partial observation")
	}
}

func TestAppendValidation(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	if err := store.Append(context.Background(), models.PriceObservation{Platform: "alpha"}); err == nil {
		t.Fatal("expected error for missing item id")
	}
}

type recordingSink struct {
	saved []models.PriceObservation
}

func (s *recordingSink) SaveObservation(_ context.Context, obs models.PriceObservation) error {
	s.saved = append(s.saved, obs)
	return nil
}

func TestAppendForwardsToSink(t *testing.T) {
	sink := &recordingSink{}
	store := NewMemoryStore(sink, nil)

	store.Append(context.Background(), obsAt("milk", "alpha", 3.50, time.Now()))
	if len(sink.saved) != 1 {
		t.Fatalf("sink received %d observations, want 1", len(sink.saved))
	}
}
