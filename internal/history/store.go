// Package history holds the append-only ledger of price observations. The
// ledger is the source of truth for trend and price-drop detection; it is
// the only cross-worker shared mutable state in the engine.
package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pantrywatch/pantrywatch/internal/domain/models"
)

// Store is the ledger contract. Append is the only mutation primitive;
// observations are immutable once appended.
type Store interface {
	Append(ctx context.Context, obs models.PriceObservation) error
	Latest(itemID, platform string) (models.PriceObservation, bool)
	Series(itemID, platform string, since time.Time) []models.PriceObservation
}

// ObservationSink receives every appended observation for durable storage.
// Sink failures never fail the append.
type ObservationSink interface {
	SaveObservation(ctx context.Context, obs models.PriceObservation) error
}

// MemoryStore is the in-process ledger implementation. Observations are kept
// ordered by captured_at with ties broken by insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[string][]models.PriceObservation
	sink   ObservationSink
	logger *zap.Logger
}

// NewMemoryStore builds an empty ledger. sink may be nil when no persistence
// collaborator is wired.
func NewMemoryStore(sink ObservationSink, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		series: make(map[string][]models.PriceObservation),
		sink:   sink,
		logger: logger,
	}
}

func key(itemID, platform string) string {
	return itemID + "\x00" + platform
}

// Append inserts one observation. The insert is all-or-nothing: a cancelled
// context never leaves a partial entry behind.
func (s *MemoryStore) Append(ctx context.Context, obs models.PriceObservation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	if obs.ItemID == "" || obs.Platform == "" {
		return fmt.Errorf("append observation: item id and platform are required")
	}

	k := key(obs.ItemID, obs.Platform)

	s.mu.Lock()
	seq := s.series[k]
	// Most appends arrive in time order; walk back only for the odd
	// out-of-order capture. Equal timestamps keep insertion order.
	idx := len(seq)
	for idx > 0 && seq[idx-1].CapturedAt.After(obs.CapturedAt) {
		idx--
	}
	seq = append(seq, models.PriceObservation{})
	copy(seq[idx+1:], seq[idx:])
	seq[idx] = obs
	s.series[k] = seq
	s.mu.Unlock()

	if s.sink != nil {
		if err := s.sink.SaveObservation(ctx, obs); err != nil {
			s.logger.Warn("observation sink write failed",
				zap.String("item_id", obs.ItemID),
				zap.String("platform", obs.Platform),
				zap.Error(err))
		}
	}

	return nil
}

// Latest returns the most recent observation for an (item, platform) pair.
func (s *MemoryStore) Latest(itemID, platform string) (models.PriceObservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.series[key(itemID, platform)]
	if len(seq) == 0 {
		return models.PriceObservation{}, false
	}
	return seq[len(seq)-1], true
}

// Series returns the observations for an (item, platform) pair captured at
// or after since, oldest first. The returned slice is a copy; reads are
// restartable and never see later appends.
func (s *MemoryStore) Series(itemID, platform string, since time.Time) []models.PriceObservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.series[key(itemID, platform)]
	start := sort.Search(len(seq), func(i int) bool {
		return !seq[i].CapturedAt.Before(since)
	})
	if start == len(seq) {
		return nil
	}

	out := make([]models.PriceObservation, len(seq)-start)
	copy(out, seq[start:])
	return out
}
