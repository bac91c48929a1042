package notify

import (
	"context"
	"sync"
	"time"
)

// MemoryDedup is the in-process DedupCache used when no Redis is configured.
type MemoryDedup struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryDedup creates an empty in-memory dedup cache.
func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkDelivered records the key and reports whether it was unseen. Expired
// entries are reaped lazily on write.
func (m *MemoryDedup) MarkDelivered(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, expiry := range m.expires {
		if expiry.Before(now) {
			delete(m.expires, k)
		}
	}

	if expiry, seen := m.expires[key]; seen && expiry.After(now) {
		return false, nil
	}
	m.expires[key] = now.Add(ttl)
	return true, nil
}
