package bus

import (
	"sync"
	"time"
)

const defaultDedupeMaxKeys = 10000

// DedupeCache remembers keys for a TTL. Safe for concurrent use.
type DedupeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxKeys int
	seen    map[string]time.Time
	now     func() time.Time
}

func NewDedupeCache(ttl time.Duration, maxKeys int) *DedupeCache {
	if maxKeys <= 0 {
		maxKeys = defaultDedupeMaxKeys
	}
	return &DedupeCache{ttl: ttl, maxKeys: maxKeys, seen: make(map[string]time.Time), now: time.Now}
}

// Seen records key and reports whether it was already recorded within the TTL.
func (d *DedupeCache) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.ttl {
		return true
	}
	if len(d.seen) >= d.maxKeys {
		d.prune(now)
	}
	d.seen[key] = now
	return false
}

// Forget removes key so its next delivery is accepted.
func (d *DedupeCache) Forget(key string) {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
}

// prune drops expired keys, then arbitrary keys if still at the cap.
func (d *DedupeCache) prune(now time.Time) {
	for k, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, k)
		}
	}
	for len(d.seen) >= d.maxKeys {
		for k := range d.seen {
			delete(d.seen, k)
			break
		}
	}
}

// Len returns the number of tracked keys.
func (d *DedupeCache) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
