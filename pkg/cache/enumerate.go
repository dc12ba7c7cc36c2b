package cache

import (
	"time"

	"github.com/marmos91/dittocache/pkg/opqueue"
)

// Enumerate calls fn for every live entry with its key and payload file
// path, waiting for the bootstrap scan first so the iteration covers the
// whole index. In TTL mode entries older than the age limit are skipped.
// Returning false from fn stops the iteration.
//
// The callback runs without the cache lock held, against a snapshot of the
// index: entries added or removed mid-iteration may or may not be observed.
func (c *Cache) Enumerate(fn func(key, fileURL string) bool) {
	if fn == nil {
		return
	}
	now := time.Now()

	type keyDate struct {
		key  string
		date time.Time
	}

	c.lockAndWaitForKnownState()
	ttl := c.ttlCache
	ageLimit := c.ageLimit
	snapshot := make([]keyDate, 0, len(c.metadata))
	for key, ent := range c.metadata {
		snapshot = append(snapshot, keyDate{key, ent.date})
	}
	c.mu.Unlock()

	for _, kd := range snapshot {
		if ttl && ageLimit > 0 && now.Sub(kd.date) >= ageLimit {
			continue
		}
		if !fn(kd.key, c.encodedPath(kd.key)) {
			return
		}
	}
}

// EnumerateAsync runs Enumerate on the operation queue; completion may be
// nil.
func (c *Cache) EnumerateAsync(fn func(key, fileURL string) bool, completion func()) {
	c.queue.Schedule(func() {
		c.Enumerate(fn)
		if completion != nil {
			completion()
		}
	}, opqueue.PriorityDefault)
}

// Keys returns the live keys, honoring TTL expiry the same way Enumerate
// does.
func (c *Cache) Keys() []string {
	var keys []string
	c.Enumerate(func(key, _ string) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}
