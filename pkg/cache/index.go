package cache

import (
	"cmp"
	"slices"
	"time"
)

// The in-memory index mirrors the backing directory: one entry per payload
// file, keyed by decoded key, plus the running byte count. Every helper in
// this file requires c.mu held by the caller.

// insertOrReplace records an entry, adjusting the byte count by the size
// delta when a prior entry exists.
func (c *Cache) insertOrReplace(key string, date time.Time, size int64) {
	if prev, ok := c.metadata[key]; ok {
		c.byteCount -= prev.size
	}
	c.metadata[key] = entry{date: date, size: size}
	c.byteCount += size
	c.publishGauges()
}

// removeEntry drops an entry and subtracts its size from the byte count.
func (c *Cache) removeEntry(key string) {
	prev, ok := c.metadata[key]
	if !ok {
		return
	}
	c.byteCount -= prev.size
	delete(c.metadata, key)
	c.publishGauges()
}

// keysSortedBySizeDesc returns keys ordered largest first, key order
// breaking ties.
func (c *Cache) keysSortedBySizeDesc() []string {
	keys := make([]string, 0, len(c.metadata))
	for k := range c.metadata {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if d := cmp.Compare(c.metadata[b].size, c.metadata[a].size); d != 0 {
			return d
		}
		return cmp.Compare(a, b)
	})
	return keys
}

// keysSortedByDateAsc returns keys ordered oldest first, key order breaking
// ties.
func (c *Cache) keysSortedByDateAsc() []string {
	keys := make([]string, 0, len(c.metadata))
	for k := range c.metadata {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if d := c.metadata[a].date.Compare(c.metadata[b].date); d != 0 {
			return d
		}
		return cmp.Compare(a, b)
	})
	return keys
}
