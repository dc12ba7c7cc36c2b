package cache

import (
	"os"

	"github.com/marmos91/dittocache/pkg/opqueue"
)

// Remove dooms the payload file for key and drops its index entry. It
// returns false when no file exists or the file cannot be moved to the
// trash; in the failure case the index entry is left in place.
func (c *Cache) Remove(key string) bool {
	if key == "" {
		return false
	}

	c.lockForWriting()

	fileURL := c.encodedPath(key)
	if _, err := os.Stat(fileURL); err != nil {
		c.mu.Unlock()
		return false
	}

	if cb := c.willRemove; cb != nil {
		c.mu.Unlock()
		cb(c, key, nil)
		c.lockForWriting()
	}

	if err := c.trash.MoveToTrash(fileURL); err != nil {
		c.logFSError("trash", fileURL, err)
		c.mu.Unlock()
		return false
	}
	c.trash.Empty()

	if c.metrics != nil {
		if ent, ok := c.metadata[key]; ok {
			c.metrics.ObserveEviction(ent.size)
		}
	}
	c.removeEntry(key)

	if cb := c.didRemove; cb != nil {
		c.mu.Unlock()
		cb(c, key, nil)
	} else {
		c.mu.Unlock()
	}

	return true
}

// RemoveAll dooms the entire backing directory in one rename, recreates it
// empty, and resets the index.
func (c *Cache) RemoveAll() {
	c.lockForWriting()

	if cb := c.willRemoveAll; cb != nil {
		c.mu.Unlock()
		cb(c, "", nil)
		c.lockForWriting()
	}

	if err := c.trash.MoveToTrash(c.dir); err != nil {
		c.logFSError("trash", c.dir, err)
		c.mu.Unlock()
		return
	}
	c.trash.Empty()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		c.logFSError("mkdir", c.dir, err)
	}

	c.metadata = make(map[string]entry)
	c.byteCount = 0
	c.publishGauges()

	if cb := c.didRemoveAll; cb != nil {
		c.mu.Unlock()
		cb(c, "", nil)
	} else {
		c.mu.Unlock()
	}
}

// RemoveAsync removes key on the operation queue and hands the outcome to
// fn.
func (c *Cache) RemoveAsync(key string, fn func(removed bool)) {
	c.queue.Schedule(func() {
		removed := c.Remove(key)
		if fn != nil {
			fn(removed)
		}
	}, opqueue.PriorityDefault)
}

// RemoveAllAsync clears the cache on the operation queue; completion may be
// nil.
func (c *Cache) RemoveAllAsync(completion func()) {
	c.queue.Schedule(func() {
		c.RemoveAll()
		if completion != nil {
			completion()
		}
	}, opqueue.PriorityDefault)
}
