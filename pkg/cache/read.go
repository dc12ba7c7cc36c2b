package cache

import (
	"fmt"
	"os"
	"time"

	"github.com/marmos91/dittocache/internal/logger"
	"github.com/marmos91/dittocache/pkg/opqueue"
)

// Contains reports whether a payload file exists for key. When the index is
// fully known it answers from memory; before that it stats the file. TTL
// expiry does not affect the answer: an expired entry whose file still
// exists reports true.
func (c *Cache) Contains(key string) bool {
	if key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.metadata[key]; ok {
		return true
	}
	if c.diskStateKnown {
		return false
	}

	_, err := os.Stat(c.encodedPath(key))
	return err == nil
}

// Get returns the payload stored for key, or ErrNotFound when the key has no
// live entry. In TTL mode an entry older than the age limit misses without
// being deleted; outside TTL mode a hit asynchronously refreshes the file's
// modification date. A deserialization failure dooms the stored file and
// surfaces the error; the index entry is reconciled at next bootstrap.
func (c *Cache) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	start := time.Now()

	c.mu.Lock()
	if _, ok := c.metadata[key]; !ok && c.diskStateKnown {
		c.mu.Unlock()
		c.observeGet(false, 0, start)
		return nil, ErrNotFound
	}

	// TTL reads need an authoritative entry date, so wait out the scan.
	if c.ttlCache {
		for !c.diskStateKnown {
			c.knownCond.Wait()
		}
	}

	ent, ok := c.metadata[key]
	if !ok && c.diskStateKnown {
		c.mu.Unlock()
		c.observeGet(false, 0, start)
		return nil, ErrNotFound
	}

	fileURL := c.encodedPath(key)

	var data []byte
	if !c.ttlCache || c.ageLimit <= 0 || (ok && time.Since(ent.date) < c.ageLimit) {
		var err error
		data, err = os.ReadFile(fileURL)
		if err != nil {
			if !os.IsNotExist(err) {
				c.logFSError("read", fileURL, err)
			}
			data = nil
		}
	}

	if data == nil {
		// Expired or unreadable: a miss, with the file left in place.
		c.mu.Unlock()
		c.observeGet(false, 0, start)
		return nil, ErrNotFound
	}
	c.mu.Unlock()

	// Deserialization runs unlocked: codecs may be slow or call back in.
	value, err := c.deserializer(data, key)

	c.mu.Lock()
	if err != nil {
		// The stored bytes are corrupt. Doom the file; the dangling index
		// entry is reconciled at next bootstrap.
		if terr := c.trash.MoveToTrash(fileURL); terr != nil {
			c.logFSError("trash", fileURL, terr)
		} else {
			c.trash.Empty()
		}
		c.mu.Unlock()
		return nil, fmt.Errorf("cache: deserializing %q: %w", key, err)
	}

	if !c.ttlCache {
		c.scheduleDateRefresh(key, fileURL)
	}
	c.mu.Unlock()

	c.observeGet(true, int64(len(value)), start)
	return value, nil
}

// FileURL returns the payload file path for key if the file exists. Outside
// TTL mode the file's modification date is refreshed asynchronously, the
// same as a read.
func (c *Cache) FileURL(key string) (string, bool) {
	if key == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fileURL := c.encodedPath(key)
	if _, ok := c.metadata[key]; !ok {
		if c.diskStateKnown {
			return "", false
		}
		if _, err := os.Stat(fileURL); err != nil {
			return "", false
		}
	}

	if !c.ttlCache {
		c.scheduleDateRefresh(key, fileURL)
	}
	return fileURL, true
}

// scheduleDateRefresh queues a low-priority touch of the payload file so
// recently read entries sort as fresh for date-ordered eviction.
// Caller must hold c.mu.
func (c *Cache) scheduleDateRefresh(key, fileURL string) {
	c.queue.Schedule(func() {
		now := time.Now()
		if err := os.Chtimes(fileURL, now, now); err != nil {
			if !os.IsNotExist(err) {
				logger.Debug("Cache: date refresh failed", "cache", c.name, "key", key, "error", err)
			}
			return
		}

		c.mu.Lock()
		if ent, ok := c.metadata[key]; ok {
			ent.date = now
			c.metadata[key] = ent
		}
		c.mu.Unlock()
	}, opqueue.PriorityLow)
}

// GetAsync looks the key up on the operation queue and hands the result to
// fn.
func (c *Cache) GetAsync(key string, fn func(value []byte, err error)) {
	c.queue.Schedule(func() {
		value, err := c.Get(key)
		if fn != nil {
			fn(value, err)
		}
	}, opqueue.PriorityDefault)
}

// ContainsAsync checks for key on the operation queue and hands the result
// to fn.
func (c *Cache) ContainsAsync(key string, fn func(ok bool)) {
	c.queue.Schedule(func() {
		ok := c.Contains(key)
		if fn != nil {
			fn(ok)
		}
	}, opqueue.PriorityDefault)
}

// FileURLAsync resolves the payload path on the operation queue and hands
// the result to fn.
func (c *Cache) FileURLAsync(key string, fn func(fileURL string, ok bool)) {
	c.queue.Schedule(func() {
		fileURL, ok := c.FileURL(key)
		if fn != nil {
			fn(fileURL, ok)
		}
	}, opqueue.PriorityDefault)
}

func (c *Cache) observeGet(hit bool, bytes int64, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveGet(hit, bytes, time.Since(start))
	}
}
