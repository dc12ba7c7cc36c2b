package cache

import (
	"io/fs"
	"os"
	"strings"

	"github.com/marmos91/dittocache/internal/logger"
)

// allocatedSize returns the bytes an entry charges against the byte budget.
func allocatedSize(info fs.FileInfo) int64 {
	return info.Size()
}

// bootstrap creates the backing directory, latches the writable state, then
// reconciles the index with the directory contents and latches known-state.
// It runs once, on its own goroutine, started by New.
func (c *Cache) bootstrap() {
	c.mu.Lock()
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		// Latch anyway: writers fail on their own, but nothing deadlocks.
		c.logFSError("mkdir", c.dir, err)
	}
	c.diskWritable = true
	c.writableCond.Broadcast()
	c.mu.Unlock()

	// Enumeration errors mean there is nothing to restore; known-state still
	// latches below so waiters never hang.
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logFSError("readdir", c.dir, err)
	}

	for _, dirEntry := range entries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		// Lock per file to bound contention with early readers and writers.
		c.mu.Lock()
		info, err := dirEntry.Info()
		if err != nil {
			c.mu.Unlock()
			continue
		}
		key, err := c.keyDecoder(name)
		if err != nil {
			c.mu.Unlock()
			c.logFSError("decode", name, err)
			continue
		}
		c.insertOrReplace(key, info.ModTime(), allocatedSize(info))
		c.mu.Unlock()
	}

	c.mu.Lock()
	limit := c.byteLimit
	over := limit > 0 && c.byteCount > limit
	c.diskStateKnown = true
	c.knownCond.Broadcast()
	count := len(c.metadata)
	bytes := c.byteCount
	c.mu.Unlock()

	if over {
		c.TrimToSizeByDateAsync(limit, nil)
	}

	logger.Debug("Cache: bootstrap complete", "cache", c.name, "entries", count, "bytes", bytes)
}
