package cache

import (
	"fmt"
	"os"
	"time"

	"github.com/natefinch/atomic"

	"github.com/marmos91/dittocache/internal/logger"
	"github.com/marmos91/dittocache/pkg/opqueue"
)

// Set stores value under key, replacing any existing payload. The write goes
// through a temp file and an atomic rename. A payload serialized larger than
// a positive byte limit is skipped without error: the file would be evicted
// by the very trim the write triggers. Empty keys and nil values no-op.
func (c *Cache) Set(key string, value []byte) error {
	if key == "" || value == nil {
		return nil
	}
	start := time.Now()

	// Serialization runs unlocked: codecs may be slow or call back in.
	data, err := c.serializer(value, key)
	if err != nil {
		return fmt.Errorf("cache: serializing %q: %w", key, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	limit := c.byteLimit
	c.mu.Unlock()

	if limit > 0 && int64(len(data)) > limit {
		logger.Warn("Cache: payload exceeds byte limit, skipping",
			"cache", c.name, "key", key, "bytes", len(data), "limit", limit)
		return nil
	}

	c.lockForWriting()

	if cb := c.willAdd; cb != nil {
		c.mu.Unlock()
		cb(c, key, value)
		c.lockForWriting()
	}

	fileURL := c.encodedPath(key)
	if err := c.writeAtomic(fileURL, data); err != nil {
		c.logFSError("write", fileURL, err)
		c.mu.Unlock()
		return fmt.Errorf("cache: writing %q: %w", key, err)
	}

	info, err := os.Stat(fileURL)
	if err != nil {
		c.logFSError("stat", fileURL, err)
	} else {
		c.insertOrReplace(key, info.ModTime(), allocatedSize(info))
	}

	limit = c.byteLimit
	trim := limit > 0 && c.byteCount > limit

	if trim {
		c.mu.Unlock()
		c.TrimToSizeByDateAsync(limit, nil)
		c.mu.Lock()
	}

	if cb := c.didAdd; cb != nil {
		c.mu.Unlock()
		cb(c, key, value)
	} else {
		c.mu.Unlock()
	}

	if c.metrics != nil {
		c.metrics.ObserveSet(int64(len(data)), time.Since(start))
	}
	return nil
}

// writeAtomic lands data at fileURL through a hidden temp file in the cache
// directory and an atomic rename. The dotted temp name keeps a concurrent
// bootstrap scan from indexing an in-flight write; same-directory placement
// keeps the rename on one filesystem.
func (c *Cache) writeAtomic(fileURL string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, c.fileMode); err != nil {
		c.logFSError("chmod", tmpName, err)
	}

	if err := atomic.ReplaceFile(tmpName, fileURL); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// SetAsync stores value on the operation queue and hands the outcome to fn.
func (c *Cache) SetAsync(key string, value []byte, fn func(err error)) {
	c.queue.Schedule(func() {
		err := c.Set(key, value)
		if fn != nil {
			fn(err)
		}
	}, opqueue.PriorityDefault)
}
