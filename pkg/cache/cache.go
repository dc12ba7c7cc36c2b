// Package cache implements a persistent, on-disk object cache.
//
// A Cache durably associates opaque binary payloads with string keys, bounded
// by a configurable total byte budget and an optional per-entry age limit.
// Payloads live as one file per key inside the cache directory; an in-memory
// index mirrors the directory and is bootstrapped from it asynchronously at
// construction. Deletions are staged through a trash service so slow
// directory removal never runs on the caller's path.
package cache

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marmos91/dittocache/internal/logger"
	"github.com/marmos91/dittocache/pkg/opqueue"
	"github.com/marmos91/dittocache/pkg/trash"
)

const (
	// DefaultByteLimit bounds the cache to 50 MiB unless configured otherwise.
	DefaultByteLimit = 50 * 1024 * 1024

	// DefaultAgeLimit expires entries after 30 days unless configured otherwise.
	DefaultAgeLimit = 30 * 24 * time.Hour

	// DefaultPrefix namespaces cache directories on disk.
	DefaultPrefix = "com.marmos91.dittocache"
)

var (
	// ErrNotFound is returned when a key has no live entry in the cache.
	ErrNotFound = errors.New("cache: key not found")

	// ErrClosed is returned by Set on a closed cache.
	ErrClosed = errors.New("cache: closed")
)

// Callback observes a cache lifecycle event. value is the payload for add
// events and nil otherwise; key is empty for remove-all events. Callbacks run
// without the cache lock held and may call back into the cache.
type Callback func(c *Cache, key string, value []byte)

// Metrics receives cache observations. Implementations must be safe for
// concurrent use. A nil Metrics disables instrumentation with zero overhead.
type Metrics interface {
	ObserveGet(hit bool, bytes int64, d time.Duration)
	ObserveSet(bytes int64, d time.Duration)
	ObserveEviction(bytes int64)
	SetByteCount(bytes int64)
	SetEntryCount(n int)
}

// entry is the in-memory record for one cached file.
type entry struct {
	date time.Time // file modification time at last observation
	size int64     // allocated size at last observation
}

// Options configures a Cache.
type Options struct {
	// Name identifies the cache; required. The backing directory is
	// <Root>/<Prefix>.<Name>.
	Name string

	// Prefix namespaces the backing directory. Default: DefaultPrefix.
	Prefix string

	// Root is the parent directory for the cache. Default: os.TempDir().
	Root string

	// ByteLimit bounds the total payload bytes; 0 means unlimited.
	ByteLimit int64

	// AgeLimit bounds entry age for the periodic sweep and, when TTL is set,
	// for reads; 0 disables expiry.
	AgeLimit time.Duration

	// TTL makes reads honor AgeLimit (expired entries miss) and stops reads
	// from refreshing modification dates.
	TTL bool

	// FileMode is applied to every written payload file. Default: 0600.
	FileMode os.FileMode

	// Serializer/Deserializer transform payloads on the way to and from
	// disk. Defaults are the identity transforms.
	Serializer   Serializer
	Deserializer Deserializer

	// KeyEncoder/KeyDecoder map keys to filesystem-safe filenames and back.
	// Defaults percent-encode everything outside letters and digits.
	KeyEncoder KeyEncoder
	KeyDecoder KeyDecoder

	// Queue runs asynchronous operations. When nil the cache owns a private
	// queue and stops it on Close.
	Queue *opqueue.Queue

	// Trash stages deletions. When nil the process-wide service is used.
	Trash *trash.Service

	// Metrics receives observations; nil disables instrumentation.
	Metrics Metrics
}

// DefaultOptions returns Options with the stock limits for name.
func DefaultOptions(name string) Options {
	return Options{
		Name:      name,
		ByteLimit: DefaultByteLimit,
		AgeLimit:  DefaultAgeLimit,
	}
}

// Cache is a persistent on-disk object cache. All methods are safe for
// concurrent use.
type Cache struct {
	name   string
	prefix string
	dir    string // backing directory, immutable after construction

	mu           sync.Mutex
	writableCond *sync.Cond // latched by diskWritable
	knownCond    *sync.Cond // latched by diskStateKnown

	diskWritable   bool // one-way: the backing directory exists (or creation failed)
	diskStateKnown bool // one-way: the index reflects the directory scan

	metadata  map[string]entry
	byteCount int64

	byteLimit int64
	ageLimit  time.Duration
	ttlCache  bool
	fileMode  os.FileMode

	willAdd       Callback
	didAdd        Callback
	willRemove    Callback
	didRemove     Callback
	willRemoveAll Callback
	didRemoveAll  Callback

	serializer   Serializer
	deserializer Deserializer
	keyEncoder   KeyEncoder
	keyDecoder   KeyDecoder

	queue     *opqueue.Queue
	ownsQueue bool
	trash     *trash.Service
	metrics   Metrics

	sweepReset chan time.Duration
	closeCh    chan struct{}
	closeOnce  sync.Once
	closed     bool
}

// New creates a cache backed by <Root>/<Prefix>.<Name> and starts the
// asynchronous bootstrap scan. The cache is usable immediately; operations
// that need the directory or the full index block until bootstrap reaches
// the required state.
func New(opts Options) (*Cache, error) {
	if opts.Name == "" {
		return nil, errors.New("cache: name is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Root == "" {
		opts.Root = os.TempDir()
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0600
	}
	if opts.Serializer == nil {
		opts.Serializer = DefaultSerializer
	}
	if opts.Deserializer == nil {
		opts.Deserializer = DefaultDeserializer
	}
	if opts.KeyEncoder == nil {
		opts.KeyEncoder = DefaultKeyEncoder
	}
	if opts.KeyDecoder == nil {
		opts.KeyDecoder = DefaultKeyDecoder
	}
	if opts.Trash == nil {
		opts.Trash = trash.Shared()
	}

	c := &Cache{
		name:         opts.Name,
		prefix:       opts.Prefix,
		dir:          filepath.Join(opts.Root, opts.Prefix+"."+opts.Name),
		metadata:     make(map[string]entry),
		byteLimit:    opts.ByteLimit,
		ageLimit:     opts.AgeLimit,
		ttlCache:     opts.TTL,
		fileMode:     opts.FileMode,
		serializer:   opts.Serializer,
		deserializer: opts.Deserializer,
		keyEncoder:   opts.KeyEncoder,
		keyDecoder:   opts.KeyDecoder,
		queue:        opts.Queue,
		trash:        opts.Trash,
		metrics:      opts.Metrics,
		sweepReset:   make(chan time.Duration, 1),
		closeCh:      make(chan struct{}),
	}
	c.writableCond = sync.NewCond(&c.mu)
	c.knownCond = sync.NewCond(&c.mu)

	if c.queue == nil {
		c.queue = opqueue.New(opqueue.DefaultConfig())
		c.queue.Start()
		c.ownsQueue = true
	}

	// Bootstrap runs on its own goroutine, never on the operation queue:
	// queued operations may block on the writable/known latches and would
	// starve the work that sets them.
	go c.bootstrap()
	go c.sweeper()

	if opts.AgeLimit > 0 {
		c.armSweep(opts.AgeLimit)
	}

	return c, nil
}

var (
	sharedOnce sync.Once
	sharedInst *Cache
)

// Shared returns the lazily initialized process-wide default cache.
func Shared() *Cache {
	sharedOnce.Do(func() {
		c, err := New(DefaultOptions("shared"))
		if err != nil {
			// DefaultOptions always carries a name; construction cannot fail.
			panic(err)
		}
		sharedInst = c
	})
	return sharedInst
}

// Name returns the cache name.
func (c *Cache) Name() string { return c.name }

// Dir returns the absolute path of the backing directory.
func (c *Cache) Dir() string { return c.dir }

// Close stops the TTL sweeper and, when the cache owns its operation queue,
// drains and stops the queue. Entries stay on disk.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.closeCh)
		if c.ownsQueue {
			c.queue.Stop(30 * time.Second)
		}
	})
}

// lockForWriting acquires the mutex and waits until the backing directory
// exists. Any code that touches files or mutates the index uses this.
func (c *Cache) lockForWriting() {
	c.mu.Lock()
	for !c.diskWritable {
		c.writableCond.Wait()
	}
}

// lockAndWaitForKnownState acquires the mutex and waits until the bootstrap
// scan has reconciled the index with the directory. Used where correctness
// needs the full index: enumeration, TTL reads, trims.
func (c *Cache) lockAndWaitForKnownState() {
	c.mu.Lock()
	for !c.diskStateKnown {
		c.knownCond.Wait()
	}
}

// encodedPath returns the payload file path for key.
func (c *Cache) encodedPath(key string) string {
	return filepath.Join(c.dir, c.keyEncoder(key))
}

// ByteLimit returns the configured byte budget; 0 means unlimited.
func (c *Cache) ByteLimit() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byteLimit
}

// SetByteLimit reconfigures the byte budget through a high-priority queued
// write. A positive limit triggers an immediate date-ordered trim to it.
func (c *Cache) SetByteLimit(limit int64) {
	c.queue.Schedule(func() {
		c.mu.Lock()
		c.byteLimit = limit
		c.mu.Unlock()

		if limit > 0 {
			c.trimToSizeByDate(limit)
		}
	}, opqueue.PriorityHigh)
}

// AgeLimit returns the configured entry age bound; 0 means no expiry.
func (c *Cache) AgeLimit() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ageLimit
}

// SetAgeLimit reconfigures the age bound through a high-priority queued
// write and re-arms the periodic sweep.
func (c *Cache) SetAgeLimit(limit time.Duration) {
	c.queue.Schedule(func() {
		c.mu.Lock()
		c.ageLimit = limit
		c.mu.Unlock()

		c.armSweep(limit)
	}, opqueue.PriorityHigh)
}

// TTL reports whether reads honor the age limit.
func (c *Cache) TTL() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttlCache
}

// SetTTL reconfigures TTL behavior through a high-priority queued write.
func (c *Cache) SetTTL(ttl bool) {
	c.queue.Schedule(func() {
		c.mu.Lock()
		c.ttlCache = ttl
		c.mu.Unlock()
	}, opqueue.PriorityHigh)
}

// FileMode returns the permission bits applied to payload files.
func (c *Cache) FileMode() os.FileMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fileMode
}

// SetFileMode reconfigures the permission bits through a high-priority
// queued write. Existing files keep their mode.
func (c *Cache) SetFileMode(mode os.FileMode) {
	c.queue.Schedule(func() {
		c.mu.Lock()
		c.fileMode = mode
		c.mu.Unlock()
	}, opqueue.PriorityHigh)
}

// ByteCount returns the tracked total payload bytes.
func (c *Cache) ByteCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byteCount
}

// SetWillAdd installs a callback invoked before a payload is written.
func (c *Cache) SetWillAdd(cb Callback) { c.setCallback(&c.willAdd, cb) }

// SetDidAdd installs a callback invoked after a payload is written.
func (c *Cache) SetDidAdd(cb Callback) { c.setCallback(&c.didAdd, cb) }

// SetWillRemove installs a callback invoked before an entry is removed.
func (c *Cache) SetWillRemove(cb Callback) { c.setCallback(&c.willRemove, cb) }

// SetDidRemove installs a callback invoked after an entry is removed.
func (c *Cache) SetDidRemove(cb Callback) { c.setCallback(&c.didRemove, cb) }

// SetWillRemoveAll installs a callback invoked before the cache is cleared.
func (c *Cache) SetWillRemoveAll(cb Callback) { c.setCallback(&c.willRemoveAll, cb) }

// SetDidRemoveAll installs a callback invoked after the cache is cleared.
func (c *Cache) SetDidRemoveAll(cb Callback) { c.setCallback(&c.didRemoveAll, cb) }

// setCallback stores a callback slot through a high-priority queued write.
func (c *Cache) setCallback(slot *Callback, cb Callback) {
	c.queue.Schedule(func() {
		c.mu.Lock()
		*slot = cb
		c.mu.Unlock()
	}, opqueue.PriorityHigh)
}

// Stats is a point-in-time snapshot of cache state.
type Stats struct {
	Name           string
	Dir            string
	EntryCount     int
	ByteCount      int64
	ByteLimit      int64
	AgeLimit       time.Duration
	TTL            bool
	DiskStateKnown bool
}

// Stats returns a snapshot of the cache state.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Name:           c.name,
		Dir:            c.dir,
		EntryCount:     len(c.metadata),
		ByteCount:      c.byteCount,
		ByteLimit:      c.byteLimit,
		AgeLimit:       c.ageLimit,
		TTL:            c.ttlCache,
		DiskStateKnown: c.diskStateKnown,
	}
}

// publishGauges pushes index-level gauges to the metrics sink.
// Caller must hold c.mu.
func (c *Cache) publishGauges() {
	if c.metrics == nil {
		return
	}
	c.metrics.SetByteCount(c.byteCount)
	c.metrics.SetEntryCount(len(c.metadata))
}

func (c *Cache) logFSError(op, path string, err error) {
	logger.Error("Cache: filesystem error", "cache", c.name, "op", op, "path", path, "error", err)
}
