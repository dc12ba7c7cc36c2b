package cache

import (
	"time"

	"github.com/marmos91/dittocache/pkg/opqueue"
)

// Coalescing identifiers for queued trims, namespaced per cache so caches
// sharing a queue never merge each other's passes.
const (
	trimToSizeIdent       = "trim_to_size"
	trimToDateIdent       = "trim_to_date"
	trimToSizeByDateIdent = "trim_to_size_by_date"
)

func (c *Cache) trimIdent(ident string) string {
	return c.prefix + "." + c.name + "." + ident
}

// mergeLargerSize keeps the less aggressive of two pending size targets.
func mergeLargerSize(existing, incoming any) any {
	a, b := existing.(int64), incoming.(int64)
	if a > b {
		return a
	}
	return b
}

// mergeLaterDate keeps the more aggressive of two pending date cut-offs.
func mergeLaterDate(existing, incoming any) any {
	a, b := existing.(time.Time), incoming.(time.Time)
	if a.After(b) {
		return a
	}
	return b
}

// TrimToSize evicts largest entries first until the tracked byte count is at
// most limit. A non-positive limit clears the cache.
func (c *Cache) TrimToSize(limit int64) {
	if limit <= 0 {
		c.RemoveAll()
		return
	}
	c.trimToSize(limit)
}

// TrimToSizeByDate evicts oldest entries first until the tracked byte count
// is at most limit. A non-positive limit clears the cache.
func (c *Cache) TrimToSizeByDate(limit int64) {
	if limit <= 0 {
		c.RemoveAll()
		return
	}
	c.trimToSizeByDate(limit)
}

// TrimToDate evicts every entry whose date is strictly before cutoff. A zero
// cutoff time clears the cache.
func (c *Cache) TrimToDate(cutoff time.Time) {
	if cutoff.IsZero() {
		c.RemoveAll()
		return
	}
	c.trimToDate(cutoff)
}

// trimToSize removes entries in descending size order. The lock is held only
// across the index snapshot; each removal re-locks on its own, so concurrent
// mutation moves the target and the byte-count check tracks it.
func (c *Cache) trimToSize(limit int64) {
	c.lockAndWaitForKnownState()
	keys := c.keysSortedBySizeDesc()
	c.mu.Unlock()

	for _, key := range keys {
		c.mu.Lock()
		done := c.byteCount <= limit
		c.mu.Unlock()
		if done {
			return
		}
		c.Remove(key)
	}
}

// trimToSizeByDate removes entries in ascending date order until the budget
// holds.
func (c *Cache) trimToSizeByDate(limit int64) {
	c.lockAndWaitForKnownState()
	keys := c.keysSortedByDateAsc()
	c.mu.Unlock()

	for _, key := range keys {
		c.mu.Lock()
		done := c.byteCount <= limit
		c.mu.Unlock()
		if done {
			return
		}
		c.Remove(key)
	}
}

// trimToDate removes entries in ascending date order up to the first entry
// at or past the cutoff.
func (c *Cache) trimToDate(cutoff time.Time) {
	type keyDate struct {
		key  string
		date time.Time
	}

	c.lockAndWaitForKnownState()
	keys := c.keysSortedByDateAsc()
	snapshot := make([]keyDate, 0, len(keys))
	for _, key := range keys {
		snapshot = append(snapshot, keyDate{key, c.metadata[key].date})
	}
	c.mu.Unlock()

	for _, kd := range snapshot {
		if !kd.date.Before(cutoff) {
			return
		}
		c.Remove(kd.key)
	}
}

// TrimToSizeAsync schedules a largest-first trim on the operation queue.
// Pending submissions coalesce: the larger target wins, and every coalesced
// completion fires after the single merged pass.
func (c *Cache) TrimToSizeAsync(limit int64, completion func()) {
	c.queue.ScheduleCoalesced(c.trimIdent(trimToSizeIdent), limit, mergeLargerSize,
		func(data any) { c.TrimToSize(data.(int64)) }, opqueue.PriorityLow, completion)
}

// TrimToSizeByDateAsync schedules an oldest-first trim on the operation
// queue, coalescing as TrimToSizeAsync does.
func (c *Cache) TrimToSizeByDateAsync(limit int64, completion func()) {
	c.queue.ScheduleCoalesced(c.trimIdent(trimToSizeByDateIdent), limit, mergeLargerSize,
		func(data any) { c.TrimToSizeByDate(data.(int64)) }, opqueue.PriorityLow, completion)
}

// TrimToDateAsync schedules a date-cutoff trim on the operation queue.
// Pending submissions coalesce: the later cutoff wins.
func (c *Cache) TrimToDateAsync(cutoff time.Time, completion func()) {
	c.queue.ScheduleCoalesced(c.trimIdent(trimToDateIdent), cutoff, mergeLaterDate,
		func(data any) { c.TrimToDate(data.(time.Time)) }, opqueue.PriorityLow, completion)
}

// TrimToSizeByDateWithCompletion schedules a size trim with a completion
// handler.
//
// Deprecated: this historically dispatches the largest-first trim, not the
// oldest-first one its name suggests. Use TrimToSizeByDateAsync.
func (c *Cache) TrimToSizeByDateWithCompletion(limit int64, completion func()) {
	c.TrimToSizeAsync(limit, completion)
}

// armSweep hands the sweeper a fresh age limit, keeping only the latest
// pending value.
func (c *Cache) armSweep(d time.Duration) {
	select {
	case <-c.sweepReset:
	default:
	}
	select {
	case c.sweepReset <- d:
	default:
	}
}

// sweeper is the single long-lived task behind the recursive age-limit trim.
// It sweeps entries older than the age limit, re-arms itself after one age
// limit, and restarts whenever the limit is reconfigured. A zero limit parks
// it.
func (c *Cache) sweeper() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	sweep := func(d time.Duration) {
		c.TrimToDateAsync(time.Now().Add(-d), nil)
		timer.Reset(d)
	}

	for {
		select {
		case <-c.closeCh:
			timer.Stop()
			return

		case d := <-c.sweepReset:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			if d <= 0 {
				continue
			}
			sweep(d)

		case <-timer.C:
			c.mu.Lock()
			d := c.ageLimit
			c.mu.Unlock()
			if d <= 0 {
				continue
			}
			sweep(d)
		}
	}
}
