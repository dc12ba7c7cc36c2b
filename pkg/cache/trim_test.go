package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/marmos91/dittocache/pkg/opqueue"
	"github.com/marmos91/dittocache/pkg/trash"
)

// populate stores n payloads of size bytes each with strictly increasing
// index dates, oldest first.
func populate(t *testing.T, c *Cache, n, size int) {
	t.Helper()
	waitKnownState(t, c)

	base := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key-%d", i)
		if err := c.Set(key, make([]byte, size)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		backdate(c, key, base.Add(time.Duration(i)*time.Minute))
	}
}

func TestTrimToSize(t *testing.T) {
	c := newTestCache(t, nil)
	waitKnownState(t, c)

	// Distinct sizes so eviction order is observable: largest goes first.
	sizes := []int{100, 300, 200}
	for i, size := range sizes {
		if err := c.Set(fmt.Sprintf("key-%d", i), make([]byte, size)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	c.TrimToSize(350)

	if bc := c.ByteCount(); bc > 350 {
		t.Errorf("byte count = %d, want <= 350", bc)
	}
	if c.Contains("key-1") {
		t.Error("largest entry should have been evicted first")
	}
	if !c.Contains("key-0") || !c.Contains("key-2") {
		t.Error("smaller entries should have survived")
	}
}

func TestTrimToSizeByDate(t *testing.T) {
	c := newTestCache(t, nil)
	populate(t, c, 100, 1024)

	c.TrimToSizeByDate(50 * 1024)

	if bc := c.ByteCount(); bc > 50*1024 {
		t.Errorf("byte count = %d, want <= %d", bc, 50*1024)
	}

	// Exactly the 50 oldest entries are gone.
	for i := 0; i < 50; i++ {
		if c.Contains(fmt.Sprintf("key-%d", i)) {
			t.Errorf("old entry key-%d survived", i)
		}
	}
	for i := 50; i < 100; i++ {
		if !c.Contains(fmt.Sprintf("key-%d", i)) {
			t.Errorf("recent entry key-%d was evicted", i)
		}
	}
}

func TestTrimToDate(t *testing.T) {
	c := newTestCache(t, nil)
	populate(t, c, 10, 10)

	// Cut between key-4 and key-5.
	c.mu.Lock()
	cutoff := c.metadata["key-5"].date
	c.mu.Unlock()

	c.TrimToDate(cutoff)

	for i := 0; i < 5; i++ {
		if c.Contains(fmt.Sprintf("key-%d", i)) {
			t.Errorf("entry key-%d older than cutoff survived", i)
		}
	}
	for i := 5; i < 10; i++ {
		if !c.Contains(fmt.Sprintf("key-%d", i)) {
			t.Errorf("entry key-%d at or past cutoff was evicted", i)
		}
	}
}

func TestDegenerateTrimsClearEverything(t *testing.T) {
	tests := []struct {
		name string
		trim func(c *Cache)
	}{
		{"TrimToSize(0)", func(c *Cache) { c.TrimToSize(0) }},
		{"TrimToSizeByDate(0)", func(c *Cache) { c.TrimToSizeByDate(0) }},
		{"TrimToDate(zero)", func(c *Cache) { c.TrimToDate(time.Time{}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t, nil)
			populate(t, c, 5, 10)

			tt.trim(c)

			s := c.Stats()
			if s.EntryCount != 0 || s.ByteCount != 0 {
				t.Errorf("entries=%d bytes=%d after degenerate trim, want 0/0", s.EntryCount, s.ByteCount)
			}
		})
	}
}

func TestTrimAsyncCoalescing(t *testing.T) {
	// An unstarted queue holds both submissions so the second must coalesce
	// into the first; the larger target wins and both completions fire.
	q := opqueue.New(opqueue.Config{Workers: 1})

	root := t.TempDir()
	ts := trash.New(root)
	t.Cleanup(func() { ts.Close(5 * time.Second) })

	c, err := New(Options{Name: "coalesce", Root: root, Queue: q, Trash: ts})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	waitKnownState(t, c)

	sizes := []int{100, 150, 200}
	for i, size := range sizes {
		if err := c.Set(fmt.Sprintf("key-%d", i), make([]byte, size)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	completions := make(chan struct{}, 2)
	c.TrimToSizeAsync(160, func() { completions <- struct{}{} })
	c.TrimToSizeAsync(300, func() { completions <- struct{}{} })

	q.Start()
	t.Cleanup(func() { q.Stop(5 * time.Second) })

	for i := 0; i < 2; i++ {
		select {
		case <-completions:
		case <-time.After(5 * time.Second):
			t.Fatal("coalesced completion never fired")
		}
	}

	// One pass with target 300: only the largest entry goes.
	if bc := c.ByteCount(); bc != 250 {
		t.Errorf("byte count = %d, want 250 (single pass with the larger target)", bc)
	}

	// Completions fire before the queue counts a pass as completed.
	deadline := time.Now().Add(5 * time.Second)
	for q.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_, completed, coalesced := q.Stats()
	if coalesced != 1 {
		t.Errorf("coalesced = %d, want 1", coalesced)
	}
	if completed != 1 {
		t.Errorf("completed = %d, want 1 eviction pass", completed)
	}
}

func TestTrimToDateAsyncKeepsLaterCutoff(t *testing.T) {
	q := opqueue.New(opqueue.Config{Workers: 1})

	root := t.TempDir()
	ts := trash.New(root)
	t.Cleanup(func() { ts.Close(5 * time.Second) })

	c, err := New(Options{Name: "datecut", Root: root, Queue: q, Trash: ts})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	populate(t, c, 10, 10)

	c.mu.Lock()
	early := c.metadata["key-2"].date
	late := c.metadata["key-7"].date
	c.mu.Unlock()

	done := make(chan struct{}, 2)
	c.TrimToDateAsync(early, func() { done <- struct{}{} })
	c.TrimToDateAsync(late, func() { done <- struct{}{} })

	q.Start()
	t.Cleanup(func() { q.Stop(5 * time.Second) })

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("completion never fired")
		}
	}

	// The later cutoff wins: key-0..6 gone, key-7..9 alive.
	if c.Contains("key-6") {
		t.Error("entry before the later cutoff survived")
	}
	if !c.Contains("key-7") {
		t.Error("entry at the later cutoff was evicted")
	}
}

func TestSweeperEvictsAgedEntries(t *testing.T) {
	c := newTestCache(t, func(o *Options) { o.AgeLimit = 50 * time.Millisecond })
	waitKnownState(t, c)

	if err := c.Set("old", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	backdate(c, "old", time.Now().Add(-time.Hour))

	deadline := time.Now().Add(5 * time.Second)
	for c.Contains("old") {
		if time.Now().After(deadline) {
			t.Fatal("sweeper never evicted the aged entry")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSetAgeLimitArmsSweep(t *testing.T) {
	c := newTestCache(t, nil)
	waitKnownState(t, c)

	if err := c.Set("old", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	backdate(c, "old", time.Now().Add(-time.Hour))

	c.SetAgeLimit(time.Minute)

	deadline := time.Now().Add(5 * time.Second)
	for c.Contains("old") {
		if time.Now().After(deadline) {
			t.Fatal("reconfigured sweep never evicted the aged entry")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if c.AgeLimit() != time.Minute {
		t.Errorf("age limit = %v, want 1m", c.AgeLimit())
	}
}

func TestTrimToSizeByDateWithCompletionDispatchesSizeTrim(t *testing.T) {
	c := newTestCache(t, nil)
	waitKnownState(t, c)

	// Oldest entry is small, newest is large: the largest-first trim and the
	// oldest-first trim disagree on the victim.
	if err := c.Set("old-small", make([]byte, 50)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	backdate(c, "old-small", time.Now().Add(-time.Hour))
	if err := c.Set("new-large", make([]byte, 200)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	done := make(chan struct{})
	c.TrimToSizeByDateWithCompletion(100, func() { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("completion never fired")
	}

	// The historical dispatch runs the largest-first trim.
	if c.Contains("new-large") {
		t.Error("largest entry should have been evicted")
	}
	if !c.Contains("old-small") {
		t.Error("oldest entry should have survived the size trim")
	}
}
