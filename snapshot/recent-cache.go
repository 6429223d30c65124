package snapshot

import (
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// recentCache mirrors every written snapshot into a per-series,
// time-ordered window so queries over the hot range never touch storage.
// Entries older than the window are pruned on write and on read.
type recentCache struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]*deque.Deque[Snapshot]
}

func newRecentCache(window time.Duration) *recentCache {
	return &recentCache{
		window:  window,
		entries: make(map[string]*deque.Deque[Snapshot]),
	}
}

func seriesKey(symbol, market string, depth float64) string {
	return fmt.Sprintf("%s:%s:%g", symbol, market, depth)
}

// add appends a snapshot to its series. Writes per series arrive in
// observation order (one reconciler per pair), so the deque stays sorted.
// A repeated observation time is skipped, matching the store's
// duplicate-tolerant insert which keeps the first row for a key.
func (c *recentCache) add(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := seriesKey(s.Symbol, s.Market, s.Depth)
	q, ok := c.entries[key]
	if !ok {
		q = &deque.Deque[Snapshot]{}
		c.entries[key] = q
	}
	if q.Len() > 0 && !s.ObservedAt.After(q.Back().ObservedAt) {
		return
	}
	q.PushBack(s)
	c.pruneLocked(q, time.Now())
}

// covers reports whether the query range lies fully inside the window.
func (c *recentCache) covers(q Query, now time.Time) bool {
	return !q.From.IsZero() && !q.From.Before(now.Add(-c.window))
}

// rangeQuery returns the series entries within [From, To], oldest first.
func (c *recentCache) rangeQuery(q Query) []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	series, ok := c.entries[seriesKey(q.Symbol, q.Market, q.Depth)]
	if !ok {
		return nil
	}
	c.pruneLocked(series, time.Now())

	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	var out []Snapshot
	for i := 0; i < series.Len() && len(out) < limit; i++ {
		s := series.At(i)
		if !q.From.IsZero() && s.ObservedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && s.ObservedAt.After(q.To) {
			break
		}
		out = append(out, s)
	}
	return out
}

func (c *recentCache) pruneLocked(q *deque.Deque[Snapshot], now time.Time) {
	cutoff := now.Add(-c.window)
	for q.Len() > 0 && q.Front().ObservedAt.Before(cutoff) {
		q.PopFront()
	}
}
