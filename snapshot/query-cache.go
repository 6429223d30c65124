package snapshot

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// queryCache memoizes historical query results for ranges outside the
// recency window, keyed by the full query tuple.
type queryCache struct {
	c *gocache.Cache
}

func newQueryCache(ttl time.Duration) *queryCache {
	return &queryCache{c: gocache.New(ttl, 10*time.Minute)}
}

func (qc *queryCache) key(q Query) string {
	return fmt.Sprintf("query:%s:%s:%g:%d:%d:%d",
		q.Symbol, q.Market, q.Depth, q.From.UnixMilli(), q.To.UnixMilli(), q.Limit)
}

func (qc *queryCache) get(q Query) ([]Snapshot, bool) {
	v, ok := qc.c.Get(qc.key(q))
	if !ok {
		return nil, false
	}
	rows, ok := v.([]Snapshot)
	return rows, ok
}

func (qc *queryCache) set(q Query, rows []Snapshot) {
	qc.c.SetDefault(qc.key(q), rows)
}
