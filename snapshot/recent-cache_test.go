package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecentCache_Covers(t *testing.T) {
	c := newRecentCache(2 * time.Hour)
	now := time.Now()

	assert.True(t, c.covers(Query{From: now.Add(-time.Hour)}, now))
	assert.False(t, c.covers(Query{From: now.Add(-3 * time.Hour)}, now))
	// open-ended range may predate the window
	assert.False(t, c.covers(Query{}, now))
}

func TestRecentCache_RangeQuery(t *testing.T) {
	c := newRecentCache(2 * time.Hour)
	now := time.Now()

	for i := 5; i > 0; i-- {
		c.add(row(now.Add(-time.Duration(i)*time.Minute), "BTCUSDT", 5))
	}
	c.add(row(now, "ETHUSDT", 5))

	rows := c.rangeQuery(Query{
		Symbol: "BTCUSDT", Market: "SPOT", Depth: 5,
		From: now.Add(-3*time.Minute - time.Second),
	})
	assert.Len(t, rows, 3)

	rows = c.rangeQuery(Query{
		Symbol: "BTCUSDT", Market: "SPOT", Depth: 5,
		From: now.Add(-time.Hour), Limit: 2,
	})
	assert.Len(t, rows, 2)

	rows = c.rangeQuery(Query{Symbol: "XRPUSDT", Market: "SPOT", Depth: 5, From: now.Add(-time.Hour)})
	assert.Empty(t, rows)
}

func TestRecentCache_SkipsRepeatedObservationTime(t *testing.T) {
	c := newRecentCache(2 * time.Hour)
	at := time.Now().Truncate(time.Minute)

	first := row(at, "BTCUSDT", 5)
	second := row(at, "BTCUSDT", 5)
	second.BidVolume = first.BidVolume.Add(first.BidVolume)
	c.add(first)
	c.add(second)

	rows := c.rangeQuery(Query{
		Symbol: "BTCUSDT", Market: "SPOT", Depth: 5,
		From: at.Add(-time.Minute),
	})
	// the first observation for a key wins, like the durable insert
	assert.Len(t, rows, 1)
	assert.True(t, rows[0].BidVolume.Equal(first.BidVolume))
}

func TestRecentCache_PrunesOldEntries(t *testing.T) {
	c := newRecentCache(time.Hour)
	now := time.Now()

	c.add(row(now.Add(-2*time.Hour), "BTCUSDT", 5))
	c.add(row(now, "BTCUSDT", 5))

	rows := c.rangeQuery(Query{
		Symbol: "BTCUSDT", Market: "SPOT", Depth: 5,
		From: now.Add(-3 * time.Hour),
	})
	assert.Len(t, rows, 1)
}
