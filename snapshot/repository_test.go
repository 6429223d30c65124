package snapshot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(":memory:")
	require.NoError(t, err)
	return repo
}

func row(observedAt time.Time, symbol string, depth float64) Snapshot {
	return Snapshot{
		ObservedAt:    observedAt,
		Symbol:        symbol,
		Market:        "SPOT",
		Depth:         depth,
		BidVolume:     decimal.NewFromInt(10),
		AskVolume:     decimal.NewFromInt(8),
		BidValueQuote: decimal.NewFromInt(1000),
		AskValueQuote: decimal.NewFromInt(820),
	}
}

func TestRepository_CreateManySkipsDuplicates(t *testing.T) {
	repo := testRepository(t)
	at := time.Now().UTC().Truncate(time.Minute)

	n, err := repo.CreateMany([]Snapshot{
		row(at, "BTCUSDT", 5),
		row(at, "BTCUSDT", 15),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// same composite keys again plus one new row
	n, err = repo.CreateMany([]Snapshot{
		row(at, "BTCUSDT", 5),
		row(at, "BTCUSDT", 15),
		row(at.Add(time.Minute), "BTCUSDT", 5),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRepository_FindMany(t *testing.T) {
	repo := testRepository(t)
	base := time.Now().UTC().Truncate(time.Minute)

	var batch []Snapshot
	for i := 0; i < 5; i++ {
		batch = append(batch, row(base.Add(time.Duration(i)*time.Minute), "BTCUSDT", 5))
	}
	batch = append(batch, row(base, "ETHUSDT", 5))
	batch = append(batch, row(base, "BTCUSDT", 15))
	_, err := repo.CreateMany(batch)
	require.NoError(t, err)

	rows, err := repo.FindMany(Query{Symbol: "BTCUSDT", Market: "SPOT", Depth: 5})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i := 1; i < len(rows); i++ {
		assert.True(t, rows[i].ObservedAt.After(rows[i-1].ObservedAt))
	}

	// half-open range: From only
	rows, err = repo.FindMany(Query{
		Symbol: "BTCUSDT", Market: "SPOT", Depth: 5,
		From: base.Add(3 * time.Minute),
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// closed range
	rows, err = repo.FindMany(Query{
		Symbol: "BTCUSDT", Market: "SPOT", Depth: 5,
		From: base.Add(time.Minute), To: base.Add(3 * time.Minute),
	})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	// limit caps the result
	rows, err = repo.FindMany(Query{Symbol: "BTCUSDT", Market: "SPOT", Depth: 5, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRepository_Stats(t *testing.T) {
	repo := testRepository(t)

	s, err := repo.Stats("BTCUSDT", "SPOT")
	require.NoError(t, err)
	assert.Zero(t, s.TotalSnapshots)

	base := time.Now().UTC().Truncate(time.Minute)
	_, err = repo.CreateMany([]Snapshot{
		row(base, "BTCUSDT", 5),
		row(base.Add(10*time.Minute), "BTCUSDT", 5),
	})
	require.NoError(t, err)

	s, err = repo.Stats("BTCUSDT", "SPOT")
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.TotalSnapshots)
	assert.True(t, s.Newest.After(s.Oldest))
}
