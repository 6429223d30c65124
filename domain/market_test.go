package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMarket(t *testing.T) {
	m, err := ParseMarket("SPOT")
	assert.NoError(t, err)
	assert.Equal(t, MarketSpot, m)

	m, err = ParseMarket(" futures ")
	assert.NoError(t, err)
	assert.Equal(t, MarketFutures, m)

	_, err = ParseMarket("MARGIN")
	assert.Error(t, err)
}

func TestNormalizeSymbol(t *testing.T) {
	s, err := NormalizeSymbol("btcusdt")
	assert.NoError(t, err)
	assert.Equal(t, "BTCUSDT", s)

	_, err = NormalizeSymbol("  ")
	assert.Error(t, err)
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, "BTCUSDT_SPOT", PairKey("btcusdt", MarketSpot))
	assert.Equal(t, "ETHUSDT_FUTURES", PairKey("ETHUSDT", MarketFutures))
}
