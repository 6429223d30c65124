package domain

import (
	"fmt"
	"strings"
)

// Market is the venue a symbol trades on.
type Market int

const (
	MarketSpot Market = iota
	MarketFutures
)

func (m Market) String() string {
	switch m {
	case MarketSpot:
		return "SPOT"
	case MarketFutures:
		return "FUTURES"
	}
	return fmt.Sprintf("Market(%d)", int(m))
}

func ParseMarket(s string) (Market, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SPOT":
		return MarketSpot, nil
	case "FUTURES":
		return MarketFutures, nil
	}
	return 0, fmt.Errorf("unknown market %q", s)
}

// NormalizeSymbol brings a trading symbol to the exchange's canonical
// uppercase form, e.g. btcusdt -> BTCUSDT.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("symbol must not be empty")
	}
	return s, nil
}

// PairKey identifies one (symbol, market) pair, e.g. BTCUSDT_SPOT.
func PairKey(symbol string, market Market) string {
	return fmt.Sprintf("%s_%s", strings.ToUpper(symbol), market)
}
