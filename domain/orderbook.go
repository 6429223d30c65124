package domain

import (
	"log"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var logger = log.New(os.Stdout, "[orderbook] ", log.LstdFlags)

// MaxDepthLevels caps each side of the book. Eviction drops the levels
// furthest from the touch.
const MaxDepthLevels = 10000

type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// BookSide is an ordered sequence of price levels, unique by price.
// Bids are kept strictly descending, asks strictly ascending.
type BookSide []PriceLevel

// OrderBook is the reconciled local mirror for one (symbol, market) pair.
// It is owned by a single BookMaintainer; readers get clones.
type OrderBook struct {
	Symbol       string
	Market       Market
	Bids         BookSide
	Asks         BookSide
	LastUpdateID int64
	ObservedAt   time.Time
}

// NewOrderBook adopts a full-depth snapshot as the base state.
// Levels that fail to parse are dropped with a warning.
func NewOrderBook(symbol string, market Market, snapshot *BookSnapshot) *OrderBook {
	ob := &OrderBook{
		Symbol:       symbol,
		Market:       market,
		Bids:         parseLevels(snapshot.Bids, true),
		Asks:         parseLevels(snapshot.Asks, false),
		LastUpdateID: snapshot.LastUpdateID,
		ObservedAt:   time.Now(),
	}
	ob.Validate()
	return ob
}

// ApplyChanges applies one diff's level changes atomically and advances the
// watermark. Quantity zero removes the level; otherwise the level is
// upserted. Each side is re-sorted and truncated to MaxDepthLevels.
func (ob *OrderBook) ApplyChanges(bids, asks [][]string, finalUpdateID int64, eventTime time.Time) {
	ob.Bids = ob.Bids.apply(bids, true)
	ob.Asks = ob.Asks.apply(asks, false)
	ob.LastUpdateID = finalUpdateID
	ob.ObservedAt = eventTime
	ob.Validate()
}

func (s BookSide) apply(changes [][]string, descending bool) BookSide {
	for _, change := range changes {
		if len(change) < 2 {
			logger.Printf("dropping malformed price level %v", change)
			continue
		}
		price, err := decimal.NewFromString(change[0])
		if err != nil {
			logger.Printf("dropping level with bad price %q: %s", change[0], err)
			continue
		}
		quantity, err := decimal.NewFromString(change[1])
		if err != nil {
			logger.Printf("dropping level with bad quantity %q: %s", change[1], err)
			continue
		}

		idx := -1
		for i := range s {
			if s[i].Price.Equal(price) {
				idx = i
				break
			}
		}

		if quantity.IsZero() {
			// absent level: removal of an unknown price is a no-op
			if idx >= 0 {
				s = append(s[:idx], s[idx+1:]...)
			}
			continue
		}

		if idx >= 0 {
			s[idx].Quantity = quantity
		} else {
			s = append(s, PriceLevel{Price: price, Quantity: quantity})
		}
	}

	s.sort(descending)
	if len(s) > MaxDepthLevels {
		s = s[:MaxDepthLevels]
	}
	return s
}

func (s BookSide) sort(descending bool) {
	sort.Slice(s, func(i, j int) bool {
		if descending {
			return s[i].Price.GreaterThan(s[j].Price)
		}
		return s[i].Price.LessThan(s[j].Price)
	})
}

func (ob *OrderBook) BestBid() (PriceLevel, bool) {
	if len(ob.Bids) == 0 {
		return PriceLevel{}, false
	}
	return ob.Bids[0], true
}

func (ob *OrderBook) BestAsk() (PriceLevel, bool) {
	if len(ob.Asks) == 0 {
		return PriceLevel{}, false
	}
	return ob.Asks[0], true
}

func (ob *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

func (ob *OrderBook) MidPrice() (decimal.Decimal, bool) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// Clone returns a copy safe to hand to readers: sides are copied, level
// values are immutable decimals.
func (ob *OrderBook) Clone() *OrderBook {
	cp := *ob
	cp.Bids = make(BookSide, len(ob.Bids))
	copy(cp.Bids, ob.Bids)
	cp.Asks = make(BookSide, len(ob.Asks))
	copy(cp.Asks, ob.Asks)
	return &cp
}

// Validate checks the book invariants: no negative spread, strictly sorted
// sides, no duplicate prices. Violations are logged, never fatal.
func (ob *OrderBook) Validate() bool {
	ok := true
	if bid, okBid := ob.BestBid(); okBid {
		if ask, okAsk := ob.BestAsk(); okAsk && !bid.Price.LessThan(ask.Price) {
			logger.Printf("%s: negative spread: best bid %s >= best ask %s",
				PairKey(ob.Symbol, ob.Market), bid.Price, ask.Price)
			ok = false
		}
	}
	if !ob.Bids.isSorted(true) {
		logger.Printf("%s: bids not strictly descending", PairKey(ob.Symbol, ob.Market))
		ok = false
	}
	if !ob.Asks.isSorted(false) {
		logger.Printf("%s: asks not strictly ascending", PairKey(ob.Symbol, ob.Market))
		ok = false
	}
	return ok
}

// isSorted also rejects duplicate prices since the order must be strict.
func (s BookSide) isSorted(descending bool) bool {
	for i := 1; i < len(s); i++ {
		cmp := s[i-1].Price.Cmp(s[i].Price)
		if descending && cmp <= 0 {
			return false
		}
		if !descending && cmp >= 0 {
			return false
		}
	}
	return true
}

func parseLevels(levels [][]string, descending bool) BookSide {
	side := make(BookSide, 0, len(levels))
	return side.apply(levels, descending)
}
