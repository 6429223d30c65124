package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvi220/trading-platform/domain"
)

var hundred = decimal.NewFromInt(100)

// DepthVolumes aggregates resting liquidity inside a percentage band
// around the mid-price. Derived and immutable; recomputed per book change.
type DepthVolumes struct {
	Symbol         string
	Market         domain.Market
	DepthPercent   float64
	BidVolume      decimal.Decimal
	AskVolume      decimal.Decimal
	BidValue       decimal.Decimal
	AskValue       decimal.Decimal
	ReferencePrice decimal.Decimal
	ComputedAt     time.Time
}

// CalcDepthVolumes sums quantity and quote value of the levels within
// [mid*(1-d/100), mid] on the bid side and [mid, mid*(1+d/100)] on the ask
// side. With an empty side (or nil book) the band has no meaningful
// reference price and all sums are zero.
func CalcDepthVolumes(book *domain.OrderBook, depthPercent float64) DepthVolumes {
	dv := DepthVolumes{
		DepthPercent:   depthPercent,
		BidVolume:      decimal.Zero,
		AskVolume:      decimal.Zero,
		BidValue:       decimal.Zero,
		AskValue:       decimal.Zero,
		ReferencePrice: decimal.Zero,
		ComputedAt:     time.Now(),
	}
	if book == nil {
		return dv
	}
	dv.Symbol = book.Symbol
	dv.Market = book.Market

	mid, ok := book.MidPrice()
	if !ok {
		return dv
	}
	dv.ReferencePrice = mid

	frac := decimal.NewFromFloat(depthPercent).Div(hundred)
	lower := mid.Mul(decimal.NewFromInt(1).Sub(frac))
	upper := mid.Mul(decimal.NewFromInt(1).Add(frac))

	// bids are descending: stop at the first level below the band
	for _, level := range book.Bids {
		if level.Price.LessThan(lower) {
			break
		}
		if level.Price.GreaterThan(mid) {
			continue
		}
		dv.BidVolume = dv.BidVolume.Add(level.Quantity)
		dv.BidValue = dv.BidValue.Add(level.Price.Mul(level.Quantity))
	}

	// asks are ascending: stop at the first level above the band
	for _, level := range book.Asks {
		if level.Price.GreaterThan(upper) {
			break
		}
		if level.Price.LessThan(mid) {
			continue
		}
		dv.AskVolume = dv.AskVolume.Add(level.Quantity)
		dv.AskValue = dv.AskValue.Add(level.Price.Mul(level.Quantity))
	}

	return dv
}

// CalcAllDepthVolumes computes the volumes for every configured band.
func CalcAllDepthVolumes(book *domain.OrderBook, depths []float64) []DepthVolumes {
	out := make([]DepthVolumes, len(depths))
	for i, d := range depths {
		out[i] = CalcDepthVolumes(book, d)
	}
	return out
}
