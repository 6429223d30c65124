package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiffIndicator is the bid/ask imbalance for one depth band.
// Positive diff means resting buy interest outweighs sell interest.
type DiffIndicator struct {
	DepthPercent float64
	Diff         decimal.Decimal
	BidVolume    decimal.Decimal
	AskVolume    decimal.Decimal
	// Percentage is diff relative to total band volume, -100..100.
	Percentage decimal.Decimal
	ComputedAt time.Time
}

func CalcDiff(dv DepthVolumes) DiffIndicator {
	diff := dv.BidVolume.Sub(dv.AskVolume)
	total := dv.BidVolume.Add(dv.AskVolume)

	percentage := decimal.Zero
	if !total.IsZero() {
		percentage = diff.Div(total).Mul(hundred)
	}

	return DiffIndicator{
		DepthPercent: dv.DepthPercent,
		Diff:         diff,
		BidVolume:    dv.BidVolume,
		AskVolume:    dv.AskVolume,
		Percentage:   percentage,
		ComputedAt:   time.Now(),
	}
}

func CalcAllDiffs(volumes []DepthVolumes) []DiffIndicator {
	out := make([]DiffIndicator, len(volumes))
	for i, dv := range volumes {
		out[i] = CalcDiff(dv)
	}
	return out
}
