package domain

import "time"

// BookUpdate is one incremental depth diff covering the server-side update
// id range [FirstUpdateID, FinalUpdateID]. Levels stay in the exchange's
// raw string form until they are applied to a book.
type BookUpdate struct {
	Symbol        string
	Market        Market
	EventTime     time.Time
	FirstUpdateID int64 // U
	FinalUpdateID int64 // u
	Bids          [][]string
	Asks          [][]string
}

func NewBookUpdate(symbol string, market Market, eventTime time.Time, firstID, finalID int64, bids, asks [][]string) *BookUpdate {
	return &BookUpdate{
		Symbol:        symbol,
		Market:        market,
		EventTime:     eventTime,
		FirstUpdateID: firstID,
		FinalUpdateID: finalID,
		Bids:          bids,
		Asks:          asks,
	}
}

// BookSnapshot is the full-depth request/response shape returned by the
// snapshot endpoint.
type BookSnapshot struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}
