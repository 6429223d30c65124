package domain

// FeedStatus reports the lifecycle state of a depth update feed.
type FeedStatus string

const (
	FeedConnecting   FeedStatus = "Connecting"
	FeedConnected    FeedStatus = "Connected"
	FeedDisconnected FeedStatus = "Disconnected"
	FeedError        FeedStatus = "Error"
)

// FeedStreamAPI delivers incremental depth updates for one
// (symbol, market) pair.
type FeedStreamAPI interface {
	DepthDiffStream() (*Subscription[*BookUpdate], error)
	Status() FeedStatus
}

// SnapshotAPI fetches a full-depth order book snapshot with a blocking
// request/response call.
type SnapshotAPI interface {
	BookSnapshot(symbol string, market Market, limit int) (*BookSnapshot, error)
}
