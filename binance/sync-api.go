package binance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/harvi220/trading-platform/domain"
)

const (
	spotDepthEndpoint    = "https://api.binance.com/api/v3/depth"
	futuresDepthEndpoint = "https://fapi.binance.com/fapi/v1/depth"

	snapshotRequestTimeout = 10 * time.Second

	// the futures depth endpoint rejects limits above 1000
	maxFuturesDepth = 1000
)

// SyncAPI fetches full-depth order book snapshots with blocking
// request/response calls. Retry policy belongs to the caller.
type SyncAPI struct {
	client     *http.Client
	spotURL    string
	futuresURL string
}

func NewSyncAPI() *SyncAPI {
	spotURL := spotDepthEndpoint
	if env := os.Getenv("BINANCE_SPOT_DEPTH_ENDPOINT"); env != "" {
		spotURL = env
	}
	futuresURL := futuresDepthEndpoint
	if env := os.Getenv("BINANCE_FUTURES_DEPTH_ENDPOINT"); env != "" {
		futuresURL = env
	}

	return &SyncAPI{
		client:     &http.Client{Timeout: snapshotRequestTimeout},
		spotURL:    spotURL,
		futuresURL: futuresURL,
	}
}

// BookSnapshot requests up to limit levels per side. Transport and parse
// failures are both reported as domain.ErrSnapshotUnavailable.
func (api *SyncAPI) BookSnapshot(symbol string, market domain.Market, limit int) (*domain.BookSnapshot, error) {
	endpoint := api.spotURL
	if market == domain.MarketFutures {
		endpoint = api.futuresURL
		if limit > maxFuturesDepth {
			limit = maxFuturesDepth
		}
	}

	query := url.Values{}
	query.Set("symbol", strings.ToUpper(symbol))
	query.Set("limit", fmt.Sprintf("%d", limit))

	resp, err := api.client.Get(endpoint + "?" + query.Encode())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrSnapshotUnavailable, resp.StatusCode)
	}

	var snapshot domain.BookSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("%w: decode: %s", domain.ErrSnapshotUnavailable, err)
	}
	if snapshot.LastUpdateID == 0 {
		return nil, fmt.Errorf("%w: missing update id watermark", domain.ErrSnapshotUnavailable)
	}

	return &snapshot, nil
}
