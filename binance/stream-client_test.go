package binance

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvi220/trading-platform/domain"
)

// depthStreamServer upgrades each connection and writes the given frames.
func depthStreamServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// hold the connection open so the client does not see EOF mid-test
		time.Sleep(time.Second)
		conn.Close()
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamClient_DepthDiffStream(t *testing.T) {
	srv := depthStreamServer(t, []string{
		`{"e":"depthUpdate","E":1700000000000,"s":"BTCUSDT","U":101,"u":105,"b":[["100","1"]],"a":[["101","2"]]}`,
	})
	defer srv.Close()
	t.Setenv("BINANCE_STREAM_ENDPOINT", wsURL(srv))

	client := NewStreamClient("BTCUSDT", domain.MarketSpot)
	sub, err := client.DepthDiffStream()
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, "btcusdt@depth@1000ms", sub.Topic)

	select {
	case update := <-sub.Stream:
		assert.Equal(t, "BTCUSDT", update.Symbol)
		assert.Equal(t, domain.MarketSpot, update.Market)
		assert.Equal(t, int64(101), update.FirstUpdateID)
		assert.Equal(t, int64(105), update.FinalUpdateID)
		assert.Equal(t, [][]string{{"100", "1"}}, update.Bids)
		assert.Equal(t, [][]string{{"101", "2"}}, update.Asks)
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}

	assert.Equal(t, domain.FeedConnected, client.Status())
}

func TestStreamClient_MalformedFramesDropped(t *testing.T) {
	srv := depthStreamServer(t, []string{
		`this is not json`,
		`{"e":"trade","u":3}`,
		`{"e":"depthUpdate","E":1,"s":"BTCUSDT","U":1,"u":2,"b":[],"a":[]}`,
	})
	defer srv.Close()
	t.Setenv("BINANCE_STREAM_ENDPOINT", wsURL(srv))

	client := NewStreamClient("BTCUSDT", domain.MarketSpot)
	sub, err := client.DepthDiffStream()
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// only the well-formed depthUpdate frame makes it through
	select {
	case update := <-sub.Stream:
		assert.Equal(t, int64(2), update.FinalUpdateID)
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}

	select {
	case update := <-sub.Stream:
		t.Fatalf("unexpected update %+v", update)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStreamClient_DialFailureReportsError(t *testing.T) {
	t.Setenv("BINANCE_STREAM_ENDPOINT", "ws://127.0.0.1:1")

	client := NewStreamClient("BTCUSDT", domain.MarketSpot)
	statusCh := make(chan domain.FeedStatus, 16)
	client.OnStatus(func(status domain.FeedStatus) {
		statusCh <- status
	})

	_, err := client.DepthDiffStream()
	require.NoError(t, err)
	defer client.Disconnect()

	require.Eventually(t, func() bool {
		return client.Status() == domain.FeedError
	}, 2*time.Second, 10*time.Millisecond)

	// transitions are delivered synchronously and in order
	want := []domain.FeedStatus{domain.FeedConnecting, domain.FeedError}
	for _, expected := range want {
		select {
		case status := <-statusCh:
			assert.Equal(t, expected, status)
		case <-time.After(time.Second):
			t.Fatalf("status %s never delivered to callback", expected)
		}
	}
}

func TestStreamClient_ReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	t.Setenv("BINANCE_STREAM_ENDPOINT", "ws://127.0.0.1:1")

	client := NewStreamClient("BTCUSDT", domain.MarketSpot)
	client.retry = &backoff.Backoff{Min: time.Millisecond, Max: time.Millisecond}

	_, err := client.DepthDiffStream()
	require.NoError(t, err)
	defer client.Disconnect()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.attempts == reconnectMaxAttempts && client.status == domain.FeedError
	}, 5*time.Second, 10*time.Millisecond)

	// the attempt counter must not move past the cap
	time.Sleep(50 * time.Millisecond)
	client.mu.Lock()
	attempts := client.attempts
	client.mu.Unlock()
	assert.Equal(t, reconnectMaxAttempts, attempts)
}

func TestStreamClient_DisconnectIsIdempotent(t *testing.T) {
	srv := depthStreamServer(t, nil)
	defer srv.Close()
	t.Setenv("BINANCE_STREAM_ENDPOINT", wsURL(srv))

	client := NewStreamClient("BTCUSDT", domain.MarketSpot)
	sub, err := client.DepthDiffStream()
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, domain.FeedDisconnected, client.Status())
}
