package binance

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/harvi220/trading-platform/domain"
	promclient "github.com/harvi220/trading-platform/infrastructure/prometheus"
)

var logger = log.New(os.Stdout, "[binance] ", log.LstdFlags)

const (
	spotStreamEndpoint    = "wss://stream.binance.com:9443/ws"
	futuresStreamEndpoint = "wss://fstream.binance.com/ws"

	// slow stream: one diff per second is enough for depth analytics
	depthUpdateSpeed = "1000ms"

	handshakeTimeout = 10 * time.Second
	pingInterval     = 30 * time.Second
	writeTimeout     = 5 * time.Second

	reconnectMaxAttempts = 10
)

type depthUpdateMessage struct {
	Event         string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// StreamClient holds one websocket connection delivering depth diffs for a
// single (symbol, market) pair. It reconnects with exponential backoff and
// keeps the transport alive with periodic pings; it holds no book state.
type StreamClient struct {
	symbol   string
	market   domain.Market
	endpoint string

	mu       sync.Mutex
	conn     *websocket.Conn
	status   domain.FeedStatus
	attempts int
	retry    *backoff.Backoff
	timer    *time.Timer

	out      chan *domain.BookUpdate
	done     chan struct{}
	stopOnce sync.Once

	onStatus func(domain.FeedStatus)
}

func NewStreamClient(symbol string, market domain.Market) *StreamClient {
	endpoint := spotStreamEndpoint
	if market == domain.MarketFutures {
		endpoint = futuresStreamEndpoint
	}
	if env := os.Getenv("BINANCE_STREAM_ENDPOINT"); env != "" {
		endpoint = env
	}

	return &StreamClient{
		symbol:   symbol,
		market:   market,
		endpoint: endpoint,
		status:   domain.FeedDisconnected,
		retry: &backoff.Backoff{
			Min:    time.Second,
			Max:    30 * time.Second,
			Factor: 2,
		},
		out:  make(chan *domain.BookUpdate, 512),
		done: make(chan struct{}),
	}
}

// OnStatus registers a callback invoked synchronously, in order, on every
// status transition.
func (c *StreamClient) OnStatus(fn func(domain.FeedStatus)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

func (c *StreamClient) Status() domain.FeedStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// DepthDiffStream connects (if needed) and returns the update stream.
// Unsubscribe disconnects the client.
func (c *StreamClient) DepthDiffStream() (*domain.Subscription[*domain.BookUpdate], error) {
	topic := c.topic()
	c.Connect()

	return &domain.Subscription[*domain.BookUpdate]{
		Stream:      c.out,
		Topic:       topic,
		Unsubscribe: c.Disconnect,
	}, nil
}

// Connect dials the stream endpoint. A failed dial schedules a reconnect;
// it does not return an error since the retry loop owns recovery.
func (c *StreamClient) Connect() {
	select {
	case <-c.done:
		return
	default:
	}

	c.setStatus(domain.FeedConnecting)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	url := fmt.Sprintf("%s/%s", c.endpoint, c.topic())

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		logger.Printf("%s: dial failed: %s", c.topic(), err)
		c.setStatus(domain.FeedError)
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.attempts = 0
	c.retry.Reset()
	c.mu.Unlock()
	c.setStatus(domain.FeedConnected)
	logger.Printf("%s: connected to %s", c.topic(), c.endpoint)

	go c.readLoop(conn)
	go c.pingLoop(conn)
}

// Disconnect closes the connection and cancels any pending reconnect.
func (c *StreamClient) Disconnect() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.timer != nil {
			c.timer.Stop()
		}
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		c.setStatus(domain.FeedDisconnected)
	})
}

func (c *StreamClient) topic() string {
	return fmt.Sprintf("%s@depth@%s", strings.ToLower(c.symbol), depthUpdateSpeed)
}

func (c *StreamClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			logger.Printf("%s: read failed: %s", c.topic(), err)
			c.setStatus(domain.FeedDisconnected)
			c.scheduleReconnect()
			return
		}

		update, ok := c.parseUpdate(msg)
		if !ok {
			continue
		}
		select {
		case c.out <- update:
		case <-c.done:
			return
		}
	}
}

// parseUpdate drops malformed frames with a warning; a bad payload is not a
// connection error.
func (c *StreamClient) parseUpdate(msg []byte) (*domain.BookUpdate, bool) {
	var m depthUpdateMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		logger.Printf("%s: dropping malformed frame: %s", c.topic(), err)
		promclient.FeedMalformedTotal.Inc()
		return nil, false
	}
	if m.Event != "depthUpdate" || m.FinalUpdateID == 0 {
		logger.Printf("%s: dropping unexpected frame %q", c.topic(), m.Event)
		promclient.FeedMalformedTotal.Inc()
		return nil, false
	}

	return domain.NewBookUpdate(
		c.symbol, c.market,
		time.UnixMilli(m.EventTime),
		m.FirstUpdateID, m.FinalUpdateID,
		m.Bids, m.Asks,
	), true
}

// pingLoop probes the transport on a fixed interval, independent of
// message traffic.
func (c *StreamClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			if err != nil {
				logger.Printf("%s: ping failed: %s", c.topic(), err)
				return
			}
		}
	}
}

func (c *StreamClient) scheduleReconnect() {
	c.mu.Lock()

	select {
	case <-c.done:
		c.mu.Unlock()
		return
	default:
	}

	if c.attempts >= reconnectMaxAttempts {
		attempts := c.attempts
		c.mu.Unlock()
		logger.Printf("%s: giving up after %d reconnect attempts", c.topic(), attempts)
		c.setStatus(domain.FeedError)
		return
	}
	c.attempts++
	delay := c.retry.Duration()
	logger.Printf("%s: reconnecting in %s (attempt %d/%d)", c.topic(), delay, c.attempts, reconnectMaxAttempts)

	c.timer = time.AfterFunc(delay, c.Connect)
	c.mu.Unlock()
}

// setStatus runs the transition callback outside the lock so the callback
// may call back into the client.
func (c *StreamClient) setStatus(status domain.FeedStatus) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	fn := c.onStatus
	c.mu.Unlock()

	if fn != nil {
		fn(status)
	}
}
