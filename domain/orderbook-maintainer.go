package domain

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/jpillora/backoff"

	"github.com/harvi220/trading-platform/config"
	promclient "github.com/harvi220/trading-platform/infrastructure/prometheus"
)

// ReconcileState is the maintainer's synchronization phase.
type ReconcileState string

const (
	// StateBuffering: no trusted book yet; incoming diffs are queued.
	StateBuffering ReconcileState = "Buffering"
	// StateSynchronized: diffs are applied to the book as they arrive.
	StateSynchronized ReconcileState = "Synchronized"
)

const (
	// updateBufferCap bounds the pre-snapshot diff queue; the oldest
	// entries are dropped on overflow.
	updateBufferCap = 5000

	defaultSnapshotDepth = 5000

	// resyncCooldown is the minimum time between snapshot reloads,
	// independent of the failure backoff.
	resyncCooldown = 5 * time.Second
)

type snapshotResult struct {
	snapshot *BookSnapshot
	err      error
}

// BookObserver receives an immutable book clone after every applied update.
type BookObserver func(*OrderBook)

type observerEntry struct {
	id int
	fn BookObserver
}

// BookMaintainer owns the canonical order book for one (symbol, market)
// pair. It reconciles the full-depth snapshot with the incremental diff
// stream and self-heals on detected data loss.
//
// All mutation happens on a single event-loop goroutine fed by the diff
// stream and the snapshot-result channel, so a partially applied update is
// never observable and snapshot adoption cannot race a live diff.
type BookMaintainer struct {
	symbol    string
	market    Market
	stream    FeedStreamAPI
	syncAPI   SnapshotAPI
	validator DepthUpdateValidator

	snapshotDepth int

	mu    sync.RWMutex
	book  *OrderBook
	state ReconcileState

	// owned by the run goroutine
	buffer           deque.Deque[*BookUpdate]
	snapshotAttempts int
	lastResyncAt     time.Time
	resyncCooldown   time.Duration
	resyncBackoff    *backoff.Backoff

	sub        *Subscription[*BookUpdate]
	snapshotCh chan snapshotResult
	done       chan struct{}
	stopOnce   sync.Once

	obsMu     sync.Mutex
	observers []observerEntry
	nextObsID int
}

func NewBookMaintainer(symbol string, market Market, stream FeedStreamAPI, syncAPI SnapshotAPI) *BookMaintainer {
	return &BookMaintainer{
		symbol:         symbol,
		market:         market,
		stream:         stream,
		syncAPI:        syncAPI,
		snapshotDepth:  defaultSnapshotDepth,
		state:          StateBuffering,
		snapshotCh:     make(chan snapshotResult, 1),
		done:           make(chan struct{}),
		resyncCooldown: resyncCooldown,
		resyncBackoff: &backoff.Backoff{
			Min:    time.Second,
			Max:    30 * time.Second,
			Factor: 2,
		},
	}
}

// Start subscribes to the diff stream and kicks off the initial snapshot
// load. Updates arriving before the snapshot are buffered and replayed.
func (m *BookMaintainer) Start() error {
	sub, err := m.stream.DepthDiffStream()
	if err != nil {
		return err
	}
	m.sub = sub

	go m.loadSnapshot()
	go m.run()
	return nil
}

// Stop tears down the event loop and the underlying feed subscription.
// In-memory state is discarded; nothing persistent needs cleanup.
func (m *BookMaintainer) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

// Book returns an immutable copy of the current book, or nil while no
// snapshot has been adopted yet.
func (m *BookMaintainer) Book() *OrderBook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.book == nil {
		return nil
	}
	return m.book.Clone()
}

func (m *BookMaintainer) State() ReconcileState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// FeedStatus reports the transport status of the underlying connection.
func (m *BookMaintainer) FeedStatus() FeedStatus {
	return m.stream.Status()
}

// Subscribe registers an observer for reconciled book changes. Delivery is
// synchronous and ordered; the returned function unsubscribes.
func (m *BookMaintainer) Subscribe(fn BookObserver) (unsubscribe func()) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.nextObsID++
	id := m.nextObsID
	m.observers = append(m.observers, observerEntry{id: id, fn: fn})

	return func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()
		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i], m.observers[i+1:]...)
				break
			}
		}
	}
}

func (m *BookMaintainer) run() {
	defer m.sub.Unsubscribe()

	for {
		select {
		case <-m.done:
			return
		case res := <-m.snapshotCh:
			m.handleSnapshot(res)
		case upd, ok := <-m.sub.Stream:
			if !ok {
				return
			}
			m.handleUpdate(upd)
		}
	}
}

func (m *BookMaintainer) loadSnapshot() {
	snapshot, err := m.syncAPI.BookSnapshot(m.symbol, m.market, m.snapshotDepth)
	select {
	case m.snapshotCh <- snapshotResult{snapshot: snapshot, err: err}:
	case <-m.done:
	}
}

func (m *BookMaintainer) handleUpdate(upd *BookUpdate) {
	if m.State() == StateBuffering {
		if m.buffer.Len() >= updateBufferCap {
			m.buffer.PopFront()
			promclient.BufferDroppedTotal.Inc()
		}
		m.buffer.PushBack(upd)
		return
	}
	m.applyUpdate(upd)
}

func (m *BookMaintainer) handleSnapshot(res snapshotResult) {
	if res.err != nil {
		m.snapshotAttempts++
		m.mu.Lock()
		initial := m.book == nil
		if !initial {
			// stale data beats no data: readers keep the old book
			m.state = StateSynchronized
		}
		m.mu.Unlock()
		logger.Printf("%s: snapshot load failed (attempt %d): %s",
			m.pairKey(), m.snapshotAttempts, res.err)

		if initial {
			delay := m.resyncBackoff.ForAttempt(float64(m.snapshotAttempts))
			time.AfterFunc(delay, func() {
				select {
				case <-m.done:
				default:
					m.loadSnapshot()
				}
			})
		}
		return
	}

	book := NewOrderBook(m.symbol, m.market, res.snapshot)
	m.mu.Lock()
	m.book = book
	m.state = StateSynchronized
	m.mu.Unlock()
	m.snapshotAttempts = 0

	logger.Printf("%s: adopted snapshot at update id %d (%d bids, %d asks), replaying %d buffered updates",
		m.pairKey(), book.LastUpdateID, len(book.Bids), len(book.Asks), m.buffer.Len())

	m.replayBuffer()
	m.notify(m.Book())
}

// replayBuffer drains the pre-snapshot queue in FirstUpdateID order.
// Events below the watermark fall out as outdated; the first applied event
// straddles the watermark; a real hole mid-replay triggers a resync, which
// aborts the rest of the replay.
func (m *BookMaintainer) replayBuffer() {
	if m.buffer.Len() == 0 {
		return
	}
	pending := make([]*BookUpdate, 0, m.buffer.Len())
	for m.buffer.Len() > 0 {
		pending = append(pending, m.buffer.PopFront())
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].FirstUpdateID < pending[j].FirstUpdateID
	})

	for _, upd := range pending {
		if m.State() == StateBuffering {
			return
		}
		m.applyUpdate(upd)
	}
}

func (m *BookMaintainer) applyUpdate(upd *BookUpdate) {
	m.mu.Lock()
	book := m.book
	err := m.validator.Check(upd, book.LastUpdateID)
	switch {
	case errors.Is(err, ErrUpdateOutdated):
		m.mu.Unlock()
		return
	case errors.Is(err, ErrUpdateGap):
		lastID := book.LastUpdateID
		m.mu.Unlock()
		promclient.BookGapTotal.Inc()
		logger.Printf("%s: lost %d updates (watermark %d, next event starts at %d)",
			m.pairKey(), m.validator.Gap(upd, lastID), lastID, upd.FirstUpdateID)
		m.resync()
		return
	}

	if gap := m.validator.Gap(upd, book.LastUpdateID); gap > 0 {
		logger.Printf("%s: tolerating gap of %d updates", m.pairKey(), gap)
	}

	book.ApplyChanges(upd.Bids, upd.Asks, upd.FinalUpdateID, upd.EventTime)
	clone := book.Clone()
	m.mu.Unlock()

	m.notify(clone)
}

// resync reloads the snapshot after detected data loss. Reloads are rate
// limited by a fixed cool-down and, after repeated failures, by an
// exponential backoff. The stale book stays readable throughout.
func (m *BookMaintainer) resync() {
	now := time.Now()
	if !m.lastResyncAt.IsZero() {
		since := now.Sub(m.lastResyncAt)
		if since < m.resyncCooldown {
			if config.DebugMode {
				logger.Printf("%s: skipping resync, cool-down (%s ago)", m.pairKey(), since)
			}
			return
		}
		if m.snapshotAttempts > 0 && since < m.resyncBackoff.ForAttempt(float64(m.snapshotAttempts)) {
			if config.DebugMode {
				logger.Printf("%s: skipping resync, backing off after %d failures", m.pairKey(), m.snapshotAttempts)
			}
			return
		}
	}
	m.lastResyncAt = now
	promclient.BookResyncTotal.Inc()
	logger.Printf("%s: resyncing order book", m.pairKey())

	m.mu.Lock()
	m.state = StateBuffering
	m.mu.Unlock()
	m.buffer.Clear()

	go m.loadSnapshot()
}

func (m *BookMaintainer) notify(book *OrderBook) {
	if book == nil {
		return
	}
	m.obsMu.Lock()
	obs := make([]observerEntry, len(m.observers))
	copy(obs, m.observers)
	m.obsMu.Unlock()

	for _, o := range obs {
		o.fn(book)
	}
}

func (m *BookMaintainer) pairKey() string {
	return PairKey(m.symbol, m.market)
}
