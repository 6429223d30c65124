package usecase

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/harvi220/trading-platform/analytics"
	"github.com/harvi220/trading-platform/binance"
	"github.com/harvi220/trading-platform/domain"
	promclient "github.com/harvi220/trading-platform/infrastructure/prometheus"
	"github.com/harvi220/trading-platform/snapshot"
)

var logger = log.New(os.Stdout, "[registry] ", log.LstdFlags)

// ReconcilerRegistry owns one BookMaintainer per started (symbol, market)
// pair and feeds the snapshot pipeline with depth analytics computed on
// every reconciled book change. It is the only holder of reconciler state;
// there are no package-level registries.
type ReconcilerRegistry struct {
	pipeline       *snapshot.Service
	depths         []float64
	recordInterval time.Duration

	mu      sync.Mutex
	entries map[string]*reconcilerEntry
}

type reconcilerEntry struct {
	maintainer  *domain.BookMaintainer
	unsubscribe func()

	mu             sync.Mutex
	lastRecordedAt time.Time
}

func NewReconcilerRegistry(pipeline *snapshot.Service, depths []float64, recordInterval time.Duration) *ReconcilerRegistry {
	return &ReconcilerRegistry{
		pipeline:       pipeline,
		depths:         depths,
		recordInterval: recordInterval,
		entries:        make(map[string]*reconcilerEntry),
	}
}

// Start brings up a reconciler for the pair: feed connection, snapshot
// sync API, maintainer and the analytics subscription.
func (r *ReconcilerRegistry) Start(symbol string, market domain.Market) error {
	symbol, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	key := domain.PairKey(symbol, market)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return domain.ErrReconcilerExists
	}

	feed := binance.NewStreamClient(symbol, market)
	maintainer := domain.NewBookMaintainer(symbol, market, feed, binance.NewSyncAPI())

	entry := &reconcilerEntry{maintainer: maintainer}
	entry.unsubscribe = maintainer.Subscribe(func(book *domain.OrderBook) {
		r.record(entry, book)
	})

	if err := maintainer.Start(); err != nil {
		entry.unsubscribe()
		return err
	}

	r.entries[key] = entry
	promclient.OpenBookGauge.Inc()
	logger.Printf("started reconciler for %s", key)
	return nil
}

// Stop tears the pair's reconciler down and discards its in-memory state.
func (r *ReconcilerRegistry) Stop(symbol string, market domain.Market) error {
	symbol, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	key := domain.PairKey(symbol, market)

	r.mu.Lock()
	entry, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	r.mu.Unlock()

	if !ok {
		return domain.ErrReconcilerNotFound
	}
	entry.unsubscribe()
	entry.maintainer.Stop()
	promclient.OpenBookGauge.Dec()
	logger.Printf("stopped reconciler for %s", key)
	return nil
}

func (r *ReconcilerRegistry) StopAll() {
	r.mu.Lock()
	entries := make([]*reconcilerEntry, 0, len(r.entries))
	for key, e := range r.entries {
		entries = append(entries, e)
		delete(r.entries, key)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.unsubscribe()
		e.maintainer.Stop()
		promclient.OpenBookGauge.Dec()
	}
}

// CurrentBook returns an immutable copy of the pair's reconciled book.
func (r *ReconcilerRegistry) CurrentBook(symbol string, market domain.Market) (*domain.OrderBook, error) {
	entry, err := r.lookup(symbol, market)
	if err != nil {
		return nil, err
	}
	book := entry.maintainer.Book()
	if book == nil {
		return nil, domain.ErrBookNotFound
	}
	return book, nil
}

// Status reports the reconciler's synchronization state and the feed's
// transport status. Callers poll this instead of catching errors.
func (r *ReconcilerRegistry) Status(symbol string, market domain.Market) (domain.ReconcileState, domain.FeedStatus, error) {
	entry, err := r.lookup(symbol, market)
	if err != nil {
		return "", "", err
	}
	return entry.maintainer.State(), entry.maintainer.FeedStatus(), nil
}

// DepthVolumes computes the requested bands on demand. Without a book yet
// (cold start, resync window, unknown pair) the result is all zeros so
// consumers degrade instead of crashing.
func (r *ReconcilerRegistry) DepthVolumes(symbol string, market domain.Market, depths []float64) []analytics.DepthVolumes {
	entry, err := r.lookup(symbol, market)
	if err != nil {
		return analytics.CalcAllDepthVolumes(nil, depths)
	}
	return analytics.CalcAllDepthVolumes(entry.maintainer.Book(), depths)
}

// RecordSnapshot and QuerySnapshots expose the pipeline to collaborators
// (REST collector, chart queries) without handing them the internals.
func (r *ReconcilerRegistry) RecordSnapshot(snap snapshot.Snapshot) {
	r.pipeline.Write(snap)
}

func (r *ReconcilerRegistry) QuerySnapshots(q snapshot.Query) ([]snapshot.Snapshot, error) {
	return r.pipeline.Read(q)
}

func (r *ReconcilerRegistry) lookup(symbol string, market domain.Market) (*reconcilerEntry, error) {
	symbol, err := domain.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[domain.PairKey(symbol, market)]
	if !ok {
		return nil, domain.ErrReconcilerNotFound
	}
	return entry, nil
}

// record persists depth analytics for one reconciled change, at most once
// per recordInterval per pair. Timestamps are rounded to the minute so a
// re-observed tick maps onto the same storage key instead of a new row.
func (r *ReconcilerRegistry) record(entry *reconcilerEntry, book *domain.OrderBook) {
	entry.mu.Lock()
	now := time.Now()
	if now.Sub(entry.lastRecordedAt) < r.recordInterval {
		entry.mu.Unlock()
		return
	}
	entry.lastRecordedAt = now
	entry.mu.Unlock()

	observedAt := book.ObservedAt.Truncate(time.Minute)
	for _, dv := range analytics.CalcAllDepthVolumes(book, r.depths) {
		r.pipeline.Write(snapshot.Snapshot{
			ObservedAt:    observedAt,
			Symbol:        book.Symbol,
			Market:        book.Market.String(),
			Depth:         dv.DepthPercent,
			BidVolume:     dv.BidVolume,
			AskVolume:     dv.AskVolume,
			BidValueQuote: dv.BidValue,
			AskValueQuote: dv.AskValue,
		})
	}
}
