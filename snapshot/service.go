package snapshot

import (
	"sync"
	"time"

	promclient "github.com/harvi220/trading-platform/infrastructure/prometheus"
)

const (
	batchSize     = 50
	batchInterval = 60 * time.Second
	recencyWindow = 2 * time.Hour
	queryCacheTTL = 30 * time.Minute
)

// Service batches snapshot writes to the repository and answers reads from
// a two-tier cache: the hot recency window first, the memoized query cache
// second, durable storage last. This is best-effort analytics, not a
// ledger: storage failures drop the batch with a log line.
type Service struct {
	repo *Repository

	mu         sync.Mutex
	buffer     []Snapshot
	flushTimer *time.Timer

	recent  *recentCache
	queries *queryCache
}

func NewService(repo *Repository) *Service {
	return &Service{
		repo:    repo,
		recent:  newRecentCache(recencyWindow),
		queries: newQueryCache(queryCacheTTL),
	}
}

// Write enqueues one snapshot. The batch flushes at batchSize or when the
// idle timer fires, whichever comes first; the caller never blocks on
// storage unless it happens to carry the full batch over the threshold.
func (s *Service) Write(snap Snapshot) {
	s.recent.add(snap)

	s.mu.Lock()
	s.buffer = append(s.buffer, snap)
	var batch []Snapshot
	if len(s.buffer) >= batchSize {
		batch = s.takeBatchLocked()
	} else if s.flushTimer == nil {
		s.flushTimer = time.AfterFunc(batchInterval, s.Flush)
	}
	s.mu.Unlock()

	if batch != nil {
		s.flushBatch(batch)
	}
}

// Read serves the query from the recency window when the range fits, then
// from the query cache, then from storage (populating the cache). Cache
// misses degrade to storage reads, never to an error.
func (s *Service) Read(q Query) ([]Snapshot, error) {
	if s.recent.covers(q, time.Now()) {
		if rows := s.recent.rangeQuery(q); len(rows) > 0 {
			return rows, nil
		}
	}

	if rows, ok := s.queries.get(q); ok {
		return rows, nil
	}

	rows, err := s.repo.FindMany(q)
	if err != nil {
		return nil, err
	}
	s.queries.set(q, rows)
	return rows, nil
}

// Flush writes out whatever is buffered. Safe to call concurrently; the
// repository write happens outside the buffer lock.
func (s *Service) Flush() {
	s.mu.Lock()
	batch := s.takeBatchLocked()
	s.mu.Unlock()

	if batch != nil {
		s.flushBatch(batch)
	}
}

// Shutdown flushes the tail of the buffer.
func (s *Service) Shutdown() {
	s.Flush()
}

func (s *Service) takeBatchLocked() []Snapshot {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	if len(s.buffer) == 0 {
		return nil
	}
	batch := s.buffer
	s.buffer = nil
	return batch
}

func (s *Service) flushBatch(batch []Snapshot) {
	count, err := s.repo.CreateMany(batch)
	if err != nil {
		logger.Printf("dropping batch of %d snapshots: %s", len(batch), err)
		return
	}
	promclient.SnapshotRowsFlushedTotal.Add(float64(count))
	logger.Printf("flushed %d/%d snapshots to storage", count, len(batch))
}
