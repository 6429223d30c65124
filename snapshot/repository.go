package snapshot

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var logger = log.New(os.Stdout, "[snapshot] ", log.LstdFlags)

// Snapshot is one persisted depth-analytics observation. The composite
// unique key makes batch inserts duplicate-tolerant.
type Snapshot struct {
	ID         uint      `gorm:"primarykey"`
	ObservedAt time.Time `gorm:"uniqueIndex:idx_snapshot_key;not null"`
	Symbol     string    `gorm:"uniqueIndex:idx_snapshot_key;size:20;not null"`
	Market     string    `gorm:"uniqueIndex:idx_snapshot_key;size:10;not null"`
	Depth      float64   `gorm:"uniqueIndex:idx_snapshot_key;not null"`

	BidVolume     decimal.Decimal `gorm:"type:numeric;not null"`
	AskVolume     decimal.Decimal `gorm:"type:numeric;not null"`
	BidValueQuote decimal.Decimal `gorm:"type:numeric;not null"`
	AskValueQuote decimal.Decimal `gorm:"type:numeric;not null"`
}

// Query selects a time range of snapshots for one (symbol, market, depth)
// series. Zero From/To leave that bound open; Limit defaults to 3600 rows.
type Query struct {
	Symbol string
	Market string
	Depth  float64
	From   time.Time
	To     time.Time
	Limit  int
}

const defaultQueryLimit = 3600

// Stats summarizes the stored history for one pair.
type Stats struct {
	TotalSnapshots int64
	Oldest         time.Time
	Newest         time.Time
}

// Repository is the durable store for analytics snapshots, backed by a
// pure-Go sqlite database.
type Repository struct {
	db *gorm.DB
}

func NewRepository(path string) (*Repository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// CreateMany inserts a batch; rows whose composite key already exists are
// skipped, not an error. Returns the number of rows actually inserted.
func (r *Repository) CreateMany(snapshots []Snapshot) (int64, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}
	tx := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&snapshots)
	return tx.RowsAffected, tx.Error
}

// FindMany returns the matching rows ordered by observation time ascending.
func (r *Repository) FindMany(q Query) ([]Snapshot, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	stmt := r.db.
		Where("symbol = ? AND market = ? AND depth = ?", q.Symbol, q.Market, q.Depth)
	if !q.From.IsZero() {
		stmt = stmt.Where("observed_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		stmt = stmt.Where("observed_at <= ?", q.To)
	}

	var rows []Snapshot
	err := stmt.Order("observed_at asc").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) Stats(symbol, market string) (Stats, error) {
	var s Stats
	err := r.db.Model(&Snapshot{}).
		Where("symbol = ? AND market = ?", symbol, market).
		Count(&s.TotalSnapshots).Error
	if err != nil || s.TotalSnapshots == 0 {
		return s, err
	}

	row := r.db.Model(&Snapshot{}).
		Where("symbol = ? AND market = ?", symbol, market).
		Select("min(observed_at), max(observed_at)").Row()
	err = row.Scan(&s.Oldest, &s.Newest)
	return s, err
}
