package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrDuplicate is returned when a snapshot for the same run and item already exists
var ErrDuplicate = errors.New("duplicate snapshot")

// TimeRange represents a time window for queries
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Snapshot is one scored item of one scan run
type Snapshot struct {
	ID             int64               `db:"id" json:"id"`
	RunID          uuid.UUID           `db:"run_id" json:"run_id"`
	Timestamp      time.Time           `db:"ts" json:"ts"`
	Item           string              `db:"item" json:"item"`
	Currency       string              `db:"currency" json:"currency"`
	AppID          int                 `db:"app_id" json:"app_id"`
	BuyPrice       decimal.Decimal     `db:"buy_price" json:"buy_price"`
	SellPrice      decimal.NullDecimal `db:"sell_price" json:"sell_price"`
	PriceSource    string              `db:"price_source" json:"price_source"`
	Volume7d       int                 `db:"volume_7d" json:"volume_7d"`
	BullishScore   float64             `db:"bullish_score" json:"bullish_score"`
	Explosiveness  float64             `db:"explosiveness" json:"explosiveness"`
	PumpRisk       float64             `db:"pump_risk" json:"pump_risk"`
	ArbitrageClass string              `db:"arbitrage_class" json:"arbitrage_class"`
	ProfitPct      decimal.NullDecimal `db:"profit_pct" json:"profit_pct"`
	Candidate      bool                `db:"candidate" json:"candidate"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
}

// SnapshotRepo provides scan history persistence
type SnapshotRepo interface {
	// InsertBatch stores all rows of a run atomically
	InsertBatch(ctx context.Context, rows []Snapshot) error

	// LatestSellPrices returns the most recent recorded sell price per item
	LatestSellPrices(ctx context.Context, currency string, appID int, items []string) (map[string]decimal.Decimal, error)

	// ListByItem retrieves the history of one item, newest first
	ListByItem(ctx context.Context, item string, tr TimeRange, limit int) ([]Snapshot, error)

	// CountRuns returns the number of distinct runs in the window
	CountRuns(ctx context.Context, tr TimeRange) (int64, error)
}

// Repository aggregates all persistence interfaces
type Repository struct {
	Snapshots SnapshotRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for the persistence layer
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
