package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/skinrun/internal/persistence"
)

// Schema creates the snapshot table; safe to run repeatedly
const Schema = `
CREATE TABLE IF NOT EXISTS score_snapshots (
	id              BIGSERIAL PRIMARY KEY,
	run_id          UUID NOT NULL,
	ts              TIMESTAMPTZ NOT NULL,
	item            TEXT NOT NULL,
	currency        VARCHAR(3) NOT NULL,
	app_id          INTEGER NOT NULL,
	buy_price       NUMERIC(14,2) NOT NULL,
	sell_price      NUMERIC(14,2),
	price_source    TEXT NOT NULL,
	volume_7d       INTEGER NOT NULL,
	bullish_score   DOUBLE PRECISION NOT NULL,
	explosiveness   DOUBLE PRECISION NOT NULL,
	pump_risk       DOUBLE PRECISION NOT NULL,
	arbitrage_class TEXT NOT NULL,
	profit_pct      NUMERIC(10,2),
	candidate       BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (run_id, item)
);
CREATE INDEX IF NOT EXISTS score_snapshots_item_ts ON score_snapshots (currency, app_id, item, ts DESC);`

const snapshotColumns = `id, run_id, ts, item, currency, app_id, buy_price, sell_price, price_source,
		volume_7d, bullish_score, explosiveness, pump_risk, arbitrage_class, profit_pct, candidate, created_at`

// snapshotsRepo implements SnapshotRepo for PostgreSQL
type snapshotsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotsRepo creates a PostgreSQL snapshot repository
func NewSnapshotsRepo(db *sqlx.DB, timeout time.Duration) persistence.SnapshotRepo {
	return &snapshotsRepo{
		db:      db,
		timeout: timeout,
	}
}

// InsertBatch stores a whole run in one transaction
func (r *snapshotsRepo) InsertBatch(ctx context.Context, rows []persistence.Snapshot) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(rows)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO score_snapshots (run_id, ts, item, currency, app_id, buy_price, sell_price,
			price_source, volume_7d, bullish_score, explosiveness, pump_risk, arbitrage_class,
			profit_pct, candidate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range rows {
		if s.Item == "" {
			return fmt.Errorf("snapshot in batch has no item name")
		}
		_, err = stmt.ExecContext(ctx,
			s.RunID, s.Timestamp, s.Item, s.Currency, s.AppID, s.BuyPrice, s.SellPrice,
			s.PriceSource, s.Volume7d, s.BullishScore, s.Explosiveness, s.PumpRisk,
			s.ArbitrageClass, s.ProfitPct, s.Candidate)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return fmt.Errorf("%w: %s in run %s", persistence.ErrDuplicate, s.Item, s.RunID)
			}
			return fmt.Errorf("failed to insert snapshot in batch: %w", err)
		}
	}

	return tx.Commit()
}

// LatestSellPrices returns the newest non-null sell price per requested item
func (r *snapshotsRepo) LatestSellPrices(ctx context.Context, currency string, appID int, items []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	if len(items) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT DISTINCT ON (item) item, sell_price
		FROM score_snapshots
		WHERE currency = $1 AND app_id = $2 AND item = ANY($3) AND sell_price IS NOT NULL
		ORDER BY item, ts DESC`

	rows, err := r.db.QueryxContext(ctx, query, currency, appID, pq.Array(items))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest sell prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item string
		var price decimal.Decimal
		if err := rows.Scan(&item, &price); err != nil {
			return nil, fmt.Errorf("failed to scan latest sell price: %w", err)
		}
		out[item] = price
	}
	return out, rows.Err()
}

// ListByItem retrieves one item's history within the window
func (r *snapshotsRepo) ListByItem(ctx context.Context, item string, tr persistence.TimeRange, limit int) ([]persistence.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + snapshotColumns + `
		FROM score_snapshots
		WHERE item = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC
		LIMIT $4`

	var out []persistence.Snapshot
	if err := sqlx.SelectContext(ctx, r.db, &out, query, item, tr.From, tr.To, limit); err != nil {
		return nil, fmt.Errorf("failed to query snapshots by item: %w", err)
	}
	return out, nil
}

// CountRuns returns distinct run ids in the window
func (r *snapshotsRepo) CountRuns(ctx context.Context, tr persistence.TimeRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	err := r.db.QueryRowxContext(ctx, `
		SELECT COUNT(DISTINCT run_id)
		FROM score_snapshots
		WHERE ts >= $1 AND ts <= $2`, tr.From, tr.To).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}
