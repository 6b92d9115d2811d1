package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/skinrun/internal/persistence"
)

func newMockRepo(t *testing.T) (persistence.SnapshotRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSnapshotsRepo(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func snapshot(item string) persistence.Snapshot {
	return persistence.Snapshot{
		RunID:          uuid.MustParse("7b0f3a2e-0a44-4c39-9c55-6b7d3c8f1e21"),
		Timestamp:      time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
		Item:           item,
		Currency:       "USD",
		AppID:          730,
		BuyPrice:       decimal.RequireFromString("10.00"),
		SellPrice:      decimal.NewNullDecimal(decimal.RequireFromString("13.00")),
		PriceSource:    "direct",
		Volume7d:       100,
		BullishScore:   3.66,
		Explosiveness:  17.03,
		ArbitrageClass: "GOOD_BUY",
		ProfitPct:      decimal.NewNullDecimal(decimal.RequireFromString("10.50")),
	}
}

func TestInsertBatch(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO score_snapshots`)
	for _, item := range []string{"AK-47 | Redline (Field-Tested)", "AWP | Asiimov (Field-Tested)"} {
		prep.ExpectExec().
			WithArgs(
				"7b0f3a2e-0a44-4c39-9c55-6b7d3c8f1e21", sqlmock.AnyArg(), item, "USD", 730,
				"10", "13", "direct", 100, 3.66, 17.03, 0.0, "GOOD_BUY", "10.5", false,
			).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	err := repo.InsertBatch(context.Background(), []persistence.Snapshot{
		snapshot("AK-47 | Redline (Field-Tested)"),
		snapshot("AWP | Asiimov (Field-Tested)"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchEmptyIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)
	require.NoError(t, repo.InsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchDuplicateRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO score_snapshots`).
		ExpectExec().
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	err := repo.InsertBatch(context.Background(), []persistence.Snapshot{snapshot("AK-47 | Redline (Field-Tested)")})
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestSellPrices(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"item", "sell_price"}).
		AddRow("AK-47 | Redline (Field-Tested)", "12.40").
		AddRow("AWP | Asiimov (Field-Tested)", "91.00")
	mock.ExpectQuery(`SELECT DISTINCT ON \(item\) item, sell_price FROM score_snapshots`).
		WithArgs("USD", 730, sqlmock.AnyArg()).
		WillReturnRows(rows)

	prices, err := repo.LatestSellPrices(context.Background(), "USD", 730,
		[]string{"AK-47 | Redline (Field-Tested)", "AWP | Asiimov (Field-Tested)", "Sticker | Unknown"})
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.True(t, prices["AK-47 | Redline (Field-Tested)"].Equal(decimal.RequireFromString("12.4")))
	assert.True(t, prices["AWP | Asiimov (Field-Tested)"].Equal(decimal.NewFromInt(91)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestSellPricesNoItems(t *testing.T) {
	repo, mock := newMockRepo(t)
	prices, err := repo.LatestSellPrices(context.Background(), "USD", 730, nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByItem(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "run_id", "ts", "item", "currency", "app_id", "buy_price", "sell_price", "price_source",
		"volume_7d", "bullish_score", "explosiveness", "pump_risk", "arbitrage_class", "profit_pct",
		"candidate", "created_at",
	}).AddRow(
		int64(42), "7b0f3a2e-0a44-4c39-9c55-6b7d3c8f1e21", ts, "AK-47 | Redline (Field-Tested)", "USD",
		int64(730), "10.00", nil, "error", int64(100), 3.66, 17.03, 0.0, "NO_STEAM_DATA", nil,
		true, ts,
	)
	mock.ExpectQuery(`FROM score_snapshots WHERE item = \$1`).
		WithArgs("AK-47 | Redline (Field-Tested)", sqlmock.AnyArg(), sqlmock.AnyArg(), 10).
		WillReturnRows(rows)

	out, err := repo.ListByItem(context.Background(), "AK-47 | Redline (Field-Tested)",
		persistence.TimeRange{From: ts.Add(-time.Hour), To: ts.Add(time.Hour)}, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)

	s := out[0]
	assert.Equal(t, int64(42), s.ID)
	assert.Equal(t, "7b0f3a2e-0a44-4c39-9c55-6b7d3c8f1e21", s.RunID.String())
	assert.True(t, s.BuyPrice.Equal(decimal.NewFromInt(10)))
	assert.False(t, s.SellPrice.Valid)
	assert.False(t, s.ProfitPct.Valid)
	assert.True(t, s.Candidate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountRuns(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT COUNT\(DISTINCT run_id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := repo.CountRuns(context.Background(), persistence.TimeRange{To: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
