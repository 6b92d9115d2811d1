package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisStore, redismock.ClientMock, time.Time) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRedisStore(db, "skinrun:", 24*time.Hour)
	r.now = func() time.Time { return now }
	return r, mock, now
}

func TestRedisStorePut(t *testing.T) {
	r, mock, now := newTestRedis(t)
	raw, err := encodeEntry(now, []byte(`{"v":1}`))
	require.NoError(t, err)

	mock.ExpectSet("skinrun:k", raw, 24*time.Hour).SetVal("OK")
	r.Put(context.Background(), "k", []byte(`{"v":1}`))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreGetHitAndExpiry(t *testing.T) {
	r, mock, now := newTestRedis(t)
	raw, err := encodeEntry(now.Add(-time.Hour), []byte(`{"v":1}`))
	require.NoError(t, err)

	mock.ExpectGet("skinrun:k").SetVal(string(raw))
	got, ok := r.Get(context.Background(), "k", 2*time.Hour)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(got))

	mock.ExpectGet("skinrun:k").SetVal(string(raw))
	mock.ExpectDel("skinrun:k").SetVal(1)
	_, ok = r.Get(context.Background(), "k", 30*time.Minute)
	assert.False(t, ok)

	mock.ExpectGet("skinrun:k").RedisNil()
	_, ok = r.Get(context.Background(), "k", 30*time.Minute)
	assert.False(t, ok, "second read after expiry is a clean miss")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreGetFailsClosed(t *testing.T) {
	r, mock, _ := newTestRedis(t)

	mock.ExpectGet("skinrun:missing").RedisNil()
	_, ok := r.Get(context.Background(), "missing", time.Hour)
	assert.False(t, ok)

	mock.ExpectGet("skinrun:broken").SetErr(errors.New("connection reset"))
	_, ok = r.Get(context.Background(), "broken", time.Hour)
	assert.False(t, ok)

	mock.ExpectGet("skinrun:corrupt").SetVal("{garbage")
	mock.ExpectDel("skinrun:corrupt").SetVal(1)
	_, ok = r.Get(context.Background(), "corrupt", time.Hour)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreSweep(t *testing.T) {
	r, mock, now := newTestRedis(t)
	oldRaw, _ := encodeEntry(now.Add(-13*time.Hour), []byte(`1`))
	freshRaw, _ := encodeEntry(now.Add(-time.Hour), []byte(`2`))

	mock.ExpectScan(0, "skinrun:*", 100).SetVal([]string{"skinrun:old", "skinrun:fresh"}, 0)
	mock.ExpectGet("skinrun:old").SetVal(string(oldRaw))
	mock.ExpectDel("skinrun:old").SetVal(1)
	mock.ExpectGet("skinrun:fresh").SetVal(string(freshRaw))

	removed, err := r.SweepOlderThan(context.Background(), 12*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreScanError(t *testing.T) {
	r, mock, _ := newTestRedis(t)
	mock.ExpectScan(0, "skinrun:*", 100).SetErr(errors.New("LOADING"))

	_, err := r.Stats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scan cache keys")
}
