package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/skinrun/internal/config"
)

func TestDisabledManager(t *testing.T) {
	m, err := NewManager(config.PostgresConfig{Enabled: false})
	require.NoError(t, err)

	assert.False(t, m.IsEnabled())
	assert.Nil(t, m.Repository())
	assert.NoError(t, m.EnsureSchema(context.Background()))
	assert.NoError(t, m.Close())

	h := m.Health().Health(context.Background())
	assert.True(t, h.Healthy)
	assert.Contains(t, h.Errors, "database persistence disabled")
}

func TestEnabledWithoutDSN(t *testing.T) {
	_, err := NewManager(config.PostgresConfig{Enabled: true})
	assert.Error(t, err)
}

func newMockManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	m := newManager(sqlx.NewDb(sqlDB, "postgres"), config.PostgresConfig{Enabled: true, DSN: "mock"})
	t.Cleanup(func() { m.Close() })
	return m, mock
}

func TestEnsureSchema(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS score_snapshots`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, m.EnsureSchema(context.Background()))
	assert.NotNil(t, m.Repository().Snapshots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthReportsPingFailure(t *testing.T) {
	m, mock := newMockManager(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	h := m.Health().Health(context.Background())
	assert.False(t, h.Healthy)
	require.Len(t, h.Errors, 1)
	assert.Contains(t, h.Errors[0], "connection refused")
	assert.Contains(t, h.ConnectionPool, "open")
}
