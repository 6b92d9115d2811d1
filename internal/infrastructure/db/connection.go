package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/skinrun/internal/config"
	"github.com/sawpanic/skinrun/internal/persistence"
	"github.com/sawpanic/skinrun/internal/persistence/postgres"
)

// Manager manages the database connection and repository instances
type Manager struct {
	db     *sqlx.DB
	config config.PostgresConfig
	repos  *persistence.Repository
	health *healthChecker
}

// NewManager opens and pings the database. A disabled config yields a manager
// with no connection and a nil Repository.
func NewManager(cfg config.PostgresConfig) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{
			config: cfg,
			health: &healthChecker{enabled: false},
		}, nil
	}

	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newManager(db, cfg), nil
}

func newManager(db *sqlx.DB, cfg config.PostgresConfig) *Manager {
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		db:     db,
		config: cfg,
		repos: &persistence.Repository{
			Snapshots: postgres.NewSnapshotsRepo(db, timeout),
		},
		health: &healthChecker{
			enabled: true,
			db:      db,
			timeout: timeout,
		},
	}
}

// EnsureSchema creates the snapshot table and index if missing
func (m *Manager) EnsureSchema(ctx context.Context) error {
	if !m.IsEnabled() {
		return nil
	}
	if _, err := m.db.ExecContext(ctx, postgres.Schema); err != nil {
		return fmt.Errorf("failed to create snapshot schema: %w", err)
	}
	log.Debug().Msg("Ensured score_snapshots table exists")
	return nil
}

// Repository returns the repository collection, or nil if the database is disabled
func (m *Manager) Repository() *persistence.Repository {
	return m.repos
}

// Health returns the health checker
func (m *Manager) Health() persistence.RepositoryHealth {
	return m.health
}

// IsEnabled returns whether database persistence is enabled
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled && m.db != nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// healthChecker implements persistence.RepositoryHealth
type healthChecker struct {
	enabled bool
	db      *sqlx.DB
	timeout time.Duration
}

// Health returns current repository health status
func (h *healthChecker) Health(ctx context.Context) persistence.HealthCheck {
	if !h.enabled {
		return persistence.HealthCheck{
			Healthy:        true,
			Errors:         []string{"database persistence disabled"},
			ConnectionPool: map[string]int{"status": 0},
			LastCheck:      time.Now(),
		}
	}

	start := time.Now()
	var errs []string
	if err := h.Ping(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("ping failed: %v", err))
	}

	stats := h.db.Stats()
	return persistence.HealthCheck{
		Healthy: len(errs) == 0,
		Errors:  errs,
		ConnectionPool: map[string]int{
			"max_open":      stats.MaxOpenConnections,
			"open":          stats.OpenConnections,
			"in_use":        stats.InUse,
			"idle":          stats.Idle,
			"wait_count":    int(stats.WaitCount),
			"wait_duration": int(stats.WaitDuration.Milliseconds()),
		},
		LastCheck:      time.Now(),
		ResponseTimeMS: time.Since(start).Milliseconds(),
	}
}

// Ping tests basic connectivity to the database
func (h *healthChecker) Ping(ctx context.Context) error {
	if !h.enabled {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.db.PingContext(pingCtx)
}
