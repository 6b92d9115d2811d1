package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete skinrun configuration
type Config struct {
	Sources  []SourceConfig `yaml:"sources"`
	Rate     RateConfig     `yaml:"rate"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Cache    CacheConfig    `yaml:"cache"`
	Skinport SkinportConfig `yaml:"skinport"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Postgres PostgresConfig `yaml:"postgres"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// SourceKind selects the wire format a price source speaks
type SourceKind string

const (
	KindDirect SourceKind = "direct" // JSON price overview endpoint
	KindRender SourceKind = "render" // listing page with HTML embedded in JSON
)

// SourceConfig represents configuration for a single price source.
// Sources are tried in the order they are listed.
type SourceConfig struct {
	Name             string        `yaml:"name"`
	Kind             SourceKind    `yaml:"kind"`
	BaseURL          string        `yaml:"base_url"`
	InitialDelay     time.Duration `yaml:"initial_delay"`
	MaxDelay         time.Duration `yaml:"max_delay"`
	ConcurrencyLimit int           `yaml:"concurrency_limit"`
	Timeout          time.Duration `yaml:"timeout"`
	Enabled          bool          `yaml:"enabled"`
	RPS              float64       `yaml:"rps"`   // hard ceiling, 0 disables
	Burst            int           `yaml:"burst"` // token bucket burst for RPS
	ThrottleStatuses []int         `yaml:"throttle_statuses"`
}

// RateConfig controls the adaptive delay arithmetic shared by all sources
type RateConfig struct {
	IncreaseFactor    float64       `yaml:"increase_factor"`
	DecayFactor       float64       `yaml:"decay_factor"`
	RateLimitRecovery time.Duration `yaml:"rate_limit_recovery"`
}

// FetchConfig controls the batch scheduler and per-item retry loop
type FetchConfig struct {
	Concurrency    int           `yaml:"concurrency"`     // process-wide semaphore size
	MaxConnections int           `yaml:"max_connections"` // HTTP connection budget
	ChunkSize      int           `yaml:"chunk_size"`
	ChunkCooldown  time.Duration `yaml:"chunk_cooldown"`
	MaxRetries     int           `yaml:"max_retries"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	JitterMin      time.Duration `yaml:"jitter_min"`
	JitterMax      time.Duration `yaml:"jitter_max"`
	Seed           int64         `yaml:"seed"` // 0 seeds from the clock
}

// BreakerConfig configures the per-source circuit breakers
type BreakerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	FailureRatio        float64       `yaml:"failure_ratio"`
	MinRequests         uint32        `yaml:"min_requests"`
	Interval            time.Duration `yaml:"interval"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
}

// CacheConfig selects and configures the persistent cache backend
type CacheConfig struct {
	Backend     string        `yaml:"backend"` // disk or redis
	Dir         string        `yaml:"dir"`
	TTL         time.Duration `yaml:"ttl"`
	SweepMaxAge time.Duration `yaml:"sweep_max_age"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisDB     int           `yaml:"redis_db"`
	RedisPrefix string        `yaml:"redis_prefix"`
}

// SkinportConfig configures the sales history and listings client
type SkinportConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	TTL       time.Duration `yaml:"ttl"`
	Retries   int           `yaml:"retries"`
}

// PostgresConfig configures optional score snapshot persistence
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// ServerConfig configures the status/metrics server
type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// LogConfig configures console and rotating file logging
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides deployment-specific settings from the environment
func (c *Config) applyEnv() {
	if v := os.Getenv("SKINRUN_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("SKINRUN_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
		if os.Getenv("SKINRUN_CACHE_BACKEND") == "" {
			c.Cache.Backend = "redis"
		}
	}
	if v := os.Getenv("SKINRUN_PG_DSN"); v != "" {
		c.Postgres.DSN = v
		c.Postgres.Enabled = true
	}
	if v := os.Getenv("SKINRUN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	if strings.HasPrefix(c.Cache.Dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.Cache.Dir = filepath.Join(home, c.Cache.Dir[2:])
		}
	}
}

// Validate ensures the configuration is valid and consistent
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: at least one source is required", ErrInvalid)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		s := &c.Sources[i]
		if err := s.Validate(); err != nil {
			return fmt.Errorf("source %q: %w", s.Name, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate source %q", ErrInvalid, s.Name)
		}
		seen[s.Name] = true
	}

	if err := c.Rate.Validate(); err != nil {
		return fmt.Errorf("rate: %w", err)
	}
	if err := c.Fetch.Validate(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("%w: postgres enabled without dsn", ErrInvalid)
	}
	return nil
}

// Validate checks a single source
func (s *SourceConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if s.Kind != KindDirect && s.Kind != KindRender {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalid, s.Kind)
	}
	if s.BaseURL == "" {
		return fmt.Errorf("%w: base_url is required", ErrInvalid)
	}
	if s.InitialDelay <= 0 || s.MaxDelay < s.InitialDelay {
		return fmt.Errorf("%w: need 0 < initial_delay <= max_delay", ErrInvalid)
	}
	if s.ConcurrencyLimit <= 0 {
		return fmt.Errorf("%w: concurrency_limit must be positive", ErrInvalid)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalid)
	}
	if s.RPS < 0 || (s.RPS > 0 && s.Burst <= 0) {
		return fmt.Errorf("%w: rps requires a positive burst", ErrInvalid)
	}
	return nil
}

// Validate checks the multiplicative delay factors
func (r *RateConfig) Validate() error {
	if r.IncreaseFactor <= 1 {
		return fmt.Errorf("%w: increase_factor must be > 1", ErrInvalid)
	}
	if r.DecayFactor <= 0 || r.DecayFactor >= 1 {
		return fmt.Errorf("%w: decay_factor must be in (0,1)", ErrInvalid)
	}
	if r.RateLimitRecovery < 0 {
		return fmt.Errorf("%w: rate_limit_recovery must not be negative", ErrInvalid)
	}
	return nil
}

// Validate checks scheduler sizing and retry bounds
func (f *FetchConfig) Validate() error {
	if f.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalid)
	}
	if f.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalid)
	}
	if f.ChunkSize >= f.MaxConnections {
		return fmt.Errorf("%w: chunk_size %d must be below max_connections %d", ErrInvalid, f.ChunkSize, f.MaxConnections)
	}
	if f.Concurrency > f.MaxConnections {
		return fmt.Errorf("%w: concurrency exceeds max_connections", ErrInvalid)
	}
	if f.MaxRetries <= 0 {
		return fmt.Errorf("%w: max_retries must be positive", ErrInvalid)
	}
	if f.BackoffBase <= 0 || f.BackoffMax < f.BackoffBase {
		return fmt.Errorf("%w: need 0 < backoff_base <= backoff_max", ErrInvalid)
	}
	if f.JitterMin < 0 || f.JitterMax < f.JitterMin {
		return fmt.Errorf("%w: need 0 <= jitter_min <= jitter_max", ErrInvalid)
	}
	if f.ChunkCooldown < 0 {
		return fmt.Errorf("%w: chunk_cooldown must not be negative", ErrInvalid)
	}
	return nil
}

// Validate checks the cache backend selection
func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case "disk":
		if c.Dir == "" {
			return fmt.Errorf("%w: dir is required for disk backend", ErrInvalid)
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr is required for redis backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Backend)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrInvalid)
	}
	return nil
}

// Source returns the named source configuration
func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}
