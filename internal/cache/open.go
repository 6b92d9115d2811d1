package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/skinrun/internal/config"
)

// Open builds the store selected by configuration. The redis backend is
// pinged so a bad address fails at startup rather than as silent misses.
func Open(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		retention := cfg.SweepMaxAge
		if retention < cfg.TTL {
			retention = cfg.TTL
		}
		return NewRedisStore(client, cfg.RedisPrefix, retention), nil
	case "disk", "":
		return NewDiskStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
