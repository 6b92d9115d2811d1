package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const redisOpTimeout = 500 * time.Millisecond

// RedisStore keeps entries as envelope strings under a key prefix.
// Redis-side expiry is only a retention backstop; freshness is still
// judged against the ttl passed to Get.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client, prefix string, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, retention: retention, now: time.Now}
}

func (r *RedisStore) key(k string) string { return r.prefix + k }

// Get returns the payload when the entry is younger than ttl
func (r *RedisStore) Get(ctx context.Context, key string, ttl time.Duration) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().Err(err).Str("key", key).Msg("Redis cache read failed")
		}
		return nil, false
	}

	e, err := decodeEntry(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Removing corrupt cache entry")
		r.client.Del(ctx, r.key(key))
		return nil, false
	}
	if r.now().Sub(e.WrittenAt) > ttl {
		r.client.Del(ctx, r.key(key))
		return nil, false
	}
	return e.Data, true
}

// Put stores the payload; errors are logged, never returned
func (r *RedisStore) Put(ctx context.Context, key string, payload []byte) {
	raw, err := encodeEntry(r.now(), payload)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write skipped")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key(key), raw, r.retention).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis cache write failed")
	}
}

// Delete removes an entry
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// SweepOlderThan scans the prefix and deletes entries older than maxAge.
// Entries that no longer decode are deleted as well.
func (r *RedisStore) SweepOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	keys, err := r.scan(ctx)
	if err != nil {
		return 0, err
	}

	now := r.now()
	removed := 0
	for _, k := range keys {
		raw, err := r.client.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		e, err := decodeEntry(raw)
		if err == nil && now.Sub(e.WrittenAt) <= maxAge {
			continue
		}
		if err := r.client.Del(ctx, k).Err(); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Stats reports entry count, payload bytes and the oldest entry age
func (r *RedisStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Backend: "redis"}
	keys, err := r.scan(ctx)
	if err != nil {
		return st, err
	}

	now := r.now()
	for _, k := range keys {
		raw, err := r.client.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		st.Entries++
		st.TotalBytes += int64(len(raw))
		if e, err := decodeEntry(raw); err == nil {
			if age := now.Sub(e.WrittenAt); age > st.OldestAge {
				st.OldestAge = age
			}
		}
	}
	return st, nil
}

func (r *RedisStore) scan(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache keys: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Close releases the underlying client
func (r *RedisStore) Close() error {
	return r.client.Close()
}
