package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Store is a persistent TTL key/value store. Reads fail closed: anything
// that cannot be decoded or is older than the caller's ttl is a miss.
type Store interface {
	Get(ctx context.Context, key string, ttl time.Duration) ([]byte, bool)
	Put(ctx context.Context, key string, payload []byte)
	Delete(ctx context.Context, key string) error
	SweepOlderThan(ctx context.Context, maxAge time.Duration) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats summarises what a store currently holds
type Stats struct {
	Backend    string        `json:"backend"`
	Entries    int           `json:"entries"`
	TotalBytes int64         `json:"total_bytes"`
	OldestAge  time.Duration `json:"oldest_age"`
}

// SizeMB returns the total payload size in megabytes
func (s Stats) SizeMB() float64 {
	return float64(s.TotalBytes) / (1024 * 1024)
}

// entry is the on-storage envelope around a payload
type entry struct {
	WrittenAt time.Time       `json:"written_at"`
	Data      json.RawMessage `json:"data"`
}

// Key derives the content address of a price lookup
func Key(source, item, currency string, marketplaceID int) string {
	raw := fmt.Sprintf("steam_%s_%s_%s_%d", source, item, currency, marketplaceID)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RequestKey derives the content address of an arbitrary GET request
func RequestKey(url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// GetJSON reads and decodes a cached value. A payload that no longer
// decodes into T is treated as corrupt, deleted and reported as a miss.
func GetJSON[T any](ctx context.Context, s Store, key string, ttl time.Duration) (T, bool) {
	var v T
	raw, ok := s.Get(ctx, key, ttl)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
		_ = s.Delete(ctx, key)
		var zero T
		return zero, false
	}
	return v, true
}

// PutJSON encodes and stores a value; failures are logged and swallowed
func PutJSON(ctx context.Context, s Store, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache payload not encodable")
		return
	}
	s.Put(ctx, key, raw)
}

func encodeEntry(now time.Time, payload []byte) ([]byte, error) {
	if !json.Valid(payload) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.Marshal(entry{WrittenAt: now, Data: payload})
}

func decodeEntry(raw []byte) (entry, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, err
	}
	if e.WrittenAt.IsZero() || len(e.Data) == 0 {
		return e, fmt.Errorf("incomplete cache entry")
	}
	return e, nil
}
