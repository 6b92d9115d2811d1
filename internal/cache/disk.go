package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DiskStore keeps one JSON file per key under a directory. There is no
// lock: concurrent writers of the same key race and the last rename wins.
type DiskStore struct {
	dir string
	now func() time.Time
}

// NewDiskStore creates the cache directory if needed
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &DiskStore{dir: dir, now: time.Now}, nil
}

func (d *DiskStore) path(key string) string {
	return filepath.Join(d.dir, key+".json")
}

// Get returns the payload when the entry is younger than ttl. Unreadable,
// corrupt and expired entries are deleted and reported as misses.
func (d *DiskStore) Get(_ context.Context, key string, ttl time.Duration) ([]byte, bool) {
	p := d.path(key)
	raw, err := os.ReadFile(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Debug().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return nil, false
	}

	e, err := decodeEntry(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Removing corrupt cache entry")
		_ = os.Remove(p)
		return nil, false
	}

	if d.now().Sub(e.WrittenAt) > ttl {
		_ = os.Remove(p)
		return nil, false
	}
	return e.Data, true
}

// Put writes through a temp file and rename so readers never observe a
// partial entry. Errors are logged, never returned.
func (d *DiskStore) Put(_ context.Context, key string, payload []byte) {
	raw, err := encodeEntry(d.now(), payload)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write skipped")
		return
	}

	tmp, err := os.CreateTemp(d.dir, key+".*.tmp")
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		return
	}
	if err := os.Rename(tmpName, d.path(key)); err != nil {
		os.Remove(tmpName)
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// Delete removes an entry; a missing entry is not an error
func (d *DiskStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(d.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// SweepOlderThan deletes every entry whose file is older than maxAge,
// regardless of the ttl it was read with, and returns how many went.
func (d *DiskStore) SweepOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache dir: %w", err)
	}

	now := d.now()
	removed := 0
	for _, de := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			if err := os.Remove(filepath.Join(d.dir, de.Name())); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("Cache sweep completed")
	}
	return removed, nil
}

// Stats reports entry count, total size and the age of the oldest entry
func (d *DiskStore) Stats(_ context.Context) (Stats, error) {
	st := Stats{Backend: "disk"}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return st, fmt.Errorf("failed to list cache dir: %w", err)
	}

	now := d.now()
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		st.Entries++
		st.TotalBytes += info.Size()
		if age := now.Sub(info.ModTime()); age > st.OldestAge {
			st.OldestAge = age
		}
	}
	return st, nil
}

// Close is a no-op; every operation opens its own file handles
func (d *DiskStore) Close() error { return nil }
