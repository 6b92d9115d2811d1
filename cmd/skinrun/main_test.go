package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/skinrun/internal/config"
)

func TestReadItemsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.txt")
	body := "# watchlist\nAK-47 | Redline (Field-Tested)\n\n  AWP | Asiimov (Field-Tested)  \nAK-47 | Redline (Field-Tested)\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	items, err := readItemsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AK-47 | Redline (Field-Tested)", "AWP | Asiimov (Field-Tested)"}, items)
}

func TestReadItemsFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.txt")
	require.NoError(t, os.WriteFile(path, []byte("# nothing\n\n"), 0o644))

	_, err := readItemsFile(path)
	assert.Error(t, err)

	_, err = readItemsFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestScanFlagOptions(t *testing.T) {
	f := &scanFlags{currency: "eur", game: "CS2", minPrice: 1, maxPrice: 50, minSales: 5, filter: "knife"}
	opts, err := f.options()
	require.NoError(t, err)
	assert.Equal(t, "EUR", opts.Currency)
	assert.Equal(t, 730, opts.AppID)
	assert.False(t, opts.Filter.Empty())

	f = &scanFlags{currency: "USD", game: "minecraft"}
	_, err = f.options()
	assert.Error(t, err)

	f = &scanFlags{currency: "USD", game: "cs2", minPrice: 10, maxPrice: 5}
	_, err = f.options()
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	require.NoError(t, setupLogging(config.LogConfig{Level: "warn"}, &buf))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	err := setupLogging(config.LogConfig{Level: "chatty"}, &buf)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestSetupLoggingWritesFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	path := filepath.Join(t.TempDir(), "skinrun.log")
	var buf bytes.Buffer
	require.NoError(t, setupLogging(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, &buf))

	log.Info().Msg("file sink check")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file sink check")
	assert.Contains(t, buf.String(), "file sink check")
}
