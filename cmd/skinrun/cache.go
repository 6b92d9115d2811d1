package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/skinrun/internal/cache"
)

func cacheCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or sweep the persistent cache",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show entry count, size and oldest entry age",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cache.Open(cmd.Context(), g.cfg.Cache)
			if err != nil {
				return err
			}
			defer store.Close()
			st, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read cache stats: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend:     %s\n", st.Backend)
			fmt.Fprintf(cmd.OutOrStdout(), "entries:     %d\n", st.Entries)
			fmt.Fprintf(cmd.OutOrStdout(), "size:        %.2f MB\n", st.SizeMB())
			fmt.Fprintf(cmd.OutOrStdout(), "oldest:      %.1f h\n", st.OldestAge.Hours())
			return nil
		},
	}

	var maxAge time.Duration
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Delete entries older than --max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAge <= 0 {
				maxAge = g.cfg.Cache.SweepMaxAge
			}
			store, err := cache.Open(cmd.Context(), g.cfg.Cache)
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.SweepOlderThan(cmd.Context(), maxAge)
			if err != nil {
				return fmt.Errorf("cache sweep failed: %w", err)
			}
			log.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("Cache swept")
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries older than %v\n", removed, maxAge)
			return nil
		},
	}
	sweep.Flags().DurationVar(&maxAge, "max-age", 0, "Maximum entry age (default cache.sweep_max_age)")

	cmd.AddCommand(stats, sweep)
	return cmd
}
