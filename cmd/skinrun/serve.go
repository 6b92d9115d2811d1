package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/skinrun/internal/cache"
	"github.com/sawpanic/skinrun/internal/server"
)

func serveCmd(g *globals) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the read-only status and metrics server with periodic cache sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = g.cfg.Server.Addr
			}
			ctx := cmd.Context()

			a, err := newApp(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := server.New(addr, a.serverDeps())
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			go sweepLoop(ctx, a.store, g.cfg.Server.SweepInterval, g.cfg.Cache.SweepMaxAge)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	return cmd
}

// sweepLoop removes stale cache entries every interval until ctx ends
func sweepLoop(ctx context.Context, store cache.Store, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.SweepOlderThan(ctx, maxAge)
			if err != nil {
				log.Warn().Err(err).Msg("Periodic cache sweep failed")
				continue
			}
			log.Info().Int("removed", removed).Msg("Periodic cache sweep")
		}
	}
}
