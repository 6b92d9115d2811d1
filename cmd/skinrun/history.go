package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/skinrun/internal/infrastructure/db"
	"github.com/sawpanic/skinrun/internal/persistence"
)

func historyCmd(g *globals) *cobra.Command {
	var (
		item  string
		days  int
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored scan snapshots for one item (requires postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if item == "" {
				return fmt.Errorf("--item is required")
			}
			manager, err := db.NewManager(g.cfg.Postgres)
			if err != nil {
				return err
			}
			defer manager.Close()
			if !manager.IsEnabled() {
				return fmt.Errorf("postgres persistence is disabled; set postgres.enabled or SKINRUN_PG_DSN")
			}

			now := time.Now()
			tr := persistence.TimeRange{From: now.AddDate(0, 0, -days), To: now}
			repo := manager.Repository().Snapshots

			runs, err := repo.CountRuns(cmd.Context(), tr)
			if err != nil {
				return err
			}
			rows, err := repo.ListByItem(cmd.Context(), item, tr, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d snapshots across %d runs in the last %d days\n\n", item, len(rows), runs, days)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "Time\tBuy\tSell\tBullish\tExplosive\tPump\tArbitrage\tCandidate")
			for _, s := range rows {
				sell := "-"
				if s.SellPrice.Valid {
					sell = s.SellPrice.Decimal.StringFixed(2)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%.2f\t%.1f\t%s\t%v\n",
					s.Timestamp.Local().Format("2006-01-02 15:04"), s.BuyPrice.StringFixed(2), sell,
					s.BullishScore, s.Explosiveness, s.PumpRisk, s.ArbitrageClass, s.Candidate)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&item, "item", "", "Market hash name")
	cmd.Flags().IntVar(&days, "days", 30, "Look back this many days")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	return cmd
}
