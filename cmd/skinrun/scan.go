package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/skinrun/internal/config"
	"github.com/sawpanic/skinrun/internal/interfaces/output"
	"github.com/sawpanic/skinrun/internal/scan/pipeline"
)

type scanFlags struct {
	currency    string
	game        string
	minPrice    float64
	maxPrice    float64
	minSales    int
	itemsFile   string
	filter      string
	limit       int
	concurrency int
	csvPath     string
	jsonOut     bool
}

func bindScanFlags(fs *pflag.FlagSet, f *scanFlags) {
	fs.StringVar(&f.currency, "currency", "USD", "Currency (USD, EUR, PLN, GBP)")
	fs.StringVar(&f.game, "game", "cs2", "Game: "+strings.Join(config.GameNames(), ", "))
	fs.Float64Var(&f.minPrice, "min-price", 0, "Minimum buy-side price")
	fs.Float64Var(&f.maxPrice, "max-price", 0, "Maximum buy-side price (0 = unbounded)")
	fs.IntVar(&f.minSales, "min-sales", 5, "Minimum sales in the last 7 days")
	fs.StringVar(&f.itemsFile, "items-file", "", "File with one market hash name per line; bypasses price and sales filters")
	fs.StringVar(&f.filter, "filter", "", "Comma separated name filters or categories (e.g. knife,awp)")
	fs.IntVar(&f.limit, "limit", 0, "Keep at most this many items, highest volume first (0 = all)")
	fs.IntVar(&f.concurrency, "concurrency", 0, "Override fetch.concurrency")
	fs.StringVar(&f.csvPath, "csv", "", "Also write all rows to this CSV file")
	fs.BoolVar(&f.jsonOut, "json", false, "Print JSON instead of a table")
}

func scanCmd(g *globals) *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the marketplace, fetch sell-side prices and score items",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options()
			if err != nil {
				return err
			}
			if f.concurrency > 0 {
				g.cfg.Fetch.Concurrency = f.concurrency
				if err := g.cfg.Validate(); err != nil {
					return err
				}
			}

			a, err := newApp(cmd.Context(), g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline().Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			log.Info().
				Str("run_id", res.RunID.String()).
				Int("rows", len(res.Rows)).
				Int("candidates", len(res.Candidates)).
				Int("profitable", res.Profitable).
				Float64("cache_hit_ratio", a.metrics.HitRatio()).
				Bool("persisted", res.Persisted).
				Msg("Scan finished")

			emitter := output.NewEmitter()
			if f.csvPath != "" {
				if err := writeFile(f.csvPath, func(w io.Writer) error { return emitter.EmitCSV(w, res) }); err != nil {
					return err
				}
			}
			if f.jsonOut {
				return emitter.EmitJSON(cmd.OutOrStdout(), res)
			}
			return emitter.EmitTable(cmd.OutOrStdout(), res)
		},
	}
	bindScanFlags(cmd.Flags(), f)
	return cmd
}

// options converts flags into pipeline options
func (f *scanFlags) options() (pipeline.Options, error) {
	appID, ok := config.GameID(f.game)
	if !ok {
		return pipeline.Options{}, fmt.Errorf("unknown game %q (known: %s)", f.game, strings.Join(config.GameNames(), ", "))
	}
	opts := pipeline.Options{
		Currency: config.NormalizeCurrency(f.currency),
		AppID:    appID,
		MinPrice: f.minPrice,
		MaxPrice: f.maxPrice,
		MinSales: f.minSales,
		Limit:    f.limit,
		Filter:   pipeline.ParseNameFilter(f.filter, strings.ToLower(f.game)),
	}
	if f.itemsFile != "" {
		items, err := readItemsFile(f.itemsFile)
		if err != nil {
			return pipeline.Options{}, err
		}
		opts.Items = items
	}
	return opts, opts.Validate()
}

// readItemsFile reads one item per line, skipping blanks and # comments
func readItemsFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open items file: %w", err)
	}
	defer file.Close()

	var items []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		items = append(items, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items file: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("items file %s lists no items", path)
	}
	return items, nil
}

func writeFile(path string, emit func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := emit(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
