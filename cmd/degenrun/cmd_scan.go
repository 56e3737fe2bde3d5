package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/degenrun/degenrun/internal/config"
	"github.com/degenrun/degenrun/internal/data/aggregator"
	"github.com/degenrun/degenrun/internal/domain/scoring"
)

// scanCmd runs one aggregate→score pass and prints the ranked candidates
// without touching the wallet or any backing store.
func scanCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one signal collection and scoring pass, print candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// Offline pass: no redis, no postgres.
			cfg.Redis.Addr = ""
			cfg.Postgres.DSN = ""

			deps, err := buildDeps(cfg)
			if err != nil {
				return err
			}
			defer deps.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			agg := aggregator.New(deps.feeds, deps.market, deps.cache, cfg.Cache.TTL.Std())
			engine := scoring.NewEngine(scoring.Thresholds{
				MinScore:     cfg.Scoring.MinScore,
				MinLiquidity: cfg.Scoring.MinLiquidity,
				MinVolume24h: cfg.Scoring.MinVolume24h,
			}, agg.GetTokenMarketData)

			signals := agg.CollectSignals(ctx)
			candidates := engine.Score(ctx, signals)
			if limit > 0 && len(candidates) > limit {
				candidates = candidates[:limit]
			}

			printCandidates(candidates, len(signals))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max candidates to print")
	return cmd
}

func printCandidates(candidates []scoring.Candidate, rawSignals int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSYMBOL\tADDRESS\tSCORE\tTECH\tSOCIAL\tMARKET\tLIQUIDITY\tVOL24H\tREASONS")
	for i, c := range candidates {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%.0f\t%.0f\t%s\n",
			i+1, c.Symbol, shortAddr(c.Address), c.Composite,
			c.Breakdown.Technical, c.Breakdown.Social, c.Breakdown.Market,
			c.Liquidity, c.Volume24h, strings.Join(c.Reasons, "; "))
	}
	w.Flush()
	fmt.Printf("\n%d candidates from %d raw signals\n", len(candidates), rawSignals)
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + ".." + addr[len(addr)-4:]
}
