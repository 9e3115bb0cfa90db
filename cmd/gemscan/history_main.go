package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/gemscan/internal/persistence"
)

// runHistory lists stored runs of the selected preset, or the tokens of one
// run with --run.
func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Sinks.Postgres.Enabled {
		return errors.New("run history needs sinks.postgres enabled (or PG_DSN)")
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return fmt.Errorf("--limit must be at least 1, got %d", limit)
	}
	since, _ := cmd.Flags().GetDuration("since")
	if since < 0 {
		return fmt.Errorf("--since cannot be negative, got %s", since)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeDB, err := openHistory(ctx, cfg.Sinks.Postgres)
	if err != nil {
		return err
	}
	defer closeDB()

	out := cmd.OutOrStdout()
	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		return printRunTokens(ctx, out, repo, runID)
	}

	var tr persistence.TimeRange
	if since > 0 {
		tr.From = time.Now().Add(-since)
	}
	return printHistory(ctx, out, repo, cfg.Preset, tr, limit)
}

func printHistory(ctx context.Context, out io.Writer, repo persistence.RunsRepo, preset string, tr persistence.TimeRange, limit int) error {
	runs, err := repo.List(ctx, preset, tr, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No stored runs of preset %s\n", preset)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tRUN AT\tMATCHED\tREPORTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.ID, r.RunAt.UTC().Format(time.RFC3339), r.Matched, r.Reported)
	}
	return w.Flush()
}

func printRunTokens(ctx context.Context, out io.Writer, repo persistence.RunsRepo, runID string) error {
	tokens, err := repo.Tokens(ctx, runID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		fmt.Fprintf(out, "Run %s reported no tokens\n", runID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tNETWORK\tFDV\tLIQUIDITY\tVOLUME 24H\tCHANGE 24H\tBUY/SELL\tAGE\tLINK")
	for _, t := range tokens {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.0f\t%.0f\t%.0f\t%.2f%%\t%.2f\t%.2fd\t%s\n",
			t.Rank, t.Name, t.Network, t.FDVUSD, t.LiquidityUSD, t.VolumeH24,
			t.PriceChangeH24, t.BuySellRatio, t.AgeDays, t.GeckoLink)
	}
	return w.Flush()
}
