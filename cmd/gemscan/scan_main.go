package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/gemscan/internal/metrics"
	"github.com/sawpanic/gemscan/internal/scan"
)

// runScan runs one screening pass. Source and sink faults are logged only;
// the command fails for bad configuration or a report that could not be written.
func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		cfg.Scan.Output = output
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()

	registry := metrics.NewRegistry()
	gecko, breakers := newGeckoClient(cfg, registry)

	if name := cfg.Scan.CategoryLookup; name != "" {
		cfg.Scan.Category = gecko.FindCategory(ctx, name, cfg.Scan.Category)
	}
	sources := cfg.Sources()

	logger.Info().
		Str("preset", cfg.Preset).
		Str("sources", describeSources(sources)).
		Int("max_pages", cfg.Scan.MaxPages).
		Int("top_n", cfg.Scan.TopN).
		Str("output", cfg.Scan.Output).
		Msg("Starting scan")

	sinks, closeSinks := openSinks(ctx, cfg)
	defer closeSinks()

	pipeline := scan.New(gecko, scan.Options{
		Sources:    sources,
		Thresholds: cfg.Filters,
		TopN:       cfg.Scan.TopN,
		OutputPath: cfg.Scan.Output,
		Preset:     cfg.Preset,
		RunID:      runID,
		Metrics:    registry,
		Sinks:      sinks,
	})

	res, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	for src, state := range openBreakers(breakers, sources) {
		logger.Warn().Str("source", src).Str("breaker", state).Msg("Source breaker not closed after run")
	}

	if path := cfg.Sinks.Metrics.Textfile; path != "" {
		if err := registry.WriteTextfile(path); err != nil {
			logger.Warn().Err(err).Msg("Metrics textfile not written")
		}
	}
	if summary, err := registry.Summary(); err == nil {
		ev := logger.Debug()
		for _, name := range metrics.SummaryNames(summary) {
			ev = ev.Float64(name, summary[name])
		}
		ev.Msg("Run metrics")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Found %d gems (%d reported) from %s -> %s\n",
		res.Matched, len(res.Report.Tokens), describeSources(sources), cfg.Scan.Output)
	return nil
}
