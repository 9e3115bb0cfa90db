package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	appName = "gemscan"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	setupLogging(os.Stderr, zerolog.InfoLevel)

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("gemscan failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Screen freshly created GeckoTerminal pools for low-cap gems",
		Version: version,
		Long: `gemscan lists newly created pools on GeckoTerminal, screens them against
FDV, volume, liquidity, price change, age and buy/sell thresholds, and writes
the top movers to a JSON report.

Running gemscan without a subcommand is the same as 'gemscan scan'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScan,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			levelName, _ := cmd.Flags().GetString("log-level")
			level, err := parseLevel(levelName)
			if err != nil {
				return err
			}
			setupLogging(os.Stderr, level)
			return nil
		},
	}
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("config", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().String("preset", "", "Preset: category, dex or network (default from config, else category)")
	addScanFlags(rootCmd.Flags())

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one screening pass and write the report",
		Long:  "Fetches every configured source in turn, screens and ranks the pools and replaces the report file",
		RunE:  runScan,
	}
	addScanFlags(scanCmd.Flags())

	categoriesCmd := &cobra.Command{
		Use:   "categories",
		Short: "List GeckoTerminal pool categories",
		Long:  "Lists the category catalogue, or resolves a display name to a category id with --find",
		RunE:  runCategories,
	}
	categoriesCmd.Flags().String("find", "", "Resolve a category display name (case-insensitive substring)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "Show the built-in presets",
		RunE:  runPresets,
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored runs from the Postgres history",
		Long:  "Lists the newest runs of the selected preset, or the ranked tokens of one run with --run",
		RunE:  runHistory,
	}
	historyCmd.Flags().Duration("since", 0, "Only runs newer than this (e.g. 24h); 0 lists all")
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs")
	historyCmd.Flags().String("run", "", "Show the tokens of this run id")

	latestCmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the report last published to Redis",
		RunE:  runLatest,
	}

	rootCmd.AddCommand(scanCmd, categoriesCmd, presetsCmd, historyCmd, latestCmd)
	return rootCmd
}

func addScanFlags(fs *pflag.FlagSet) {
	fs.String("output", "", "Report path (overrides config)")
}

func parseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("invalid log level %q (debug|info|warn|error)", name)
}

// setupLogging writes human-readable logs to a terminal and JSON lines
// everywhere else.
func setupLogging(out io.Writer, level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
