package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/gemscan/internal/config"
	"github.com/sawpanic/gemscan/internal/geckoterminal"
	"github.com/sawpanic/gemscan/internal/metrics"
	"github.com/sawpanic/gemscan/internal/net/circuit"
	"github.com/sawpanic/gemscan/internal/net/client"
	"github.com/sawpanic/gemscan/internal/net/ratelimit"
	"github.com/sawpanic/gemscan/internal/persistence"
	"github.com/sawpanic/gemscan/internal/persistence/postgres"
	"github.com/sawpanic/gemscan/internal/report/redissink"
	"github.com/sawpanic/gemscan/internal/scan"
)

var (
	_ scan.PoolSource             = (*geckoterminal.Client)(nil)
	_ scan.Sink                   = (*redissink.Sink)(nil)
	_ scan.Sink                   = (*persistence.HistorySink)(nil)
	_ geckoterminal.PageObserver = (*metrics.Registry)(nil)
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	preset, _ := cmd.Flags().GetString("preset")
	return config.Load(path, preset)
}

// newGeckoClient builds a client paced by the free-tier limiter with one
// breaker per source. The breakers are returned for post-run reporting.
func newGeckoClient(cfg *config.Config, observer geckoterminal.PageObserver) (*geckoterminal.Client, *circuit.Manager) {
	limiter := ratelimit.NewLimiter(cfg.Provider.RPS, cfg.Provider.Burst)
	breakers := circuit.NewManager(circuit.Config{
		ConsecutiveFailures: cfg.Provider.Circuit.FailureThreshold,
		OpenTimeout:         cfg.Provider.Circuit.OpenTimeout,
	})

	httpClient := client.New(client.Config{
		Provider:    geckoterminal.ProviderName,
		UserAgent:   cfg.Provider.UserAgent,
		RateLimiter: limiter,
		Breakers:    breakers,
	}, cfg.Provider.RequestTimeout)

	gecko := geckoterminal.NewClient(geckoterminal.Options{
		BaseURL:    cfg.Provider.BaseURL,
		HTTPClient: httpClient,
		PageSize:   cfg.Scan.PageSize,
		MaxPages:   cfg.Scan.MaxPages,
		Observer:   observer,
	})
	return gecko, breakers
}

// openBreakers lists the sources whose breaker is not closed.
func openBreakers(breakers *circuit.Manager, sources []geckoterminal.Source) map[string]string {
	states := make(map[string]string)
	for _, src := range sources {
		if state := breakers.State(src.String()); state != "closed" {
			states[src.String()] = state
		}
	}
	return states
}

// openSinks connects the configured sinks. A sink that cannot be reached is
// skipped with a warning; the returned func closes the rest.
func openSinks(ctx context.Context, cfg *config.Config) ([]scan.Sink, func()) {
	var (
		sinks   []scan.Sink
		closers []func() error
	)

	if r := cfg.Sinks.Redis; r.Addr != "" {
		rdb, err := redissink.Dial(ctx, redissink.Options{Addr: r.Addr, Password: r.Password, DB: r.DB})
		if err != nil {
			log.Warn().Err(err).Str("sink", "redis").Msg("Sink unavailable, skipping")
		} else {
			sinks = append(sinks, redissink.New(rdb, cfg.RedisKey(), r.TTL))
			closers = append(closers, rdb.Close)
		}
	}

	if pg := cfg.Sinks.Postgres; pg.Enabled {
		repo, closeDB, err := openHistory(ctx, pg)
		if err != nil {
			log.Warn().Err(err).Str("sink", "postgres").Msg("Sink unavailable, skipping")
		} else {
			sinks = append(sinks, persistence.NewHistorySink(repo))
			closers = append(closers, closeDB)
		}
	}

	return sinks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Debug().Err(err).Msg("Sink close failed")
			}
		}
	}
}

// openHistory connects to the run history database and makes sure its
// tables exist.
func openHistory(ctx context.Context, pg config.PostgresConfig) (persistence.RunsRepo, func() error, error) {
	db, err := postgres.Connect(ctx, pg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewRunsRepo(db, pg.QueryTimeout), db.Close, nil
}

func describeSources(sources []geckoterminal.Source) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}

func describeMinAge(cfg config.Config) string {
	if cfg.Filters.MinAgeDays == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *cfg.Filters.MinAgeDays)
}
