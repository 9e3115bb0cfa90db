package persistence

import (
	"context"
	"fmt"

	"github.com/sawpanic/gemscan/internal/report"
)

// HistorySink publishes reports into a RunsRepo.
type HistorySink struct {
	repo RunsRepo
}

// NewHistorySink wraps repo.
func NewHistorySink(repo RunsRepo) *HistorySink {
	return &HistorySink{repo: repo}
}

// Name implements the scan sink interface.
func (s *HistorySink) Name() string {
	return "postgres"
}

// Publish stores the run behind pub.
func (s *HistorySink) Publish(ctx context.Context, pub report.Publication) error {
	run, tokens := FromPublication(pub)
	if err := s.repo.Insert(ctx, run, tokens); err != nil {
		return fmt.Errorf("store run %s: %w", pub.RunID, err)
	}
	return nil
}

// FromPublication converts a publication into a run row and its ranked tokens.
func FromPublication(pub report.Publication) (Run, []Token) {
	run := Run{
		ID:       pub.RunID,
		Preset:   pub.Preset,
		RunAt:    pub.RunAt.UTC(),
		Matched:  pub.Matched,
		Reported: len(pub.Report.Tokens),
		Report:   pub.Body,
	}

	tokens := make([]Token, 0, len(pub.Report.Tokens))
	for i, t := range pub.Report.Tokens {
		tokens = append(tokens, Token{
			RunID:          pub.RunID,
			Rank:           i + 1,
			Name:           t.Name,
			Network:        t.Network,
			PoolAddress:    t.PoolAddress,
			FDVUSD:         t.FDVUSD,
			LiquidityUSD:   t.LiquidityUSD,
			VolumeH24:      t.VolumeH24,
			PriceChangeH24: t.PriceChangeH24,
			BuySellRatio:   t.BuySellRatio,
			AgeDays:        t.AgeDays,
			GeckoLink:      t.GeckoLink,
		})
	}
	return run, tokens
}
