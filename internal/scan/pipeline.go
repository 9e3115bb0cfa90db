// Package scan runs one screening pass: every source is fetched in turn, the
// pools are normalized and screened, the survivors ranked, and the report
// written and published.
package scan

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/gemscan/internal/geckoterminal"
	"github.com/sawpanic/gemscan/internal/metrics"
	"github.com/sawpanic/gemscan/internal/net/client"
	"github.com/sawpanic/gemscan/internal/pools"
	"github.com/sawpanic/gemscan/internal/report"
	"github.com/sawpanic/gemscan/internal/screen"
)

// DropNoCreatedAt is the drop reason of pools without a usable creation time.
const DropNoCreatedAt = string(screen.ReasonNoCreatedAt)

// PoolSource lists the pools of a source. On a fault it returns the pools
// gathered before the fault together with the error.
type PoolSource interface {
	FetchPools(ctx context.Context, src geckoterminal.Source) ([]pools.RawPool, error)
}

// Sink receives the report after the file has been written. Sinks are best
// effort: their errors are logged and counted only.
type Sink interface {
	Name() string
	Publish(ctx context.Context, pub report.Publication) error
}

// Options configures a Pipeline.
type Options struct {
	Sources    []geckoterminal.Source
	Thresholds screen.Thresholds
	TopN       int
	OutputPath string
	Preset     string
	RunID      string
	Now        func() time.Time
	Metrics    *metrics.Registry
	Sinks      []Sink
}

// Result summarizes a completed run.
type Result struct {
	RunID    string
	RunAt    time.Time
	Fetched  int            // raw pools returned by all sources
	Matched  int            // survivors before truncation
	Dropped  map[string]int // by reason
	Faults   []error        // one per source that ended on a fault
	Report   report.Report
	Body     []byte
	SinkErrs map[string]error
}

// Pipeline drives a run over a PoolSource.
type Pipeline struct {
	source  PoolSource
	opts    Options
	metrics *metrics.Registry
}

// New creates a pipeline, filling unset options with defaults.
func New(source PoolSource, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TopN < 1 {
		opts.TopN = screen.DefaultTopN
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &Pipeline{source: source, opts: opts, metrics: m}
}

// fetched is the accumulator folded over the sources.
type fetched struct {
	pools  []pools.RawPool
	faults []error
}

// Run executes one pass. Source faults never fail the run; the only error
// returned is a failed report write.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	now := p.opts.Now().UTC()
	logger := log.With().Str("run_id", p.opts.RunID).Logger()
	ctx = logger.WithContext(ctx)

	timer := p.metrics.StartStep("fetch")
	acc := fetched{pools: []pools.RawPool{}}
	for _, src := range p.opts.Sources {
		acc = p.fetch(ctx, acc, src)
	}
	timer.Stop(stepResult(len(acc.faults) == 0))

	timer = p.metrics.StartStep("screen")
	results, dropped := p.screen(ctx, acc.pools, now)
	ranked := screen.Rank(results, p.opts.TopN)
	timer.Stop("ok")

	res := &Result{
		RunID:    p.opts.RunID,
		RunAt:    now,
		Fetched:  len(acc.pools),
		Matched:  len(results),
		Dropped:  dropped,
		Faults:   acc.faults,
		Report:   report.New(now, ranked),
		SinkErrs: map[string]error{},
	}

	timer = p.metrics.StartStep("write")
	body, err := report.Write(p.opts.OutputPath, res.Report)
	if err != nil {
		timer.Stop("error")
		logger.Error().Err(err).Str("output", p.opts.OutputPath).Msg("Report write failed")
		return res, err
	}
	timer.Stop("ok")
	res.Body = body
	p.metrics.RecordReport(len(ranked), now)

	p.publish(ctx, res)

	logger.Info().
		Str("preset", p.opts.Preset).
		Int("sources", len(p.opts.Sources)).
		Int("fetched", res.Fetched).
		Int("matched", res.Matched).
		Int("reported", len(ranked)).
		Int("faults", len(res.Faults)).
		Str("output", p.opts.OutputPath).
		Msg("Scan complete")

	return res, nil
}

// fetch adds one source's pools to acc. A fault is recorded and the partial
// pools kept.
func (p *Pipeline) fetch(ctx context.Context, acc fetched, src geckoterminal.Source) fetched {
	raw, err := p.source.FetchPools(ctx, src)
	acc.pools = append(acc.pools, raw...)
	if err != nil {
		p.metrics.RecordFault(src.String(), client.TypeOf(err))
		log.Ctx(ctx).Debug().Err(err).Str("source", src.String()).Int("partial", len(raw)).
			Msg("Source ended on a fault")
		acc.faults = append(acc.faults, err)
	}
	return acc
}

func (p *Pipeline) screen(ctx context.Context, raw []pools.RawPool, now time.Time) ([]screen.Result, map[string]int) {
	results := []screen.Result{}
	dropped := map[string]int{}

	drop := func(rp pools.RawPool, reason string) {
		dropped[reason]++
		p.metrics.RecordDrop(reason)
		log.Ctx(ctx).Debug().
			Str("pool", rp.Attributes.Address).
			Str("name", rp.Attributes.Name).
			Str("reason", reason).
			Msg("Pool dropped")
	}

	for _, rp := range raw {
		n, ok := pools.Normalize(rp)
		if !ok {
			drop(rp, DropNoCreatedAt)
			continue
		}
		if keep, reason := p.opts.Thresholds.Evaluate(n, now); !keep {
			drop(rp, string(reason))
			continue
		}
		p.metrics.RecordKept()
		results = append(results, screen.NewResult(n, now))
	}
	return results, dropped
}

func (p *Pipeline) publish(ctx context.Context, res *Result) {
	if len(p.opts.Sinks) == 0 {
		return
	}
	pub := report.Publication{
		RunID:   res.RunID,
		Preset:  p.opts.Preset,
		RunAt:   res.RunAt,
		Matched: res.Matched,
		Report:  res.Report,
		Body:    res.Body,
	}

	timer := p.metrics.StartStep("publish")
	failed := false
	for _, sink := range p.opts.Sinks {
		if err := sink.Publish(ctx, pub); err != nil {
			failed = true
			res.SinkErrs[sink.Name()] = err
			p.metrics.RecordSinkFailure(sink.Name())
			log.Ctx(ctx).Warn().Err(err).Str("sink", sink.Name()).Msg("Report publication failed")
			continue
		}
		log.Ctx(ctx).Debug().Str("sink", sink.Name()).Msg("Report published")
	}
	timer.Stop(stepResult(!failed))
}

func stepResult(ok bool) string {
	if ok {
		return "ok"
	}
	return "partial"
}
