// Package metrics holds the Prometheus instruments of a scan run. A run is a
// short-lived batch, so the registry is written to a node-exporter textfile
// instead of being served.
package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/gemscan/internal/screen"
)

// Registry holds every gemscan metric on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	PagesFetched *prometheus.CounterVec
	PoolsFetched *prometheus.CounterVec
	FetchFaults  *prometheus.CounterVec
	PoolsDropped *prometheus.CounterVec
	PoolsKept    prometheus.Counter
	ReportTokens prometheus.Gauge
	SinkFailures *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	LastRun      prometheus.Gauge
}

// NewRegistry creates and registers the gemscan metrics.
func NewRegistry() *Registry {
	m := &Registry{
		registry: prometheus.NewRegistry(),

		PagesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemscan_pages_fetched_total",
				Help: "Listing pages fetched successfully by source",
			},
			[]string{"source"},
		),

		PoolsFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemscan_pools_fetched_total",
				Help: "Pools accepted by the source adapter by source",
			},
			[]string{"source"},
		),

		FetchFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemscan_fetch_faults_total",
				Help: "Faults that ended a source's pagination by error type",
			},
			[]string{"source", "type"},
		),

		PoolsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemscan_pools_dropped_total",
				Help: "Pools dropped by normalization or the screen by first failing reason",
			},
			[]string{"reason"},
		),

		PoolsKept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gemscan_pools_kept_total",
				Help: "Pools passing every threshold before truncation",
			},
		),

		ReportTokens: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gemscan_report_tokens",
				Help: "Tokens in the last written report",
			},
		),

		SinkFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gemscan_sink_failures_total",
				Help: "Report publications that failed by sink",
			},
			[]string{"sink"},
		),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gemscan_step_duration_seconds",
				Help:    "Duration of each run step in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"step", "result"},
		),

		LastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gemscan_last_run_timestamp_seconds",
				Help: "Unix time of the last completed run",
			},
		),
	}

	m.registry.MustRegister(
		m.PagesFetched,
		m.PoolsFetched,
		m.FetchFaults,
		m.PoolsDropped,
		m.PoolsKept,
		m.ReportTokens,
		m.SinkFailures,
		m.StepDuration,
		m.LastRun,
	)

	// every reason is exported from the first run, even at zero
	for _, r := range screen.Reasons {
		m.PoolsDropped.WithLabelValues(string(r))
	}
	return m
}

// ObservePage records a successfully fetched listing page.
func (m *Registry) ObservePage(source string, fetched, kept int) {
	m.PagesFetched.WithLabelValues(source).Inc()
	m.PoolsFetched.WithLabelValues(source).Add(float64(kept))
}

// RecordFault records the fault that ended a source.
func (m *Registry) RecordFault(source, errorType string) {
	m.FetchFaults.WithLabelValues(source, errorType).Inc()
}

// RecordDrop records a pool that did not make it into the ranking.
func (m *Registry) RecordDrop(reason string) {
	m.PoolsDropped.WithLabelValues(reason).Inc()
}

// RecordKept records a pool that passed the screen.
func (m *Registry) RecordKept() {
	m.PoolsKept.Inc()
}

// RecordSinkFailure records a failed publication.
func (m *Registry) RecordSinkFailure(sink string) {
	m.SinkFailures.WithLabelValues(sink).Inc()
}

// RecordReport records the written report.
func (m *Registry) RecordReport(tokens int, at time.Time) {
	m.ReportTokens.Set(float64(tokens))
	m.LastRun.Set(float64(at.Unix()))
}

// StepTimer tracks execution time for a run step
type StepTimer struct {
	metrics *Registry
	step    string
	start   time.Time
}

// StartStep begins timing a run step
func (m *Registry) StartStep(step string) *StepTimer {
	return &StepTimer{
		metrics: m,
		step:    step,
		start:   time.Now(),
	}
}

// Stop completes the step timing and records the metric
func (st *StepTimer) Stop(result string) {
	duration := time.Since(st.start)
	st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(duration.Seconds())

	log.Debug().
		Str("step", st.step).
		Str("result", result).
		Dur("duration", duration).
		Msg("Run step completed")
}

// WriteTextfile writes the registry in the text exposition format for the
// node-exporter textfile collector. The file is replaced atomically.
func (m *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Summary totals every counter and gauge family across its label sets.
// Histograms contribute their sample count.
func (m *Registry) Summary() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	totals := make(map[string]float64, len(families))
	for _, family := range families {
		var total float64
		for _, metric := range family.GetMetric() {
			total += value(family.GetType(), metric)
		}
		totals[family.GetName()] = total
	}
	return totals, nil
}

func value(typ dto.MetricType, metric *dto.Metric) float64 {
	switch typ {
	case dto.MetricType_COUNTER:
		return metric.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return metric.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		return float64(metric.GetHistogram().GetSampleCount())
	}
	return 0
}

// SummaryNames lists the names in a summary in sorted order.
func SummaryNames(summary map[string]float64) []string {
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
