package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/gemscan/internal/screen"
)

func TestRegistry_Counters(t *testing.T) {
	m := NewRegistry()

	m.ObservePage("network:solana", 100, 40)
	m.ObservePage("network:solana", 20, 3)
	m.RecordFault("network:base", "http_error")
	m.RecordDrop("fdv")
	m.RecordDrop("fdv")
	m.RecordDrop("age")
	m.RecordKept()
	m.RecordSinkFailure("redis")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesFetched.WithLabelValues("network:solana")))
	assert.Equal(t, 43.0, testutil.ToFloat64(m.PoolsFetched.WithLabelValues("network:solana")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFaults.WithLabelValues("network:base", "http_error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PoolsDropped.WithLabelValues("fdv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PoolsDropped.WithLabelValues("age")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PoolsKept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkFailures.WithLabelValues("redis")))
}

func TestRegistry_DropReasonsPreRegistered(t *testing.T) {
	m := NewRegistry()

	assert.Equal(t, len(screen.Reasons), testutil.CollectAndCount(m.PoolsDropped))
	for _, r := range screen.Reasons {
		assert.Zero(t, testutil.ToFloat64(m.PoolsDropped.WithLabelValues(string(r))), r)
	}

	path := filepath.Join(t.TempDir(), "gemscan.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `gemscan_pools_dropped_total{reason="no_created_at"} 0`)
	assert.Contains(t, string(data), `gemscan_pools_dropped_total{reason="buy_sell_ratio"} 0`)
}

func TestRegistry_RecordReport(t *testing.T) {
	m := NewRegistry()
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	m.RecordReport(7, at)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.ReportTokens))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.LastRun))
}

func TestRegistry_Summary(t *testing.T) {
	m := NewRegistry()
	m.RecordDrop("fdv")
	m.RecordDrop("volume")
	m.RecordDrop("volume")
	m.StartStep("fetch").Stop("ok")

	summary, err := m.Summary()
	require.NoError(t, err)

	assert.Equal(t, 3.0, summary["gemscan_pools_dropped_total"])
	assert.Equal(t, 1.0, summary["gemscan_step_duration_seconds"])
	assert.Equal(t, 0.0, summary["gemscan_pools_kept_total"])

	names := SummaryNames(summary)
	assert.True(t, len(names) >= 3)
	assert.IsIncreasing(t, names)
}

func TestRegistry_WriteTextfile(t *testing.T) {
	m := NewRegistry()
	m.RecordKept()
	m.RecordReport(1, time.Now())

	path := filepath.Join(t.TempDir(), "gemscan.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "gemscan_pools_kept_total 1")
	assert.Contains(t, text, "gemscan_report_tokens 1")

	expected := `
# HELP gemscan_pools_kept_total Pools passing every threshold before truncation
# TYPE gemscan_pools_kept_total counter
gemscan_pools_kept_total 1
`
	require.NoError(t, testutil.GatherAndCompare(m.registry, strings.NewReader(expected), "gemscan_pools_kept_total"))
}

func TestRegistry_WriteTextfileError(t *testing.T) {
	m := NewRegistry()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "gemscan.prom"))
	assert.Error(t, err)
}
