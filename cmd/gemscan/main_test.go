package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/gemscan/internal/geckoterminal/geckofake"
	"github.com/sawpanic/gemscan/internal/report"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gemscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"":      zerolog.InfoLevel,
		"INFO":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	}
	for name, want := range tests {
		got, err := parseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestPresetsCommand(t *testing.T) {
	out, err := execute(t, "presets")
	require.NoError(t, err)

	assert.Contains(t, out, "category (default)")
	assert.Contains(t, out, "category:pump-swap/network:solana")
	assert.Contains(t, out, "network:solana/dex:pumpswap")
}

func TestScanCommand_AgainstFakeGeckoTerminal(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()

	now := time.Now().UTC()
	srv.CategoryPages("pump-swap", []geckofake.Pool{
		geckofake.Qualifying("GEM / SOL", "gem", 15, now),
		geckofake.Qualifying("FLAT / SOL", "flat", -3, now),
	})

	dir := t.TempDir()
	output := filepath.Join(dir, "data.json")
	textfile := filepath.Join(dir, "gemscan.prom")
	cfgPath := writeConfig(t, `
provider:
  base_url: `+srv.URL+`
  rps: 100
sinks:
  metrics:
    textfile: `+textfile+`
`)

	out, err := execute(t, "scan", "--config", cfgPath, "--output", output, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 gems (1 reported)")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var r report.Report
	require.NoError(t, json.Unmarshal(data, &r))
	require.Len(t, r.Tokens, 1)
	assert.Equal(t, "gem", r.Tokens[0].PoolAddress)

	prom, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "gemscan_report_tokens 1")
}

func TestScanCommand_SourceFaultStillSucceeds(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()
	srv.FailPage("category/pump-swap", 1, 503)

	output := filepath.Join(t.TempDir(), "data.json")
	cfgPath := writeConfig(t, "provider:\n  base_url: "+srv.URL+"\n")

	out, err := execute(t, "--config", cfgPath, "--output", output, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 0 gems")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tokens": []`)
}

func TestScanCommand_InvalidConfigFails(t *testing.T) {
	cfgPath := writeConfig(t, "filters:\n  min_fdv: 90000\n  max_fdv: 1000\n")

	_, err := execute(t, "scan", "--config", cfgPath, "--log-level", "error")
	assert.Error(t, err)

	_, err = execute(t, "scan", "--preset", "hourly", "--log-level", "error")
	assert.Error(t, err)
}

func TestCategoriesCommand(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()
	srv.Categories([2]string{"meme", "Meme"}, [2]string{"pump-swap", "Pump Swap"})

	cfgPath := writeConfig(t, "provider:\n  base_url: "+srv.URL+"\n  rps: 100\n  burst: 5\n")

	out, err := execute(t, "categories", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "pump-swap")
	assert.Contains(t, out, "Pump Swap")

	out, err = execute(t, "categories", "--config", cfgPath, "--find", "pump", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "pump-swap\n", out)

	_, err = execute(t, "categories", "--config", cfgPath, "--find", "nothing-like-this", "--log-level", "error")
	assert.ErrorContains(t, err, "no category matches")
}

func TestCategoriesCommand_FindSurfacesFault(t *testing.T) {
	srv := geckofake.New()
	defer srv.Close()
	srv.FailPage("categories", 1, http.StatusServiceUnavailable)

	cfgPath := writeConfig(t, "provider:\n  base_url: "+srv.URL+"\n  rps: 100\n  burst: 5\n")

	_, err := execute(t, "categories", "--config", cfgPath, "--find", "pump", "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list categories")
	assert.NotContains(t, err.Error(), "no category matches")
}
