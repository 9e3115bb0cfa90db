// Package config loads the scan configuration: a named preset, optionally
// overlaid by a YAML file, then by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/gemscan/internal/geckoterminal"
	"github.com/sawpanic/gemscan/internal/net/client"
	"github.com/sawpanic/gemscan/internal/screen"
)

// Preset names.
const (
	PresetNetwork  = "network"
	PresetCategory = "category"
	PresetDex      = "dex"

	DefaultPreset = PresetCategory
)

// ErrUnknownPreset is returned for a preset name with no definition.
var ErrUnknownPreset = errors.New("unknown preset")

// Config is the complete run configuration.
type Config struct {
	Preset   string            `yaml:"preset"`
	Provider ProviderConfig    `yaml:"provider"`
	Scan     ScanConfig        `yaml:"scan"`
	Filters  screen.Thresholds `yaml:"filters"`
	Sinks    SinksConfig       `yaml:"sinks"`
}

// ProviderConfig configures the GeckoTerminal client.
type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // per request, no retry
	RPS            float64       `yaml:"rps"`             // free tier allows ~30 rpm
	Burst          int           `yaml:"burst"`
	UserAgent      string        `yaml:"user_agent"`
	Circuit        CircuitConfig `yaml:"circuit"`
}

// CircuitConfig configures the per-source circuit breakers.
type CircuitConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// ScanConfig selects the sources and shapes the output.
type ScanConfig struct {
	Networks       []string `yaml:"networks"`
	Category       string   `yaml:"category"`
	CategoryLookup string   `yaml:"category_lookup"` // display name resolved to an id, Category is the fallback
	Dex            string   `yaml:"dex"`
	MaxPages       int      `yaml:"max_pages"`
	PageSize       int      `yaml:"page_size"`
	TopN           int      `yaml:"top_n"`
	Output         string   `yaml:"output"`
}

// SinksConfig configures the optional report consumers.
type SinksConfig struct {
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// RedisConfig enables the report cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"` // defaults to gemscan:report:<preset>
	TTL      time.Duration `yaml:"ttl"` // 0 keeps the key without expiry
}

// PostgresConfig enables the run history.
type PostgresConfig struct {
	Enabled      bool          `yaml:"enabled"`
	DSN          string        `yaml:"dsn"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// MetricsConfig names the node-exporter textfile to write after a run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

func minAge(days float64) *float64 {
	return &days
}

// Default returns the default preset.
func Default() Config {
	return Config{
		Preset: DefaultPreset,
		Provider: ProviderConfig{
			BaseURL:        geckoterminal.DefaultBaseURL,
			RequestTimeout: 15 * time.Second,
			RPS:            0.5,
			Burst:          1,
			UserAgent:      client.DefaultUserAgent,
			Circuit: CircuitConfig{
				FailureThreshold: 5,
				OpenTimeout:      time.Minute,
			},
		},
		Scan: ScanConfig{
			Networks: []string{"solana"},
			Category: "pump-swap",
			MaxPages: 1,
			PageSize: geckoterminal.DefaultPageSize,
			TopN:     screen.DefaultTopN,
			Output:   "data.json",
		},
		Filters: screen.Thresholds{
			MinFDV:            1000,
			MaxFDV:            50000,
			MinVolumeH24:      1000,
			MinLiquidity:      5000,
			MinPriceChangeH24: 0,
			MaxAgeDays:        3,
			BuySellRatio:      1.1,
		},
		Sinks: SinksConfig{
			Postgres: PostgresConfig{QueryTimeout: 10 * time.Second},
		},
	}
}

var presets = map[string]func(*Config){
	PresetNetwork: func(c *Config) {
		c.Scan.Category = ""
		c.Scan.Dex = ""
	},
	PresetCategory: func(c *Config) {},
	PresetDex: func(c *Config) {
		c.Scan.Category = ""
		c.Scan.Dex = "pumpswap"
		c.Scan.MaxPages = 5
		c.Filters.MinAgeDays = minAge(0.5)
	},
}

// Presets lists the preset names in sorted order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns the named preset.
func Preset(name string) (Config, error) {
	apply, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownPreset, name, strings.Join(Presets(), ", "))
	}
	cfg := Default()
	cfg.Preset = name
	apply(&cfg)
	return cfg, nil
}

// Load builds the configuration for a run. The preset argument wins over the
// file's preset key; an empty path skips the file. Environment overrides are
// applied last, then the result is validated.
func Load(path, preset string) (*Config, error) {
	return load(path, preset, os.LookupEnv)
}

func load(path, preset string, lookup func(string) (string, bool)) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if preset == "" {
		var head struct {
			Preset string `yaml:"preset"`
		}
		if err := yaml.Unmarshal(data, &head); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		preset = head.Preset
	}
	if preset == "" {
		preset = DefaultPreset
	}

	cfg, err := Preset(preset)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.Preset = preset

	applyEnv(&cfg, lookup)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate ensures the configuration can drive a run.
func (c *Config) Validate() error {
	if err := c.Filters.Validate(); err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	if err := c.Scan.Validate(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if err := c.Provider.Validate(); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := c.Sinks.Validate(); err != nil {
		return fmt.Errorf("sinks: %w", err)
	}
	return nil
}

// Validate checks the source selection and output shape.
func (s *ScanConfig) Validate() error {
	if len(s.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}
	for i, n := range s.Networks {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("networks[%d] cannot be empty", i)
		}
	}
	if s.MaxPages < 1 {
		return fmt.Errorf("max_pages must be >= 1, got %d", s.MaxPages)
	}
	if s.PageSize < 1 {
		return fmt.Errorf("page_size must be >= 1, got %d", s.PageSize)
	}
	if s.TopN < 1 {
		return fmt.Errorf("top_n must be >= 1, got %d", s.TopN)
	}
	if s.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}
	return nil
}

// Validate checks the client settings.
func (p *ProviderConfig) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if p.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", p.RequestTimeout)
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %g", p.RPS)
	}
	if p.Burst < 1 {
		return fmt.Errorf("burst must be >= 1, got %d", p.Burst)
	}
	if p.Circuit.OpenTimeout < 0 {
		return fmt.Errorf("circuit open_timeout cannot be negative")
	}
	return nil
}

// Validate checks the optional sinks.
func (s *SinksConfig) Validate() error {
	if s.Postgres.Enabled && s.Postgres.DSN == "" {
		return fmt.Errorf("postgres dsn is required when postgres is enabled")
	}
	if s.Postgres.Enabled && s.Postgres.QueryTimeout <= 0 {
		return fmt.Errorf("postgres query_timeout must be positive")
	}
	if s.Redis.TTL < 0 {
		return fmt.Errorf("redis ttl cannot be negative")
	}
	return nil
}

// Sources expands the scan selection into one source per network.
func (c *Config) Sources() []geckoterminal.Source {
	sources := make([]geckoterminal.Source, 0, len(c.Scan.Networks))
	for _, n := range c.Scan.Networks {
		sources = append(sources, geckoterminal.Source{
			Network:  strings.TrimSpace(n),
			Category: c.Scan.Category,
			Dex:      c.Scan.Dex,
		})
	}
	return sources
}

// RedisKey is the key the report is published under.
func (c *Config) RedisKey() string {
	if c.Sinks.Redis.Key != "" {
		return c.Sinks.Redis.Key
	}
	return "gemscan:report:" + c.Preset
}
