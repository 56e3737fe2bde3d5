// Package config loads the degenrun configuration from YAML with environment
// overrides for secrets and connection strings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5m" or "4h" decode
// directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full agent configuration. Cadences and thresholds are policy,
// not constants: everything here is adjustable without code changes.
type Config struct {
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Validation ValidationConfig `yaml:"validation"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Rebalance  RebalanceConfig  `yaml:"rebalance"`
	Cache      CacheConfig      `yaml:"cache"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Venue      VenueConfig      `yaml:"venue"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// SchedulerConfig holds recurring task cadences.
type SchedulerConfig struct {
	MonitorInterval     Duration `yaml:"monitor_interval"`     // position monitoring
	OptimizeInterval    Duration `yaml:"optimize_interval"`    // parameter optimization
	PerformanceInterval Duration `yaml:"performance_interval"` // performance analysis
}

// ScoringConfig holds the candidate filter policy.
type ScoringConfig struct {
	MinScore     float64 `yaml:"min_score"`
	MinLiquidity float64 `yaml:"min_liquidity"`
	MinVolume24h float64 `yaml:"min_volume_24h"`
}

// ValidationConfig holds the pre-spend safety floors. These are independent
// of the scoring filter so a config change to one never silently loosens the
// other.
type ValidationConfig struct {
	MinLiquidity float64 `yaml:"min_liquidity"`
	MinVolume24h float64 `yaml:"min_volume_24h"`
}

// ExecutionConfig holds sizing and slippage policy.
type ExecutionConfig struct {
	MaxPositionPct  float64 `yaml:"max_position_pct"`  // fraction of wallet balance per buy
	MinTradeAmount  float64 `yaml:"min_trade_amount"`  // below this, reject "amount too small"
	BaseSlippageBps int     `yaml:"base_slippage_bps"`
	MaxSlippageBps  int     `yaml:"max_slippage_bps"`
	SizeImpactCoeff float64 `yaml:"size_impact_coeff"` // bps per unit of size/liquidity ratio
	VolImpactCoeff  float64 `yaml:"vol_impact_coeff"`  // bps per unit of volatility
}

// RebalanceConfig bounds the close/open retry loops.
type RebalanceConfig struct {
	DriftThresholdBps int      `yaml:"drift_threshold_bps"`
	DefaultWidthBps   int      `yaml:"default_width_bps"`
	MaxAttempts       int      `yaml:"max_attempts"`
	BackoffBase       Duration `yaml:"backoff_base"`
	BackoffCeiling    Duration `yaml:"backoff_ceiling"`
}

// CacheConfig controls the market-data cache.
type CacheConfig struct {
	TTL        Duration `yaml:"ttl"`
	MaxEntries int64    `yaml:"max_entries"`
}

// ProvidersConfig configures the external data feeds.
type ProvidersConfig struct {
	TrendingURL string  `yaml:"trending_url"`
	SocialURL   string  `yaml:"social_url"`
	RankingURL  string  `yaml:"ranking_url"`
	MarketURL   string  `yaml:"market_url"`
	QuoteURL    string  `yaml:"quote_url"`
	RPS         float64 `yaml:"rps"`
	Burst       int     `yaml:"burst"`
}

// VenueConfig configures the execution collaborator. APIKey is required at
// startup.
type VenueConfig struct {
	BaseURL string `yaml:"base_url"`
	WSURL   string `yaml:"ws_url"`
	APIKey  string `yaml:"api_key"`
}

// RedisConfig configures the KV store and market-data cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig configures the task and slippage repositories.
type PostgresConfig struct {
	DSN     string   `yaml:"dsn"`
	Timeout Duration `yaml:"timeout"`
}

// HTTPConfig configures the read-only metrics/health server.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates required fields. A missing venue API key is a
// fatal configuration error surfaced immediately.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MonitorInterval:     Duration(5 * time.Minute),
			OptimizeInterval:    Duration(4 * time.Hour),
			PerformanceInterval: Duration(24 * time.Hour),
		},
		Scoring: ScoringConfig{
			MinScore:     60,
			MinLiquidity: 50_000,
			MinVolume24h: 100_000,
		},
		Validation: ValidationConfig{
			MinLiquidity: 50_000,
			MinVolume24h: 100_000,
		},
		Execution: ExecutionConfig{
			MaxPositionPct:  0.1,
			MinTradeAmount:  0.001,
			BaseSlippageBps: 50,
			MaxSlippageBps:  500,
			SizeImpactCoeff: 2000,
			VolImpactCoeff:  1000,
		},
		Rebalance: RebalanceConfig{
			DriftThresholdBps: 300,
			DefaultWidthBps:   400,
			MaxAttempts:       5,
			BackoffBase:       Duration(2 * time.Second),
			BackoffCeiling:    Duration(30 * time.Second),
		},
		Cache: CacheConfig{
			TTL:        Duration(10 * time.Minute),
			MaxEntries: 10_000,
		},
		Providers: ProvidersConfig{
			RPS:   5,
			Burst: 10,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Postgres: PostgresConfig{
			Timeout: Duration(5 * time.Second),
		},
		HTTP: HTTPConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DEGENRUN_VENUE_API_KEY"); v != "" {
		cfg.Venue.APIKey = v
	}
	if v := os.Getenv("DEGENRUN_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DEGENRUN_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DEGENRUN_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
}

func (c *Config) validate() error {
	if c.Venue.APIKey == "" {
		return fmt.Errorf("venue api key is required (set venue.api_key or DEGENRUN_VENUE_API_KEY)")
	}
	if c.Scheduler.MonitorInterval <= 0 {
		return fmt.Errorf("scheduler monitor_interval must be positive")
	}
	if c.Execution.MaxSlippageBps < c.Execution.BaseSlippageBps {
		return fmt.Errorf("max_slippage_bps %d below base_slippage_bps %d",
			c.Execution.MaxSlippageBps, c.Execution.BaseSlippageBps)
	}
	if c.Rebalance.MaxAttempts <= 0 {
		return fmt.Errorf("rebalance max_attempts must be positive")
	}
	return nil
}
