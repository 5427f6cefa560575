package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"aemo-price-feed/internal/logging"
	"aemo-price-feed/internal/nem"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Regions  []string       `mapstructure:"regions"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Products ProductsConfig `mapstructure:"products"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// FeedConfig encapsulates NEMWEB connectivity.
type FeedConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	CacheSize      int           `mapstructure:"cache_size"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
	Burst          int           `mapstructure:"burst"`
}

// ProductConfig governs one feed's cadence and freshness window.
type ProductConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// ProductsConfig groups the per-product feed settings.
type ProductsConfig struct {
	Realtime    ProductConfig `mapstructure:"realtime"`
	FiveMinute  ProductConfig `mapstructure:"five_minute"`
	Predispatch ProductConfig `mapstructure:"predispatch"`
}

// EngineConfig tunes pipeline behaviour.
type EngineConfig struct {
	Jitter           time.Duration `mapstructure:"jitter"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ShutdownGrace    time.Duration `mapstructure:"shutdown_grace"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEMWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "nemwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("regions", []string{"NSW1"})

	v.SetDefault("feed.base_url", "https://nemweb.com.au")
	v.SetDefault("feed.user_agent", "nemwatch/1.0")
	v.SetDefault("feed.request_timeout", "30s")
	v.SetDefault("feed.retry_attempts", 3)
	v.SetDefault("feed.retry_backoff", "1s")
	v.SetDefault("feed.cache_size", 16)
	v.SetDefault("feed.requests_per_sec", 10.0)
	v.SetDefault("feed.burst", 5)

	v.SetDefault("products.realtime.interval", "5s")
	v.SetDefault("products.realtime.stale_after", "15m")
	v.SetDefault("products.five_minute.interval", "30s")
	v.SetDefault("products.five_minute.stale_after", "20m")
	v.SetDefault("products.predispatch.interval", "5m")
	v.SetDefault("products.predispatch.stale_after", "2h")

	v.SetDefault("engine.jitter", "1s")
	v.SetDefault("engine.failure_threshold", 3)
	v.SetDefault("engine.shutdown_grace", "10s")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")

	v.SetDefault("export.max_data_points", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Regions) == 0 {
		return fmt.Errorf("regions 必须至少配置一个区域")
	}
	if _, err := c.ParsedRegions(); err != nil {
		return err
	}
	for _, kind := range nem.Products() {
		if c.For(kind).Interval <= 0 {
			return fmt.Errorf("products.%s.interval must be greater than zero", kind)
		}
	}
	if c.Engine.FailureThreshold <= 0 {
		return fmt.Errorf("engine.failure_threshold must be greater than zero")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics are enabled")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ParsedRegions returns the configured regions in declaration order with
// duplicates removed.
func (c *Config) ParsedRegions() ([]nem.Region, error) {
	regions := make([]nem.Region, 0, len(c.Regions))
	seen := make(map[nem.Region]struct{}, len(c.Regions))
	for _, code := range c.Regions {
		region, err := nem.ParseRegion(code)
		if err != nil {
			return nil, fmt.Errorf("regions: %w", err)
		}
		if _, dup := seen[region]; dup {
			continue
		}
		seen[region] = struct{}{}
		regions = append(regions, region)
	}
	return regions, nil
}

// For returns the cadence settings for a product feed.
func (c *Config) For(kind nem.ProductKind) ProductConfig {
	switch kind {
	case nem.ProductRealtime:
		return c.Products.Realtime
	case nem.ProductFiveMinute:
		return c.Products.FiveMinute
	case nem.ProductPredispatch:
		return c.Products.Predispatch
	default:
		return ProductConfig{}
	}
}

// StaleWindows maps each product to its configured freshness window, falling
// back to the product default where unset.
func (c *Config) StaleWindows() map[nem.ProductKind]time.Duration {
	windows := make(map[nem.ProductKind]time.Duration, len(nem.Products()))
	for _, kind := range nem.Products() {
		window := c.For(kind).StaleAfter
		if window <= 0 {
			window = kind.DefaultStaleAfter()
		}
		windows[kind] = window
	}
	return windows
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
