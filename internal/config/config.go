// Package config loads and validates miner configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Browser drivers.
const (
	DriverChrome = "chrome"
	DriverHTTP   = "http"
)

// Store providers.
const (
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
)

// Report providers.
const (
	ReportNone  = "none"
	ReportLocal = "local"
	ReportGCS   = "gcs"
)

// MaxCrawlDepth is the deepest supported crawl.
const MaxCrawlDepth = 3

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Miner   MinerConfig   `mapstructure:"miner"`
	Browser BrowserConfig `mapstructure:"browser"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Report  ReportConfig  `mapstructure:"report"`
}

// MinerConfig governs rounds, batches and lanes.
type MinerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Headless    bool          `mapstructure:"headless"`
	Retries     int           `mapstructure:"retries"`
	BatchSize   int           `mapstructure:"batch_size"`
	MaxDepth    int           `mapstructure:"max_depth"`
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
}

// BrowserConfig selects and tunes the page-fetch sessions.
type BrowserConfig struct {
	Driver     string        `mapstructure:"driver"`
	NavTimeout time.Duration `mapstructure:"nav_timeout"`
	UserAgent  string        `mapstructure:"user_agent"`
	ExecPath   string        `mapstructure:"exec_path"`
}

// StoreConfig selects the item store.
type StoreConfig struct {
	Provider     string   `mapstructure:"provider"`
	DSN          string   `mapstructure:"dsn"`
	Table        string   `mapstructure:"table"`
	MaxConns     int32    `mapstructure:"max_conns"`
	SeedWebsites []string `mapstructure:"seed_websites"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the metrics and stats server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ReportConfig controls where run reports are exported.
type ReportConfig struct {
	Provider      string `mapstructure:"provider"`
	Dir           string `mapstructure:"dir"`
	Bucket        string `mapstructure:"bucket"`
	Prefix        string `mapstructure:"prefix"`
	PubSubProject string `mapstructure:"pubsub_project"`
	PubSubTopic   string `mapstructure:"pubsub_topic"`
}

// Load builds a Config from disk, environment and flags. flags may be nil;
// only flags the user changed override other sources.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CONTACTMINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindFlags binds flags named after config keys with dashes, e.g.
// --max-depth binds miner.max_depth.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	keys := map[string]string{
		"concurrency":  "miner.concurrency",
		"headless":     "miner.headless",
		"retries":      "miner.retries",
		"batch-size":   "miner.batch_size",
		"max-depth":    "miner.max_depth",
		"item-timeout": "miner.item_timeout",
		"driver":       "browser.driver",
		"store":        "store.provider",
		"dsn":          "store.dsn",
		"table":        "store.table",
		"metrics":      "metrics.enabled",
		"metrics-port": "metrics.port",
		"report":       "report.provider",
	}
	for name, key := range keys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("miner.concurrency", 3)
	v.SetDefault("miner.headless", true)
	v.SetDefault("miner.retries", 3)
	v.SetDefault("miner.batch_size", 200)
	v.SetDefault("miner.max_depth", 2)
	v.SetDefault("miner.item_timeout", 3*time.Minute)
	v.SetDefault("browser.driver", DriverChrome)
	v.SetDefault("browser.nav_timeout", 30*time.Second)
	v.SetDefault("browser.user_agent", "contact-miner/0.1")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("store.provider", ProviderPostgres)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", "items")
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("store.seed_websites", []string{})
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("report.provider", ReportNone)
	v.SetDefault("report.dir", "")
	v.SetDefault("report.bucket", "")
	v.SetDefault("report.prefix", "runs")
	v.SetDefault("report.pubsub_project", "")
	v.SetDefault("report.pubsub_topic", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Miner.Concurrency <= 0 {
		return fmt.Errorf("miner.concurrency must be > 0")
	}
	if c.Miner.Retries < 0 {
		return fmt.Errorf("miner.retries must be >= 0")
	}
	if c.Miner.BatchSize <= 0 {
		return fmt.Errorf("miner.batch_size must be > 0")
	}
	if c.Miner.MaxDepth < 1 || c.Miner.MaxDepth > MaxCrawlDepth {
		return fmt.Errorf("miner.max_depth must be between 1 and %d", MaxCrawlDepth)
	}
	if c.Miner.ItemTimeout < 0 {
		return fmt.Errorf("miner.item_timeout must be >= 0")
	}
	switch c.Browser.Driver {
	case DriverChrome, DriverHTTP:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChrome, DriverHTTP, c.Browser.Driver)
	}
	if c.Browser.NavTimeout <= 0 {
		return fmt.Errorf("browser.nav_timeout must be > 0")
	}
	switch c.Store.Provider {
	case ProviderPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set when store.provider is %q", ProviderPostgres)
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("store.provider must be %q or %q, got %q", ProviderPostgres, ProviderMemory, c.Store.Provider)
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	switch c.Report.Provider {
	case ReportNone:
	case ReportLocal:
		if c.Report.Dir == "" {
			return fmt.Errorf("report.dir must be set when report.provider is %q", ReportLocal)
		}
	case ReportGCS:
		if c.Report.Bucket == "" {
			return fmt.Errorf("report.bucket must be set when report.provider is %q", ReportGCS)
		}
	default:
		return fmt.Errorf("report.provider must be %q, %q or %q, got %q", ReportNone, ReportLocal, ReportGCS, c.Report.Provider)
	}
	if c.Report.PubSubTopic != "" && c.Report.PubSubProject == "" {
		return fmt.Errorf("report.pubsub_project must be set when report.pubsub_topic is set")
	}
	return nil
}

// Rounds is the total number of rounds a run makes.
func (c Config) Rounds() int {
	return c.Miner.Retries + 1
}
