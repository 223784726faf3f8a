package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/childcare-cli/internal/collect"
	"github.com/sells-group/childcare-cli/internal/ledger"
)

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Browser  BrowserConfig  `yaml:"browser" mapstructure:"browser"`
	Collect  CollectConfig  `yaml:"collect" mapstructure:"collect"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Ledger   LedgerConfig   `yaml:"ledger" mapstructure:"ledger"`
	Match    MatchConfig    `yaml:"match" mapstructure:"match"`
	Merge    MergeConfig    `yaml:"merge" mapstructure:"merge"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// BrowserConfig configures the headless Chrome session.
type BrowserConfig struct {
	Headless          bool   `yaml:"headless" mapstructure:"headless"`
	ExecPath          string `yaml:"exec_path" mapstructure:"exec_path"`
	UserAgent         string `yaml:"user_agent" mapstructure:"user_agent"`
	ActionTimeoutSecs int    `yaml:"action_timeout_secs" mapstructure:"action_timeout_secs"`
}

// CollectConfig configures listing-page link collection.
type CollectConfig struct {
	ListingURL      string `yaml:"listing_url" mapstructure:"listing_url"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	Marker          string `yaml:"marker" mapstructure:"marker"`
	DetailPattern   string `yaml:"detail_pattern" mapstructure:"detail_pattern"`
	InitialWaitSecs int    `yaml:"initial_wait_secs" mapstructure:"initial_wait_secs"`
	PauseSecs       int    `yaml:"pause_secs" mapstructure:"pause_secs"`
	JiggleOffset    int64  `yaml:"jiggle_offset" mapstructure:"jiggle_offset"`
	JigglePauseSecs int    `yaml:"jiggle_pause_secs" mapstructure:"jiggle_pause_secs"`
	MaxRetries      int    `yaml:"max_retries" mapstructure:"max_retries"`
	MaxScrolls      int    `yaml:"max_scrolls" mapstructure:"max_scrolls"`
	LinksFile       string `yaml:"links_file" mapstructure:"links_file"`
}

// ScrapeConfig configures the detail-page scrape.
type ScrapeConfig struct {
	Output        string `yaml:"output" mapstructure:"output"`
	Concurrency   int    `yaml:"concurrency" mapstructure:"concurrency"`
	Fetcher       string `yaml:"fetcher" mapstructure:"fetcher"`
	SettleMillis  int    `yaml:"settle_millis" mapstructure:"settle_millis"`
	UseCache      bool   `yaml:"use_cache" mapstructure:"use_cache"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// FetchConfig configures the plain HTTP fetcher and retries.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// LedgerConfig locates the vendor payment ledger.
type LedgerConfig struct {
	Path    string         `yaml:"path" mapstructure:"path"`
	Columns ledger.Columns `yaml:"columns" mapstructure:"columns"`
}

// MatchConfig configures fuzzy vendor matching.
type MatchConfig struct {
	Threshold int `yaml:"threshold" mapstructure:"threshold"`
}

// MergeConfig configures the merged output.
type MergeConfig struct {
	Output string `yaml:"output" mapstructure:"output"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the local run and page cache database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig configures publishing to Postgres.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHILDCARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.action_timeout_secs", 60)

	v.SetDefault("collect.listing_url", collect.DefaultListingURL)
	v.SetDefault("collect.base_url", collect.DefaultBaseURL)
	v.SetDefault("collect.marker", collect.DefaultMarker)
	v.SetDefault("collect.detail_pattern", collect.DefaultDetailPattern)
	v.SetDefault("collect.initial_wait_secs", 5)
	v.SetDefault("collect.pause_secs", 3)
	v.SetDefault("collect.jiggle_offset", 1000)
	v.SetDefault("collect.jiggle_pause_secs", 1)
	v.SetDefault("collect.max_retries", 5)
	v.SetDefault("collect.max_scrolls", 0)
	v.SetDefault("collect.links_file", "childcare_links_full.txt")

	v.SetDefault("scrape.output", "childcare_data_final.jsonl")
	v.SetDefault("scrape.concurrency", 1)
	v.SetDefault("scrape.fetcher", "browser")
	v.SetDefault("scrape.settle_millis", 0)
	v.SetDefault("scrape.use_cache", false)
	v.SetDefault("scrape.cache_ttl_hours", 24)

	v.SetDefault("fetch.user_agent", "childcare-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("fetch.max_attempts", 3)

	cols := ledger.DefaultColumns()
	v.SetDefault("ledger.path", "VendorPayments2527_simplified.csv")
	v.SetDefault("ledger.columns.vendor", cols.Vendor)
	v.SetDefault("ledger.columns.amount", cols.Amount)
	v.SetDefault("ledger.columns.period", cols.Period)

	v.SetDefault("match.threshold", 85)

	v.SetDefault("merge.output", "MASTER_CHILDCARE_DB.json")
	v.SetDefault("merge.format", "")

	v.SetDefault("store.path", "childcare.db")

	v.SetDefault("postgres.database_url", "")
	v.SetDefault("postgres.max_conns", 4)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command depends on.
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "scrape":
		if c.Scrape.Output == "" {
			missing = append(missing, "scrape.output")
		}
		if c.Scrape.Concurrency < 1 {
			return eris.Errorf("config: scrape.concurrency must be at least 1, got %d", c.Scrape.Concurrency)
		}
		if c.Scrape.Fetcher != "browser" && c.Scrape.Fetcher != "http" {
			return eris.Errorf("config: scrape.fetcher must be browser or http, got %q", c.Scrape.Fetcher)
		}
	case "merge":
		if c.Ledger.Path == "" {
			missing = append(missing, "ledger.path")
		}
		if c.Merge.Output == "" {
			missing = append(missing, "merge.output")
		}
		if c.Match.Threshold < 0 || c.Match.Threshold > 100 {
			return eris.Errorf("config: match.threshold must be within 0..100, got %d", c.Match.Threshold)
		}
	case "publish":
		if c.Postgres.DatabaseURL == "" {
			missing = append(missing, "postgres.database_url")
		}
	case "serve":
		if c.Server.Port <= 0 {
			return eris.Errorf("config: server.port must be positive, got %d", c.Server.Port)
		}
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings for %s: %s", mode, strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
