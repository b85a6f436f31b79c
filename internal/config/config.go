// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	collyfetcher "github.com/JakeFAU/sitecrawl/internal/fetcher/colly"
)

// EnvPrefix is prepended to environment overrides, e.g. CRAWLER_CRAWLER_WORKERS.
const EnvPrefix = "CRAWLER"

// Storage backends for report artifacts.
const (
	BackendNone  = "none"
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// Config captures every knob of the crawl command.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Report   ReportConfig   `mapstructure:"report"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig holds the crawl budget and fetch settings.
type CrawlerConfig struct {
	Workers      int           `mapstructure:"workers"`
	Delay        time.Duration `mapstructure:"delay"`
	MaxPages     int           `mapstructure:"max_pages"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	IdlePoll     time.Duration `mapstructure:"idle_poll"`
	UserAgent    string        `mapstructure:"user_agent"`
	// MaxRPS is a whole-session request ceiling. Zero disables it.
	MaxRPS float64 `mapstructure:"max_rps"`
	Burst  int     `mapstructure:"burst"`
}

// Budget converts the crawler section into a crawl budget.
func (c CrawlerConfig) Budget() crawler.Budget {
	return crawler.Budget{MaxPages: c.MaxPages, Delay: c.Delay, Workers: c.Workers}
}

// HeadlessConfig configures the rendering fetcher and its selection mode.
type HeadlessConfig struct {
	// Mode is off, auto, or always.
	Mode               string        `mapstructure:"mode"`
	MaxParallel        int           `mapstructure:"max_parallel"`
	NavTimeout         time.Duration `mapstructure:"nav_timeout"`
	Settle             time.Duration `mapstructure:"settle"`
	PromotionThreshold int           `mapstructure:"promotion_threshold"`
	MinWords           int           `mapstructure:"min_words"`
}

// ReportConfig controls local report output.
type ReportConfig struct {
	Dir     string   `mapstructure:"dir"`
	Formats []string `mapstructure:"formats"`
}

// StorageConfig selects where report artifacts are uploaded.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PostgresConfig enables the Postgres page store when DSN is set.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SQLiteConfig enables the SQLite page store when Path is set.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig enables the Redis status store when Addr is set.
type RedisConfig struct {
	Addr   string        `mapstructure:"addr"`
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// PubSubConfig enables completion notices when ProjectID is set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig exposes the status server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// NewViper returns a Viper instance with defaults and environment binding.
// Callers bind flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads path (when set) into v and decodes the result.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.workers", crawler.DefaultWorkers)
	v.SetDefault("crawler.delay", "100ms")
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("crawler.fetch_timeout", "10s")
	v.SetDefault("crawler.idle_poll", "1s")
	v.SetDefault("crawler.user_agent", collyfetcher.DefaultUserAgent)
	v.SetDefault("crawler.max_rps", 0)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("headless.mode", "off")
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout", "30s")
	v.SetDefault("headless.settle", "500ms")
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("headless.min_words", 20)
	v.SetDefault("report.dir", "results")
	v.SetDefault("report.formats", []string{"csv", "text", "markdown"})
	v.SetDefault("storage.backend", BackendNone)
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("postgres.table", "crawl_pages")
	v.SetDefault("redis.prefix", "sitecrawl:session:")
	v.SetDefault("redis.ttl", "168h")
	v.SetDefault("pubsub.topic", "crawl-completed")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Crawler.Workers <= 0 {
		errs = append(errs, errors.New("crawler.workers must be > 0"))
	}
	if c.Crawler.Delay < 0 {
		errs = append(errs, errors.New("crawler.delay must be >= 0"))
	}
	if c.Crawler.MaxPages < 0 {
		errs = append(errs, errors.New("crawler.max_pages must be >= 0"))
	}
	if c.Crawler.FetchTimeout <= 0 {
		errs = append(errs, errors.New("crawler.fetch_timeout must be > 0"))
	}
	if c.Crawler.MaxRPS < 0 {
		errs = append(errs, errors.New("crawler.max_rps must be >= 0"))
	}
	mode := strings.ToLower(c.Headless.Mode)
	switch mode {
	case "off", "auto", "always":
	default:
		errs = append(errs, fmt.Errorf("headless.mode must be off, auto, or always, got %q", c.Headless.Mode))
	}
	if mode != "off" && c.Headless.MaxParallel <= 0 {
		errs = append(errs, errors.New("headless.max_parallel must be > 0 when headless is enabled"))
	}
	switch c.Storage.Backend {
	case BackendNone, "":
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir is required for the local backend"))
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			errs = append(errs, errors.New("storage.gcs_bucket is required for the gcs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be none, local, or gcs, got %q", c.Storage.Backend))
	}
	if c.PubSub.ProjectID != "" && c.PubSub.Topic == "" {
		errs = append(errs, errors.New("pubsub.topic is required when pubsub.project_id is set"))
	}
	return errors.Join(errs...)
}
