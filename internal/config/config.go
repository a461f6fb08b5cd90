// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Artifact  ArtifactConfig  `mapstructure:"artifact"`
	History   HistoryConfig   `mapstructure:"history"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScraperConfig governs the scrape pipeline.
type ScraperConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	Country           string `mapstructure:"country"`
	UserAgent         string `mapstructure:"user_agent"`
	DelaySeconds      int    `mapstructure:"delay_seconds"`
	RunTimeoutSeconds int    `mapstructure:"run_timeout_seconds"`
	MaxProducts       int    `mapstructure:"max_products"`
	FetchAttempts     int    `mapstructure:"fetch_attempts"`
}

// FetcherConfig selects and tunes the fetch channel.
type FetcherConfig struct {
	Channel           string `mapstructure:"channel"`
	NavTimeoutSec     int    `mapstructure:"nav_timeout_seconds"`
	BootstrapWaitSec  int    `mapstructure:"bootstrap_wait_seconds"`
	HTTPTimeoutSec    int    `mapstructure:"http_timeout_seconds"`
	Headless          bool   `mapstructure:"headless"`
}

// CacheConfig tunes the result cache.
type CacheConfig struct {
	RefreshTimeoutSeconds int `mapstructure:"refresh_timeout_seconds"`
}

// ArtifactConfig sets where batch-run snapshots are written.
type ArtifactConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Path      string `mapstructure:"path"`
}

// HistoryConfig controls run history persistence.
type HistoryConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// PublisherConfig holds metadata for run-completion notifications.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ESIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.base_url", "https://www.bitrefill.com")
	v.SetDefault("scraper.country", "US")
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scraper.delay_seconds", 1)
	v.SetDefault("scraper.run_timeout_seconds", 600)
	v.SetDefault("scraper.max_products", 100)
	v.SetDefault("scraper.fetch_attempts", 2)
	v.SetDefault("fetcher.channel", "browserapi")
	v.SetDefault("fetcher.nav_timeout_seconds", 45)
	v.SetDefault("fetcher.bootstrap_wait_seconds", 5)
	v.SetDefault("fetcher.http_timeout_seconds", 15)
	v.SetDefault("fetcher.headless", true)
	v.SetDefault("cache.refresh_timeout_seconds", 600)
	v.SetDefault("artifact.provider", "local")
	v.SetDefault("artifact.base_dir", ".")
	v.SetDefault("artifact.path", "bitrefill_esims.json")
	v.SetDefault("history.provider", "memory")
	v.SetDefault("publisher.provider", "memory")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url must be set")
	}
	switch c.Fetcher.Channel {
	case "browserapi", "dom", "direct":
	default:
		return fmt.Errorf("fetcher.channel must be one of browserapi, dom, direct")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Artifact.Provider == "gcs" && c.Artifact.GCSBucket == "" {
		return fmt.Errorf("artifact.gcs_bucket must be set for the gcs provider")
	}
	if c.History.Provider == "postgres" && c.History.DSN == "" {
		return fmt.Errorf("history.dsn must be set for the postgres provider")
	}
	if c.Publisher.Provider == "pubsub" && (c.Publisher.ProjectID == "" || c.Publisher.Topic == "") {
		return fmt.Errorf("publisher.project_id and publisher.topic must be set for the pubsub provider")
	}
	return nil
}

// Delay converts the configured per-product delay into a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Scraper.DelaySeconds) * time.Second
}

// RunTimeout converts the configured run budget into a duration.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Scraper.RunTimeoutSeconds) * time.Second
}
