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
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Export    ExportConfig    `mapstructure:"export"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Retention RetentionConfig `mapstructure:"retention"`
	API       APIConfig       `mapstructure:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig maps API keys to caller identities.
type AuthConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Keys    map[string]string `mapstructure:"keys"`
}

// RateLimitConfig sets the per-caller fixed window admission policy.
type RateLimitConfig struct {
	Limit         int    `mapstructure:"limit"`
	WindowSeconds int    `mapstructure:"window_seconds"`
	Backend       string `mapstructure:"backend"`
}

// Window returns the configured window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// CrawlerConfig governs the crawl worker pool and source layout.
type CrawlerConfig struct {
	Workers          int               `mapstructure:"workers"`
	UserAgent        string            `mapstructure:"user_agent"`
	PolitenessMs     int               `mapstructure:"politeness_ms"`
	BaseURL          string            `mapstructure:"base_url"`
	CategoryPaths    map[string]string `mapstructure:"category_paths"`
	MaxTeamsPerRun   int               `mapstructure:"max_teams_per_run"`
	DetailPagesOff   bool              `mapstructure:"detail_pages_off"`
	RequiredSelector string            `mapstructure:"required_selector"`
}

// PolitenessDelay returns the minimum spacing between fetches.
func (c CrawlerConfig) PolitenessDelay() time.Duration {
	return time.Duration(c.PolitenessMs) * time.Millisecond
}

// FetchConfig configures fetch timeout and retry behavior.
type FetchConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	BackoffBaseMs  int `mapstructure:"backoff_base_ms"`
	BackoffMaxMs   int `mapstructure:"backoff_max_ms"`
}

// Timeout returns the per-page fetch deadline.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffBase returns the initial retry backoff.
func (c FetchConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// BackoffMax returns the retry backoff ceiling.
func (c FetchConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	MaxParallel       int      `mapstructure:"max_parallel"`
	NavTimeoutSec     int      `mapstructure:"nav_timeout_seconds"`
	MinHTMLBytes      int      `mapstructure:"min_html_bytes"`
	ChallengeKeywords []string `mapstructure:"challenge_keywords"`
}

// NavTimeout returns the headless navigation deadline.
func (c HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// DBConfig controls access to Postgres; empty DSN selects the memory store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig points at the rate-limit counter backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ExportConfig selects where the canonical export artifact is written.
type ExportConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Path      string `mapstructure:"path"`
}

// PubSubConfig holds metadata for ingest outcome notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RetentionConfig controls the request log cleanup task.
type RetentionConfig struct {
	Days     int    `mapstructure:"days"`
	Schedule string `mapstructure:"schedule"`
}

// MaxAge returns the request log lifetime as a duration.
func (c RetentionConfig) MaxAge() time.Duration {
	return time.Duration(c.Days) * 24 * time.Hour
}

// APIConfig tunes read-endpoint behavior.
type APIConfig struct {
	AggregateAllCategories bool `mapstructure:"aggregate_all_categories"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RATINGS")
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
	v.SetDefault("auth.enabled", true)
	v.SetDefault("rate_limit.limit", 60)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.user_agent", "hoopindex-bot/0.1")
	v.SetDefault("crawler.politeness_ms", 750)
	v.SetDefault("crawler.category_paths", map[string]string{
		"current":  "/teams",
		"classic":  "/classic-teams",
		"all-time": "/all-time-teams",
	})
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.backoff_base_ms", 1000)
	v.SetDefault("fetch.backoff_max_ms", 10000)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.min_html_bytes", 2048)
	v.SetDefault("headless.challenge_keywords", []string{
		"checking your browser",
		"verify you are human",
		"just a moment",
	})
	v.SetDefault("export.backend", "local")
	v.SetDefault("export.local_dir", "exports")
	v.SetDefault("export.path", "players.json")
	v.SetDefault("retention.days", 30)
	v.SetDefault("retention.schedule", "0 3 * * *")
	v.SetDefault("api.aggregate_all_categories", false)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && len(c.Auth.Keys) == 0 {
		return fmt.Errorf("auth.keys must be set when auth is enabled")
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit.limit and rate_limit.window_seconds must be > 0")
	}
	if c.RateLimit.Backend != "memory" && c.RateLimit.Backend != "redis" {
		return fmt.Errorf("rate_limit.backend must be memory or redis")
	}
	if c.RateLimit.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must be set when rate_limit.backend is redis")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0")
	}
	if c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0")
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be > 0")
	}
	switch c.Export.Backend {
	case "memory", "local", "gcs":
	default:
		return fmt.Errorf("export.backend must be memory, local, or gcs")
	}
	if c.Export.Backend == "gcs" && c.Export.GCSBucket == "" {
		return fmt.Errorf("export.gcs_bucket must be set when export.backend is gcs")
	}
	return nil
}
