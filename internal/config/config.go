// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// IDPlaceholder is substituted with the catalog ID in URL paths.
const IDPlaceholder = "{id}"

// Checkpoint backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Extract    ExtractConfig    `mapstructure:"extract"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Export     ExportConfig     `mapstructure:"export"`
	Progress   ProgressConfig   `mapstructure:"progress"`
}

// LoggingConfig toggles zap development features and the optional rotated
// log file.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

// ProgressConfig controls interactive progress output.
type ProgressConfig struct {
	// Bar renders a terminal progress bar on stderr.
	Bar bool `mapstructure:"bar"`
}

// CatalogConfig describes the remote catalog being harvested.
type CatalogConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	DetailPath   string `mapstructure:"detail_path"`
	CommentsPath string `mapstructure:"comments_path"`
	// TotalItems is the approximate catalog size used for progress estimates.
	TotalItems uint64 `mapstructure:"total_items"`
}

// HTTPConfig configures the transport.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// CrawlConfig governs the crawl loop.
type CrawlConfig struct {
	// Floor is the highest ID never requested; the cursor starts just above it.
	Floor uint64 `mapstructure:"floor"`
	// StopAfter is the last ID to visit. Zero runs until cancelled.
	StopAfter  uint64        `mapstructure:"stop_after"`
	Interval   time.Duration `mapstructure:"interval"`
	FlushEvery int           `mapstructure:"flush_every"`
}

// CheckpointConfig selects and configures the chunk backend.
type CheckpointConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	ChunkSize uint64 `mapstructure:"chunk_size"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// ExtractConfig tunes the record extractor.
type ExtractConfig struct {
	NotFoundMarkers []string `mapstructure:"not_found_markers"`
}

// MetricsConfig controls the Prometheus textfile output.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// ExportConfig controls the Postgres export.
type ExportConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", false)
	v.SetDefault("catalog.base_url", "https://1337x.torrentbay.to")
	v.SetDefault("catalog.detail_path", "/torrent/{id}/harvest/")
	v.SetDefault("catalog.comments_path", "/comments.php?torrentid={id}")
	v.SetDefault("catalog.total_items", 6200000)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "catalog-harvester/1.0")
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("crawl.floor", 99)
	v.SetDefault("crawl.stop_after", 0)
	v.SetDefault("crawl.interval", "1s")
	v.SetDefault("crawl.flush_every", 60)
	v.SetDefault("checkpoint.backend", BackendLocal)
	v.SetDefault("checkpoint.dir", "data")
	v.SetDefault("checkpoint.chunk_size", 1000)
	v.SetDefault("checkpoint.prefix", "chunks")
	v.SetDefault("extract.not_found_markers", []string{
		"Bad Torrent ID.",
		"Bad torrent ID.",
		"This torrent is pending moderation",
	})
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("export.table", "catalog_items")
	v.SetDefault("progress.bar", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	base, err := url.Parse(c.Catalog.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("catalog.base_url must be an absolute URL")
	}
	if !strings.Contains(c.Catalog.DetailPath, IDPlaceholder) {
		return fmt.Errorf("catalog.detail_path must contain %s", IDPlaceholder)
	}
	if !strings.Contains(c.Catalog.CommentsPath, IDPlaceholder) {
		return fmt.Errorf("catalog.comments_path must contain %s", IDPlaceholder)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("logging.max_size_mb must be > 0 when logging.file is set")
	}
	if c.Crawl.Interval < 0 {
		return fmt.Errorf("crawl.interval must be >= 0")
	}
	if c.Crawl.FlushEvery <= 0 {
		return fmt.Errorf("crawl.flush_every must be > 0")
	}
	if c.Checkpoint.ChunkSize == 0 {
		return fmt.Errorf("checkpoint.chunk_size must be > 0")
	}
	switch c.Checkpoint.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Checkpoint.Dir) == "" {
			return fmt.Errorf("checkpoint.dir is required for the local backend")
		}
	case BackendGCS:
		if c.Checkpoint.GCSBucket == "" {
			return fmt.Errorf("checkpoint.gcs_bucket is required for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown checkpoint.backend %q", c.Checkpoint.Backend)
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// DetailURL returns the detail page URL for id.
func (c CatalogConfig) DetailURL(id uint64) string {
	return c.expand(c.DetailPath, id)
}

// CommentsURL returns the comment feed URL for id.
func (c CatalogConfig) CommentsURL(id uint64) string {
	return c.expand(c.CommentsPath, id)
}

func (c CatalogConfig) expand(path string, id uint64) string {
	return strings.TrimRight(c.BaseURL, "/") + strings.ReplaceAll(path, IDPlaceholder, fmt.Sprint(id))
}
