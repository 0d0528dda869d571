package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the core crawl limits
const (
	DefaultMaxDepth         = 2
	DefaultMaxLinksPerPage  = 5
	DefaultMaxWorkers       = 5
	DefaultTimeout          = 5 * time.Second
	DefaultUserAgent        = "LiveSiteMapperBot/1.0 (Educational)"
	DefaultMaxPendingTasks  = 10000
	DefaultMaxPageSizeBytes = 10 << 20
	DefaultEventBuffer      = 1024
	DefaultProgressInterval = 10 * time.Second
	DefaultOutputBaseDir    = "./site_maps"
)

// Export formats accepted in output_formats
const (
	FormatYAML   = "yaml"
	FormatTSV    = "tsv"
	FormatTree   = "tree"
	FormatSQLite = "sqlite"
)

// AppConfig holds the configuration of one crawl run
type AppConfig struct {
	MaxDepth           int              `yaml:"max_depth" mapstructure:"max_depth"`
	MaxLinksPerPage    int              `yaml:"max_links_per_page" mapstructure:"max_links_per_page"`
	MaxWorkers         int              `yaml:"max_workers" mapstructure:"max_workers"`
	Timeout            time.Duration    `yaml:"timeout" mapstructure:"-"` // Per-fetch timeout; loaded from seconds or a Go duration string
	UserAgent          string           `yaml:"user_agent" mapstructure:"user_agent"`
	MaxPendingTasks    int              `yaml:"max_pending_tasks" mapstructure:"max_pending_tasks"`     // Bound on queued plus in-flight tasks
	RequestsPerSecond  float64          `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 = unlimited
	RequestsBurst      int              `yaml:"requests_burst" mapstructure:"requests_burst"`           // Limiter burst when requests_per_second > 0
	MaxPageSizeBytes   int64            `yaml:"max_page_size_bytes" mapstructure:"max_page_size_bytes"` // 0 = unlimited
	VisitedStore       string           `yaml:"visited_store" mapstructure:"visited_store"`             // "memory" or "badger"
	StateDir           string           `yaml:"state_dir,omitempty" mapstructure:"state_dir"`           // Badger directory; empty = in-memory Badger
	EventBuffer        int              `yaml:"event_buffer" mapstructure:"event_buffer"`               // Renderer event queue capacity
	ProgressInterval   time.Duration    `yaml:"progress_interval" mapstructure:"progress_interval"`     // Period of the "Crawl Progress" log line
	OutputBaseDir      string           `yaml:"output_base_dir" mapstructure:"output_base_dir"`         // Root of per-run export directories
	OutputFormats      []string         `yaml:"output_formats,omitempty" mapstructure:"output_formats"` // Subset of yaml, tsv, tree, sqlite
	WriteVisitedLog    bool             `yaml:"write_visited_log,omitempty" mapstructure:"write_visited_log"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty" mapstructure:"http_client_settings"`
	Log                LogConfig        `yaml:"log" mapstructure:"log"`
}

// HTTPClientConfig holds transport settings for the shared HTTP client
type HTTPClientConfig struct {
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty" mapstructure:"max_idle_conns"`                   // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty" mapstructure:"max_idle_conns_per_host"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty" mapstructure:"idle_conn_timeout"`             // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty" mapstructure:"tls_handshake_timeout"`     // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty" mapstructure:"expect_continue_timeout"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty" mapstructure:"force_attempt_http2"`         // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty" mapstructure:"dialer_timeout"`                   // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty" mapstructure:"dialer_keep_alive"`             // TCP keep-alive interval
}

// LogConfig controls the logger and optional rotated log file
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file,omitempty" mapstructure:"file"` // Empty = stderr only
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// Default returns the configuration used when nothing is overridden
func Default() AppConfig {
	return AppConfig{
		MaxDepth:         DefaultMaxDepth,
		MaxLinksPerPage:  DefaultMaxLinksPerPage,
		MaxWorkers:       DefaultMaxWorkers,
		Timeout:          DefaultTimeout,
		UserAgent:        DefaultUserAgent,
		MaxPendingTasks:  DefaultMaxPendingTasks,
		RequestsBurst:    1,
		MaxPageSizeBytes: DefaultMaxPageSizeBytes,
		VisitedStore:     "memory",
		EventBuffer:      DefaultEventBuffer,
		ProgressInterval: DefaultProgressInterval,
		OutputBaseDir:    DefaultOutputBaseDir,
		OutputFormats:    []string{FormatYAML, FormatTSV, FormatTree},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// HasFormat reports whether the export format f is enabled
func (c *AppConfig) HasFormat(f string) bool {
	for _, got := range c.OutputFormats {
		if got == f {
			return true
		}
	}
	return false
}

// AsMap dumps the config as a generic map for embedding in run metadata
func (c *AppConfig) AsMap() map[string]interface{} {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil
	}
	out := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil
	}
	out["timeout"] = c.Timeout.String()
	out["progress_interval"] = c.ProgressInterval.String()
	return out
}
