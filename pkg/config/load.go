package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

// EnvPrefix prefixes the environment override of every config key
const EnvPrefix = "SITE_MAPPER"

// Bare environment names kept for the core settings
var legacyEnvNames = map[string]string{
	"max_depth":          "MAX_DEPTH",
	"max_links_per_page": "MAX_LINKS_PER_PAGE",
	"max_workers":        "MAX_WORKERS",
	"timeout":            "TIMEOUT",
	"user_agent":         "USER_AGENT",
}

// Load builds an AppConfig from defaults, the optional YAML file at path, and the environment
// Precedence, highest first: SITE_MAPPER_<KEY>, bare names (MAX_DEPTH, TIMEOUT, ...), file, defaults.
// The result is not validated.
func Load(path string) (AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, bare := range legacyEnvNames {
		prefixed := EnvPrefix + "_" + strings.ToUpper(key)
		if err := v.BindEnv(key, prefixed, bare); err != nil {
			return AppConfig{}, fmt.Errorf("%w: binding env for '%s': %w", utils.ErrConfigValidation, key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return AppConfig{}, fmt.Errorf("%w: config file '%s': %w", utils.ErrFilesystem, path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("%w: reading config file '%s': %w", utils.ErrConfigValidation, path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("%w: decoding config: %w", utils.ErrConfigValidation, err)
	}

	timeout, err := ParseTimeout(v.GetString("timeout"))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.Timeout = timeout

	return cfg, nil
}

// ParseTimeout accepts a number of seconds ("5", "2.5") or a Go duration ("2500ms")
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultTimeout, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: timeout '%s' is neither seconds nor a duration", utils.ErrConfigValidation, s)
	}
	return d, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("max_links_per_page", d.MaxLinksPerPage)
	v.SetDefault("max_workers", d.MaxWorkers)
	v.SetDefault("timeout", strconv.Itoa(int(d.Timeout/time.Second)))
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("max_pending_tasks", d.MaxPendingTasks)
	v.SetDefault("requests_per_second", d.RequestsPerSecond)
	v.SetDefault("requests_burst", d.RequestsBurst)
	v.SetDefault("max_page_size_bytes", d.MaxPageSizeBytes)
	v.SetDefault("visited_store", d.VisitedStore)
	v.SetDefault("state_dir", d.StateDir)
	v.SetDefault("event_buffer", d.EventBuffer)
	v.SetDefault("progress_interval", d.ProgressInterval)
	v.SetDefault("output_base_dir", d.OutputBaseDir)
	v.SetDefault("output_formats", d.OutputFormats)
	v.SetDefault("write_visited_log", d.WriteVisitedLog)

	v.SetDefault("http_client_settings.max_idle_conns", 0)
	v.SetDefault("http_client_settings.max_idle_conns_per_host", 0)
	v.SetDefault("http_client_settings.idle_conn_timeout", time.Duration(0))
	v.SetDefault("http_client_settings.tls_handshake_timeout", time.Duration(0))
	v.SetDefault("http_client_settings.expect_continue_timeout", time.Duration(0))
	v.SetDefault("http_client_settings.dialer_timeout", time.Duration(0))
	v.SetDefault("http_client_settings.dialer_keep_alive", time.Duration(0))

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
}
