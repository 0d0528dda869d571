package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Crawl limits: 0 is meaningful for both, negative is not
	if c.MaxDepth < 0 {
		return warnings, fmt.Errorf("%w: max_depth cannot be negative (got %d)", utils.ErrConfigValidation, c.MaxDepth)
	}
	if c.MaxLinksPerPage < 0 {
		return warnings, fmt.Errorf("%w: max_links_per_page cannot be negative (got %d)", utils.ErrConfigValidation, c.MaxLinksPerPage)
	}

	if c.MaxWorkers <= 0 {
		warnings = append(warnings, fmt.Sprintf("max_workers should be > 0, defaulting to %d", DefaultMaxWorkers))
		c.MaxWorkers = DefaultMaxWorkers
	}

	if c.Timeout <= 0 {
		warnings = append(warnings, fmt.Sprintf("timeout should be > 0, defaulting to %v", DefaultTimeout))
		c.Timeout = DefaultTimeout
	}

	if strings.TrimSpace(c.UserAgent) == "" {
		warnings = append(warnings, fmt.Sprintf("user_agent is empty, defaulting to '%s'", DefaultUserAgent))
		c.UserAgent = DefaultUserAgent
	}

	if c.MaxPendingTasks <= 0 {
		c.MaxPendingTasks = DefaultMaxPendingTasks
	}
	if c.MaxPendingTasks < c.MaxWorkers {
		warnings = append(warnings, fmt.Sprintf(
			"max_pending_tasks (%d) < max_workers (%d), raising to max_workers",
			c.MaxPendingTasks, c.MaxWorkers))
		c.MaxPendingTasks = c.MaxWorkers
	}

	if c.RequestsPerSecond < 0 {
		warnings = append(warnings, "requests_per_second cannot be negative, disabling rate limit")
		c.RequestsPerSecond = 0
	}
	if c.RequestsBurst <= 0 {
		c.RequestsBurst = 1
	}

	if c.MaxPageSizeBytes < 0 {
		warnings = append(warnings, "max_page_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxPageSizeBytes = 0
	}

	c.VisitedStore = strings.ToLower(strings.TrimSpace(c.VisitedStore))
	switch c.VisitedStore {
	case "":
		c.VisitedStore = "memory"
	case "memory", "badger":
	default:
		return warnings, fmt.Errorf("%w: unknown visited_store '%s' (want memory or badger)", utils.ErrConfigValidation, c.VisitedStore)
	}
	if c.VisitedStore == "memory" && c.StateDir != "" {
		warnings = append(warnings, "state_dir is set but visited_store is 'memory'; state_dir is ignored")
	}

	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}

	if c.ProgressInterval <= 0 {
		c.ProgressInterval = DefaultProgressInterval
	}

	if c.OutputBaseDir == "" && len(c.OutputFormats) > 0 {
		warnings = append(warnings, fmt.Sprintf("output_base_dir is empty, defaulting to '%s'", DefaultOutputBaseDir))
		c.OutputBaseDir = DefaultOutputBaseDir
	}

	formats, err := normalizeFormats(c.OutputFormats)
	if err != nil {
		return warnings, err
	}
	c.OutputFormats = formats

	c.validateHTTPClientSettings()
	warnings = append(warnings, c.validateLog()...)

	return warnings, nil
}

// normalizeFormats lowercases, dedupes, and checks output formats, keeping their order
func normalizeFormats(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, f := range in {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		switch f {
		case FormatYAML, FormatTSV, FormatTree, FormatSQLite:
		default:
			return nil, fmt.Errorf("%w: unknown output format '%s'", utils.ErrConfigValidation, f)
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.MaxWorkers
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

func (c *AppConfig) validateLog() (warnings []string) {
	l := &c.Log
	if l.Level == "" {
		l.Level = "info"
	} else if _, err := logrus.ParseLevel(l.Level); err != nil {
		warnings = append(warnings, fmt.Sprintf("log.level '%s' is invalid, defaulting to 'info'", l.Level))
		l.Level = "info"
	}
	if l.MaxSizeMB <= 0 {
		l.MaxSizeMB = 10
	}
	if l.MaxBackups < 0 {
		l.MaxBackups = 0
	}
	if l.MaxAgeDays < 0 {
		l.MaxAgeDays = 0
	}
	return warnings
}
