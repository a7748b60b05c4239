package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"crawlops/pkg/utils"
)

// maxDelaySeconds caps the per-host politeness delay.
const maxDelaySeconds = 30.0

// Validate checks CrawlPolicy fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (p *CrawlPolicy) Validate() (warnings []string, err error) {
	// Required: URL
	if strings.TrimSpace(p.URL) == "" {
		return nil, fmt.Errorf("%w: policy needs a url", utils.ErrConfigValidation)
	}
	if _, parseErr := url.ParseRequestURI(p.URL); parseErr != nil {
		return nil, fmt.Errorf("%w: url %q is not absolute", utils.ErrConfigValidation, p.URL)
	}

	// MaxDepth: absent defaults to 2, explicit 0 means a seed-only crawl
	if p.MaxDepth != nil && *p.MaxDepth < 0 {
		warnings = append(warnings, "max_depth cannot be negative, defaulting to 2")
		p.MaxDepth = nil
	}
	if p.MaxDepth == nil {
		depth := 2
		p.MaxDepth = &depth
	}

	// MaxPages
	if p.MaxPages < 0 {
		warnings = append(warnings, "max_pages cannot be negative, defaulting to 100")
		p.MaxPages = 100
	}
	if p.MaxPages == 0 {
		p.MaxPages = 100
	}

	// Scope
	if p.Scope == "" {
		p.Scope = "default"
	}
	switch p.Scope {
	case "default", "host_only", "subdomains":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown scope %q, using 'default'", p.Scope))
		p.Scope = "default"
	}

	// DelaySeconds, clamped to [0, 30]
	if p.DelaySeconds < 0 {
		warnings = append(warnings, "delay_seconds cannot be negative, defaulting to 1.0")
		p.DelaySeconds = 1.0
	}
	if p.DelaySeconds == 0 {
		p.DelaySeconds = 1.0
	}
	if p.DelaySeconds > maxDelaySeconds {
		warnings = append(warnings, fmt.Sprintf("delay_seconds %.1f exceeds the %.0fs ceiling, clamping", p.DelaySeconds, maxDelaySeconds))
		p.DelaySeconds = maxDelaySeconds
	}

	// Auth
	if !p.AuthType.IsValid() {
		warnings = append(warnings, fmt.Sprintf("unknown auth_type %q, disabling auth", p.AuthType))
		p.AuthType = AuthTypeNone
	}
	switch p.AuthType {
	case AuthTypeBearer, AuthTypeCustom:
		if p.AuthToken == "" {
			return warnings, fmt.Errorf("%w: auth_type %q needs auth_token", utils.ErrConfigValidation, p.AuthType)
		}
	case AuthTypeBasic:
		if p.AuthUsername == "" {
			return warnings, fmt.Errorf("%w: auth_type 'basic' needs auth_username", utils.ErrConfigValidation)
		}
	}

	// Export formats
	for _, format := range p.ExportFormats {
		switch format {
		case "json", "markdown", "html", "text":
		default:
			warnings = append(warnings, fmt.Sprintf("unknown export format %q ignored", format))
		}
	}

	return warnings, nil
}

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// UserAgent
	if c.UserAgent == "" {
		c.UserAgent = "CrawlOps/1.0 (+https://github.com/crawlops/crawlops)"
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './crawlops_state'")
		c.StateDir = "./crawlops_state"
	}

	// OutputDir
	if c.OutputDir == "" {
		warnings = append(warnings, "output_dir is empty, defaulting to './crawlops_exports'")
		c.OutputDir = "./crawlops_exports"
	}

	// LogLevel
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	// LogFormat
	switch c.LogFormat {
	case "", "text", "json":
		if c.LogFormat == "" {
			c.LogFormat = "text"
		}
	default:
		warnings = append(warnings, fmt.Sprintf("unknown log_format %q, using 'text'", c.LogFormat))
		c.LogFormat = "text"
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// RobotsTimeout
	if c.RobotsTimeout <= 0 {
		c.RobotsTimeout = 5 * time.Second
	}

	// BrowserTimeout
	if c.BrowserTimeout <= 0 {
		c.BrowserTimeout = 60 * time.Second
	}

	// DisableBrowser: the environment toggle wins over the config file
	if os.Getenv("CRAWLOPS_DISABLE_BROWSER") == "1" {
		c.DisableBrowser = true
	}

	// MaxConcurrentCrawls
	if c.MaxConcurrentCrawls <= 0 {
		c.MaxConcurrentCrawls = 3
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		c.MaxRequestsPerHost = 2
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil // AppConfig validation never fails fatally
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
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
