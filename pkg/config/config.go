package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"crawlops/pkg/utils"
)

// AuthType selects how credentials are turned into request headers
type AuthType string

const (
	AuthTypeNone   AuthType = ""       // No authentication
	AuthTypeBearer AuthType = "bearer" // Authorization: Bearer <token>
	AuthTypeBasic  AuthType = "basic"  // Authorization: Basic base64(user:pass)
	AuthTypeCustom AuthType = "custom" // Authorization: <token> verbatim
)

// String implements fmt.Stringer for logging
func (a AuthType) String() string {
	if a == "" {
		return "none"
	}
	return string(a)
}

// IsValid returns true if the auth type is a known operational value
func (a AuthType) IsValid() bool {
	switch a {
	case AuthTypeNone, AuthTypeBearer, AuthTypeBasic, AuthTypeCustom:
		return true
	}
	return false
}

// CrawlPolicy holds the configuration for a single crawl run. It arrives
// either as a YAML document (CLI) or as tool arguments (MCP), so fields
// carry both tag sets.
type CrawlPolicy struct {
	URL             string            `yaml:"url" json:"url"`
	MaxDepth        *int              `yaml:"max_depth" json:"max_depth"`
	MaxPages        int               `yaml:"max_pages" json:"max_pages"`
	Scope           string            `yaml:"scope,omitempty" json:"scope,omitempty"`
	IncludePatterns []string          `yaml:"include_patterns,omitempty" json:"include_patterns,omitempty"`
	ExcludePatterns []string          `yaml:"exclude_patterns,omitempty" json:"exclude_patterns,omitempty"`
	RespectRobots   *bool             `yaml:"respect_robots_txt,omitempty" json:"respect_robots_txt,omitempty"`
	IgnoreRobots    bool              `yaml:"ignore_robots,omitempty" json:"ignore_robots,omitempty"`
	DelaySeconds    float64           `yaml:"delay_seconds,omitempty" json:"delay_seconds,omitempty"`
	AuthType        AuthType          `yaml:"auth_type,omitempty" json:"auth_type,omitempty"`
	AuthToken       string            `yaml:"auth_token,omitempty" json:"auth_token,omitempty"`
	AuthUsername    string            `yaml:"auth_username,omitempty" json:"auth_username,omitempty"`
	AuthPassword    string            `yaml:"auth_password,omitempty" json:"auth_password,omitempty"`
	CustomHeaders   map[string]string `yaml:"custom_headers,omitempty" json:"custom_headers,omitempty"`
	UserAgentSuffix string            `yaml:"user_agent_suffix,omitempty" json:"user_agent_suffix,omitempty"`
	SessionDomain   string            `yaml:"session_domain,omitempty" json:"session_domain,omitempty"`
	SeedFromSitemap bool              `yaml:"seed_from_sitemap,omitempty" json:"seed_from_sitemap,omitempty"`
	CrawlPDFLinks   bool              `yaml:"crawl_pdf_links,omitempty" json:"crawl_pdf_links,omitempty"`
	ExportFormats   []string          `yaml:"export_formats,omitempty" json:"export_formats,omitempty"`
}

// RobotsEnabled resolves the two robots flags: ignore_robots forces robots
// off; otherwise respect_robots_txt applies, defaulting to true.
func (p *CrawlPolicy) RobotsEnabled() bool {
	if p.IgnoreRobots {
		return false
	}
	if p.RespectRobots == nil {
		return true
	}
	return *p.RespectRobots
}

// DepthLimit resolves max_depth, defaulting to 2 when absent. An explicit
// zero means a seed-only crawl, so absence and zero must stay distinct.
func (p *CrawlPolicy) DepthLimit() int {
	if p.MaxDepth == nil {
		return 2
	}
	return *p.MaxDepth
}

// Delay returns the per-host politeness delay as a duration
func (p *CrawlPolicy) Delay() time.Duration {
	return time.Duration(p.DelaySeconds * float64(time.Second))
}

// AppConfig holds the global application configuration
type AppConfig struct {
	UserAgent           string           `yaml:"user_agent,omitempty"`
	StateDir            string           `yaml:"state_dir,omitempty"`             // Badger database location
	OutputDir           string           `yaml:"output_dir,omitempty"`            // Export destination
	LogLevel            string           `yaml:"log_level,omitempty"`             // logrus level name
	LogFormat           string           `yaml:"log_format,omitempty"`            // "text" or "json"
	MaxRetries          int              `yaml:"max_retries,omitempty"`           // HTTP fallback retry attempts
	InitialRetryDelay   time.Duration    `yaml:"initial_retry_delay,omitempty"`   // First backoff step
	MaxRetryDelay       time.Duration    `yaml:"max_retry_delay,omitempty"`       // Backoff ceiling
	RobotsTimeout       time.Duration    `yaml:"robots_timeout,omitempty"`        // robots.txt fetch timeout
	BrowserTimeout      time.Duration    `yaml:"browser_timeout,omitempty"`       // Per-page browser render timeout
	BrowserHeadless     *bool            `yaml:"browser_headless,omitempty"`      // nil = headless
	DisableBrowser      bool             `yaml:"disable_browser,omitempty"`       // Skip the browser strategy entirely
	MaxConcurrentCrawls int64            `yaml:"max_concurrent_crawls,omitempty"` // MCP job cap
	MaxRequestsPerHost  int              `yaml:"max_requests_per_host,omitempty"` // Cross-job per-host cap
	EnableTokenCounting bool             `yaml:"enable_token_counting,omitempty"` // Per-page token counts via tiktoken
	HTTPClientSettings  HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // Explicitly enable/disable HTTP/2 attempt (use pointer for tri-state: nil=default, true=force, false=disable)
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// LoadAppConfig reads and validates an AppConfig from a YAML file. A
// missing path returns a defaulted config.
func LoadAppConfig(path string) (*AppConfig, []string, error) {
	cfg := &AppConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading config file %q: %v", utils.ErrFilesystem, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, nil, fmt.Errorf("%w: parsing config file %q: %v", utils.ErrConfigValidation, path, err)
		}
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// LoadCrawlPolicy reads and validates a CrawlPolicy from a YAML file
func LoadCrawlPolicy(path string) (*CrawlPolicy, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading policy file %q: %v", utils.ErrFilesystem, path, err)
	}
	policy := &CrawlPolicy{}
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, nil, fmt.Errorf("%w: parsing policy file %q: %v", utils.ErrConfigValidation, path, err)
	}
	warnings, err := policy.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return policy, warnings, nil
}
