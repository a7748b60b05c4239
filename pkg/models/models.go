package models

import "time"

// FrontierEntry represents a URL and its discovery depth awaiting processing
type FrontierEntry struct {
	URL   string
	Depth int
}

// FetchMethod identifies which strategy produced a PageResult
type FetchMethod string

const (
	FetchMethodUnset    FetchMethod = ""              // Zero value = not fetched
	FetchMethodBrowser  FetchMethod = "browser"       // Headless browser rendering
	FetchMethodFallback FetchMethod = "http_fallback" // Plain HTTP GET + static extraction
	FetchMethodPDF      FetchMethod = "pdf"           // PDF text/link extraction
)

// String implements fmt.Stringer for logging
func (m FetchMethod) String() string {
	if m == "" {
		return "unset"
	}
	return string(m)
}

// PageResult is the outcome of fetching one URL. Created once per fetched
// URL and never mutated afterwards; the aggregator treats the result list
// as read-only.
type PageResult struct {
	URL        string      `json:"url"`
	Success    bool        `json:"success"`
	Title      string      `json:"title,omitempty"`
	Text       string      `json:"text,omitempty"`
	Markdown   string      `json:"markdown,omitempty"`
	WordCount  int         `json:"word_count"`
	TokenCount int         `json:"token_count,omitempty"` // Absent when token counting is disabled
	Links      []string    `json:"links,omitempty"`       // Raw outbound links, pre-filter
	Images     []string    `json:"images,omitempty"`
	StatusCode int         `json:"status_code,omitempty"`
	Error      string      `json:"error,omitempty"` // Last strategy error when Success is false
	Method     FetchMethod `json:"method,omitempty"`
	Depth      int         `json:"depth"`
	Order      int         `json:"order"` // Sequential crawl order, starting at 0
	FetchedAt  time.Time   `json:"fetched_at,omitempty"`
}

// CrawlSummary is derived from the full PageResult list at the end of a run.
// Always a pure fold over the results, never mutated incrementally.
type CrawlSummary struct {
	TotalPages      int `json:"total_pages"`
	SuccessfulPages int `json:"successful_pages"`
	FailedPages     int `json:"failed_pages"`
	TotalWords      int `json:"total_words"`
	TotalTokens     int `json:"total_tokens,omitempty"`
	UniqueLinks     int `json:"unique_links"`
	UniqueImages    int `json:"unique_images"`
	MaxDepthReached int `json:"max_depth_reached"`
}

// CrawlReport is the complete output of one crawl run
type CrawlReport struct {
	ID               string       `json:"id"`
	Success          bool         `json:"success"`
	SeedURL          string       `json:"seed_url"`
	Pages            []PageResult `json:"pages"`
	Summary          CrawlSummary `json:"summary"`
	CombinedText     string       `json:"combined_text,omitempty"`
	CombinedMarkdown string       `json:"combined_markdown,omitempty"`
	CombinedHTML     string       `json:"combined_html,omitempty"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
}

// Session holds saved authentication state for a domain, consulted by the
// fetch pipeline when a policy references a stored session instead of
// inline credentials.
type Session struct {
	Domain    string            `json:"domain"`
	Name      string            `json:"name,omitempty"`
	Cookies   map[string]string `json:"cookies,omitempty"`
	Tokens    map[string]string `json:"tokens,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
	Notes     string            `json:"notes,omitempty"`
}

// Expired reports whether the session has an expiry in the past
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !s.ExpiresAt.After(now)
}
