package models

// CrawlState represents the lifecycle state of a crawl run
type CrawlState string

const (
	CrawlStateUnset     CrawlState = ""          // Zero value = unset/unknown
	CrawlStatePending   CrawlState = "pending"   // Run created but not started
	CrawlStateRunning   CrawlState = "running"   // Frontier loop in progress
	CrawlStateCompleted CrawlState = "completed" // Finished normally (budget or frontier exhausted)
	CrawlStateStopped   CrawlState = "stopped"   // Cancelled cooperatively
	CrawlStateFailed    CrawlState = "failed"    // Aborted on a precondition or fatal error
)

// String implements fmt.Stringer for logging
func (s CrawlState) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the state is a known operational value
func (s CrawlState) IsValid() bool {
	switch s {
	case CrawlStatePending, CrawlStateRunning, CrawlStateCompleted, CrawlStateStopped, CrawlStateFailed:
		return true
	}
	return false
}

// Terminal reports whether a run in this state can no longer change
func (s CrawlState) Terminal() bool {
	switch s {
	case CrawlStateCompleted, CrawlStateStopped, CrawlStateFailed:
		return true
	}
	return false
}

// StatusSnapshot is a point-in-time copy of a crawl's progress, safe to
// hand to pollers while the run continues.
type StatusSnapshot struct {
	ID           string     `json:"id"`
	State        CrawlState `json:"state"`
	SeedURL      string     `json:"seed_url"`
	PagesCrawled int        `json:"pages_crawled"`
	PagesFailed  int        `json:"pages_failed"`
	QueueSize    int        `json:"queue_size"`
	CurrentURL   string     `json:"current_url,omitempty"`
	CurrentDepth int        `json:"current_depth"`
	Error        string     `json:"error,omitempty"`
}
