package crawler

import (
	"sync"

	"crawlops/pkg/models"
)

// StatusTracker records a crawl's live progress. The crawl loop writes,
// pollers read snapshots concurrently.
type StatusTracker struct {
	mu       sync.Mutex
	snapshot models.StatusSnapshot
}

// NewStatusTracker creates a tracker in the pending state
func NewStatusTracker(id, seedURL string) *StatusTracker {
	return &StatusTracker{
		snapshot: models.StatusSnapshot{
			ID:      id,
			State:   models.CrawlStatePending,
			SeedURL: seedURL,
		},
	}
}

// SetState transitions the run state. Terminal states stick: a late
// transition out of stopped/completed/failed is ignored.
func (t *StatusTracker) SetState(state models.CrawlState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snapshot.State.Terminal() {
		return
	}
	t.snapshot.State = state
}

// SetError records the fatal error string and marks the run failed
func (t *StatusTracker) SetError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snapshot.State.Terminal() {
		return
	}
	t.snapshot.Error = message
	t.snapshot.State = models.CrawlStateFailed
}

// Progress updates the live counters and the URL currently being processed
func (t *StatusTracker) Progress(currentURL string, depth, crawled, failed, queueSize int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.CurrentURL = currentURL
	t.snapshot.CurrentDepth = depth
	t.snapshot.PagesCrawled = crawled
	t.snapshot.PagesFailed = failed
	t.snapshot.QueueSize = queueSize
}

// Snapshot returns a point-in-time copy, safe to serialize while the
// crawl continues.
func (t *StatusTracker) Snapshot() models.StatusSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}
