package storage

import (
	"context"
	"time"

	"crawlops/pkg/models"
)

// SessionStore persists saved authentication sessions, keyed by domain.
// A domain may hold several named sessions; LoadSession resolves the one
// a crawl should use.
type SessionStore interface {
	// SaveSession stores or replaces the session identified by its
	// Domain and Name. A missing Name is stored as "default".
	SaveSession(session *models.Session) error

	// LoadSession returns the most recently updated non-expired session
	// for the domain. Returns ErrSessionNotFound when the domain has no
	// sessions, ErrSessionExpired when it has sessions but all expired.
	LoadSession(domain string) (*models.Session, error)

	// ListSessions returns every stored session across all domains.
	ListSessions() ([]models.Session, error)

	// DeleteSession removes all sessions for the domain and returns how
	// many were removed. Returns ErrSessionNotFound when there were none.
	DeleteSession(domain string) (int, error)

	// DeleteExpired removes every expired session and returns the count.
	DeleteExpired() (int, error)
}

// ReportStore persists finished crawl reports, keyed by run ID.
type ReportStore interface {
	// SaveReport stores or replaces the report under its ID.
	SaveReport(report *models.CrawlReport) error

	// GetReport returns the report for the run ID, or ErrReportNotFound.
	GetReport(id string) (*models.CrawlReport, error)

	// ListReports returns every stored report, most recently finished first.
	ListReports() ([]*models.CrawlReport, error)

	// DeleteReport removes the report for the run ID, or returns
	// ErrReportNotFound when it does not exist.
	DeleteReport(id string) error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// RunGC runs periodic value log garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database
	Close() error
}

// Store combines all store interfaces for components that need full access
type Store interface {
	SessionStore
	ReportStore
	StoreAdmin
}
