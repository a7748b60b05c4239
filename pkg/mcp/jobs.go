package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"crawlops/pkg/config"
	"crawlops/pkg/crawler"
	"crawlops/pkg/export"
	"crawlops/pkg/fetch"
	"crawlops/pkg/models"
	"crawlops/pkg/orchestrate"
	"crawlops/pkg/storage"
)

// Job is one background crawl run
type Job struct {
	ID        string
	SeedURL   string
	StartedAt time.Time

	mu           sync.Mutex
	completedAt  time.Time
	errorMessage string
	exportPaths  []string

	crawler *crawler.Crawler
	cancel  context.CancelFunc
	done    chan struct{}
}

// Status returns the crawl's live status snapshot
func (j *Job) Status() models.StatusSnapshot {
	return j.crawler.Status()
}

// Result returns job-level completion details
func (j *Job) Result() (completedAt time.Time, errorMessage string, exportPaths []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completedAt, j.errorMessage, j.exportPaths
}

func (j *Job) finish(errorMessage string, exportPaths []string) {
	j.mu.Lock()
	j.completedAt = time.Now().UTC()
	j.errorMessage = errorMessage
	j.exportPaths = exportPaths
	j.mu.Unlock()
	close(j.done)
}

// JobManager starts and tracks background crawl jobs. A weighted
// semaphore caps how many crawls run at once; jobs past the cap stay
// pending until a slot frees.
type JobManager struct {
	cfg    *config.AppConfig
	store  storage.Store
	runner *orchestrate.Runner
	sem    *semaphore.Weighted
	log    *logrus.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobManager creates a JobManager whose crawls share one HTTP client
// and one cross-job host semaphore pool through the runner.
func NewJobManager(cfg *config.AppConfig, store storage.Store, browser fetch.Strategy, logger *logrus.Logger) *JobManager {
	return &JobManager{
		cfg:    cfg,
		store:  store,
		runner: orchestrate.NewRunner(cfg, browser, logger),
		sem:    semaphore.NewWeighted(cfg.MaxConcurrentCrawls),
		log:    logger,
		jobs:   make(map[string]*Job),
	}
}

// RunEviction starts the shared host pool's idle-entry eviction loop.
// Should be run in a goroutine.
func (m *JobManager) RunEviction(ctx context.Context) {
	m.runner.RunEviction(ctx)
}

// StartJob validates the policy, builds a crawler, and runs it in the
// background. Returns immediately with the pending job.
func (m *JobManager) StartJob(policy *config.CrawlPolicy) (*Job, error) {
	warnings, err := policy.Validate()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		m.log.WithField("seed", policy.URL).Warn(w)
	}

	var session *models.Session
	if policy.SessionDomain != "" {
		session, err = m.store.LoadSession(policy.SessionDomain)
		if err != nil {
			return nil, fmt.Errorf("resolving session for '%s': %w", policy.SessionDomain, err)
		}
	}

	id := uuid.New().String()
	c := m.runner.Build(id, policy, session)

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        id,
		SeedURL:   policy.URL,
		StartedAt: time.Now().UTC(),
		crawler:   c,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	go m.runJob(ctx, job, policy)

	return job, nil
}

// runJob waits for a concurrency slot, runs the crawl, and persists the
// report and export artifacts.
func (m *JobManager) runJob(ctx context.Context, job *Job, policy *config.CrawlPolicy) {
	defer job.cancel()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.log.WithField("crawl_id", job.ID).Infof("Job cancelled while waiting for a slot: %v", err)
		// Run with the cancelled context so the status tracker records the stop
		job.crawler.Run(ctx)
		job.finish("", nil)
		return
	}
	defer m.sem.Release(1)

	report, err := job.crawler.Run(ctx)
	if err != nil {
		job.finish(err.Error(), nil)
		return
	}

	var errorMessage string
	if err := m.store.SaveReport(report); err != nil {
		m.log.WithField("crawl_id", job.ID).Errorf("Failed to persist report: %v", err)
		errorMessage = err.Error()
	}

	var paths []string
	if len(policy.ExportFormats) > 0 {
		writer := export.NewWriter(m.cfg.OutputDir, m.log)
		paths, err = writer.WriteAll(report, policy.ExportFormats)
		if err != nil {
			m.log.WithField("crawl_id", job.ID).Errorf("Export failed: %v", err)
			if errorMessage == "" {
				errorMessage = err.Error()
			}
		}
	}

	job.finish(errorMessage, paths)
}

// GetJob retrieves a job by ID, or nil
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all known jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// StopJob cancels a running job. Returns false when the job is unknown
// or already finished.
func (m *JobManager) StopJob(id string) bool {
	job := m.GetJob(id)
	if job == nil {
		return false
	}
	if job.Status().State.Terminal() {
		return false
	}
	job.cancel()
	return true
}

// CancelAll cancels every running job, used during shutdown
func (m *JobManager) CancelAll() {
	for _, job := range m.ListJobs() {
		job.cancel()
	}
}
