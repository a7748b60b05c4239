package orchestrate

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"crawlops/pkg/config"
	"crawlops/pkg/crawler"
	"crawlops/pkg/fetch"
	"crawlops/pkg/models"
	"crawlops/pkg/pdf"
)

// sitemapRelay forwards robots.txt sitemap discoveries to the crawler.
// The robots handler needs a notifier at construction time, before the
// crawler that consumes the notifications exists.
type sitemapRelay struct {
	target atomic.Pointer[crawler.Crawler]
}

func (r *sitemapRelay) FoundSitemap(sitemapURL string) {
	if c := r.target.Load(); c != nil {
		c.FoundSitemap(sitemapURL)
	}
}

// Runner assembles crawlers over shared resources: one HTTP client, one
// cross-crawl host semaphore pool, and an optional shared browser
// strategy. Each Build call wires a fresh collaborator set (fetcher,
// rate limiter, robots handler, PDF extractor, sitemap loader) for one
// crawl run.
type Runner struct {
	cfg     *config.AppConfig
	client  *http.Client
	hosts   *fetch.HostSemaphorePool
	browser fetch.Strategy // nil when the browser is disabled
	log     *logrus.Logger
}

// NewRunner creates a Runner. Pass a nil browser to fetch pages with
// plain HTTP only.
func NewRunner(cfg *config.AppConfig, browser fetch.Strategy, logger *logrus.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		client:  fetch.NewClient(cfg.HTTPClientSettings, logger),
		hosts:   fetch.NewHostSemaphorePool(cfg.MaxRequestsPerHost, logger.WithField("component", "hostpool")),
		browser: browser,
		log:     logger,
	}
}

// RunEviction starts the host pool's idle-entry eviction loop.
// Should be run in a goroutine.
func (r *Runner) RunEviction(ctx context.Context) {
	r.hosts.RunEviction(ctx, 5*time.Minute)
}

// Build wires a crawler for one run. The policy must already be
// validated; session may be nil.
func (r *Runner) Build(id string, policy *config.CrawlPolicy, session *models.Session) *crawler.Crawler {
	runLog := r.log.WithField("crawl_id", id)

	fetcher := fetch.NewFetcher(r.client, r.cfg, r.log)
	limiter := fetch.NewRateLimiter(policy.Delay(), r.log)

	relay := &sitemapRelay{}
	robots := fetch.NewRobotsHandler(fetcher, limiter, relay, r.cfg, runLog.WithField("component", "robots"))

	strategies := make([]fetch.Strategy, 0, 2)
	if r.browser != nil {
		strategies = append(strategies, r.browser)
	}
	strategies = append(strategies, fetch.NewHTTPStrategy(fetcher, r.cfg, r.log))
	pipeline := fetch.NewPipeline(r.log, strategies...)

	c := crawler.New(id, policy, r.cfg, session, crawler.Options{
		Pipeline:    pipeline,
		PDF:         pdf.NewExtractor(fetcher, r.cfg, r.log),
		Robots:      robots,
		RateLimiter: limiter,
		Hosts:       r.hosts,
		Sitemaps:    crawler.NewSitemapLoader(fetcher, r.cfg.UserAgent, runLog.WithField("component", "sitemap")),
	}, r.log)
	relay.target.Store(c)

	return c
}

// Run builds and runs one crawl to completion
func (r *Runner) Run(ctx context.Context, id string, policy *config.CrawlPolicy, session *models.Session) (*models.CrawlReport, error) {
	return r.Build(id, policy, session).Run(ctx)
}

// FetchPage fetches a single URL through the same strategy pipeline a
// crawl uses, browser first when available.
func (r *Runner) FetchPage(ctx context.Context, pageURL string) (*models.PageResult, error) {
	fetcher := fetch.NewFetcher(r.client, r.cfg, r.log)

	strategies := make([]fetch.Strategy, 0, 2)
	if r.browser != nil {
		strategies = append(strategies, r.browser)
	}
	strategies = append(strategies, fetch.NewHTTPStrategy(fetcher, r.cfg, r.log))

	return fetch.NewPipeline(r.log, strategies...).Fetch(ctx, &fetch.Request{URL: pageURL})
}
