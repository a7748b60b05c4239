package crawler

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"crawlops/pkg/aggregate"
	"crawlops/pkg/config"
	"crawlops/pkg/fetch"
	"crawlops/pkg/models"
	"crawlops/pkg/parse"
	"crawlops/pkg/policy"
	"crawlops/pkg/utils"
)

// maxLinksPerPage caps per-page fan-out: only the first 20 extracted links
// are considered for the frontier.
const maxLinksPerPage = 20

// FetchPipeline fetches one page, trying strategies in order
type FetchPipeline interface {
	Fetch(ctx context.Context, req *fetch.Request) (*models.PageResult, error)
}

// RobotsPolicy answers whether a user agent may fetch a URL
type RobotsPolicy interface {
	TestAgent(ctx context.Context, u *url.URL, userAgent string) bool
}

// SitemapSource resolves a sitemap URL into the page URLs it lists
type SitemapSource interface {
	Load(ctx context.Context, sitemapURL string) []string
}

// Crawler runs one bounded breadth-first crawl from a seed URL
type Crawler struct {
	id      string
	policy  *config.CrawlPolicy
	appCfg  *config.AppConfig
	session *models.Session

	pipeline FetchPipeline
	pdf      fetch.Strategy // Optional; nil disables the PDF branch
	robots   RobotsPolicy   // Optional; nil skips robots checks
	limiter  *fetch.RateLimiter
	hosts    *fetch.HostSemaphorePool // Optional cross-job per-host cap
	sitemaps SitemapSource            // Optional; nil disables sitemap seeding

	status   *StatusTracker
	frontier *Frontier
	visited  map[string]struct{}

	discoveredSitemaps []string
	sitemapMu          sync.Mutex

	log *logrus.Entry
}

// Options bundles the crawler's collaborators. Pipeline is required;
// everything else degrades gracefully when nil.
type Options struct {
	Pipeline    FetchPipeline
	PDF         fetch.Strategy
	Robots      RobotsPolicy
	RateLimiter *fetch.RateLimiter
	Hosts       *fetch.HostSemaphorePool
	Sitemaps    SitemapSource
}

// New creates a Crawler for one run. The policy must already be validated.
func New(
	id string,
	crawlPolicy *config.CrawlPolicy,
	appCfg *config.AppConfig,
	session *models.Session,
	opts Options,
	logger *logrus.Logger,
) *Crawler {
	limiter := opts.RateLimiter
	if limiter == nil {
		limiter = fetch.NewRateLimiter(crawlPolicy.Delay(), logger)
	}

	return &Crawler{
		id:       id,
		policy:   crawlPolicy,
		appCfg:   appCfg,
		session:  session,
		pipeline: opts.Pipeline,
		pdf:      opts.PDF,
		robots:   opts.Robots,
		limiter:  limiter,
		hosts:    opts.Hosts,
		sitemaps: opts.Sitemaps,
		status:   NewStatusTracker(id, crawlPolicy.URL),
		frontier: NewFrontier(),
		visited:  make(map[string]struct{}),
		log:      logger.WithFields(logrus.Fields{"crawl_id": id, "seed": crawlPolicy.URL}),
	}
}

// Status returns a point-in-time progress snapshot
func (c *Crawler) Status() models.StatusSnapshot {
	return c.status.Snapshot()
}

// FoundSitemap implements fetch.SitemapDiscoverer. Sitemap URLs advertised
// in robots.txt are collected and, when the policy enables sitemap seeding,
// drained into the frontier.
func (c *Crawler) FoundSitemap(sitemapURL string) {
	c.sitemapMu.Lock()
	defer c.sitemapMu.Unlock()
	c.discoveredSitemaps = append(c.discoveredSitemaps, sitemapURL)
}

// Run executes the crawl until the frontier drains, the page budget is
// spent, or ctx is cancelled. Cancellation is cooperative: the entries
// processed so far come back in a partial report with state "stopped".
// The only fatal precondition is an unusable seed URL.
func (c *Crawler) Run(ctx context.Context) (*models.CrawlReport, error) {
	startedAt := time.Now().UTC()

	normalizedSeed, seedURL, err := parse.ParseAndNormalize(c.policy.URL)
	if err != nil || seedURL.Hostname() == "" || (seedURL.Scheme != "http" && seedURL.Scheme != "https") {
		seedErr := utils.WrapErrorf(utils.ErrInvalidSeed, "seed URL '%s' is not an absolute http(s) URL", c.policy.URL)
		c.status.SetError(seedErr.Error())
		return nil, seedErr
	}

	scope := policy.NewScope(seedURL, policy.ScopeMode(c.policy.Scope))
	patterns := policy.NewPatternFilter(c.policy.IncludePatterns, c.policy.ExcludePatterns, c.log)

	headers := fetch.BuildHeaders(c.policy, c.session, c.appCfg.UserAgent)
	cookies := fetch.SessionCookies(c.session)
	userAgent := headers.Get("User-Agent")

	c.status.SetState(models.CrawlStateRunning)
	c.visited[normalizedSeed] = struct{}{}
	c.frontier.Add(models.FrontierEntry{URL: seedURL.String(), Depth: 0})

	if c.policy.SeedFromSitemap {
		c.seedFromSitemaps(ctx, seedURL, scope, patterns, userAgent)
	}

	var pages []models.PageResult
	crawled, failed := 0, 0
	stopped := false

	for {
		if ctx.Err() != nil {
			c.log.Warnf("Crawl cancelled: %v", ctx.Err())
			stopped = true
			break
		}
		if len(pages) >= c.policy.MaxPages {
			c.log.Infof("Page budget (%d) reached", c.policy.MaxPages)
			break
		}

		entry, ok := c.frontier.Next()
		if !ok {
			c.log.Debug("Frontier drained")
			break
		}

		if entry.Depth > c.policy.DepthLimit() {
			continue
		}

		pageURL, parseErr := url.Parse(entry.URL)
		if parseErr != nil {
			c.log.Warnf("Dropping unparseable frontier entry '%s': %v", entry.URL, parseErr)
			continue
		}

		// Scope and patterns gate every popped URL, the seed included
		if !scope.Contains(pageURL) || !patterns.Allow(entry.URL) {
			c.log.WithField("url", entry.URL).Info("Skipping out-of-scope or pattern-excluded URL")
			continue
		}

		c.status.Progress(entry.URL, entry.Depth, crawled, failed, c.frontier.Len())

		if c.policy.RobotsEnabled() && c.robots != nil {
			if !c.robots.TestAgent(ctx, pageURL, userAgent) {
				c.log.WithField("url", entry.URL).Info("Skipping robots-disallowed URL")
				continue
			}
		}

		result := c.fetchPage(ctx, entry, pageURL, headers, cookies)
		result.Depth = entry.Depth
		result.Order = len(pages)

		if result.Success {
			crawled++
		} else {
			failed++
			if ctx.Err() != nil {
				// Cancellation surfaced as a fetch error; do not record it
				// as a page failure
				stopped = true
				break
			}
		}
		pages = append(pages, result)

		if result.Success && entry.Depth < c.policy.DepthLimit() {
			c.enqueueLinks(result.Links, entry.Depth+1, scope, patterns)
		}
	}

	finishedAt := time.Now().UTC()
	c.status.Progress("", 0, crawled, failed, c.frontier.Len())
	if stopped {
		c.status.SetState(models.CrawlStateStopped)
	} else {
		c.status.SetState(models.CrawlStateCompleted)
	}

	report, err := aggregate.BuildReport(c.id, seedURL.String(), pages, startedAt, finishedAt)
	if err != nil {
		c.status.SetError(err.Error())
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"pages_crawled": crawled,
		"pages_failed":  failed,
		"duration":      finishedAt.Sub(startedAt).String(),
		"state":         c.status.Snapshot().State.String(),
	}).Info("Crawl finished")
	return report, nil
}

// fetchPage applies per-host limits and runs the right fetcher for one
// frontier entry. Fetch errors come back as a failed PageResult rather
// than aborting the run.
func (c *Crawler) fetchPage(ctx context.Context, entry models.FrontierEntry, pageURL *url.URL, headers http.Header, cookies []*http.Cookie) models.PageResult {
	host := pageURL.Hostname()
	taskLog := c.log.WithFields(logrus.Fields{"url": entry.URL, "depth": entry.Depth})

	fail := func(err error) models.PageResult {
		taskLog.WithField("category", utils.CategorizeError(err)).Warnf("Page failed: %v", err)
		return models.PageResult{
			URL:       entry.URL,
			Success:   false,
			Error:     err.Error(),
			FetchedAt: time.Now().UTC(),
		}
	}

	if c.hosts != nil {
		if err := c.hosts.Acquire(ctx, host); err != nil {
			return fail(err)
		}
		defer c.hosts.Release(host)
	}

	if err := c.limiter.ApplyDelay(ctx, host, c.policy.Delay()); err != nil {
		return fail(err)
	}

	req := &fetch.Request{URL: entry.URL, Header: headers, Cookies: cookies}

	var result *models.PageResult
	var err error
	if c.pdf != nil && parse.IsPDF(pageURL) {
		result, err = c.pdf.Fetch(ctx, req)
	} else {
		result, err = c.pipeline.Fetch(ctx, req)
	}
	c.limiter.UpdateLastRequestTime(host)

	if err != nil {
		return fail(err)
	}
	taskLog.WithFields(logrus.Fields{"method": result.Method.String(), "words": result.WordCount}).Debug("Page fetched")
	return *result
}

// enqueueLinks filters a page's outbound links and adds the survivors to
// the frontier. Only the first maxLinksPerPage raw links are considered.
func (c *Crawler) enqueueLinks(links []string, depth int, scope *policy.Scope, patterns *policy.PatternFilter) {
	if len(links) > maxLinksPerPage {
		links = links[:maxLinksPerPage]
	}

	queued := 0
	for _, link := range links {
		normalized, linkURL, err := parse.ParseAndNormalize(link)
		if err != nil {
			continue
		}
		if _, seen := c.visited[normalized]; seen {
			continue
		}
		if parse.IsPDF(linkURL) {
			if !c.policy.CrawlPDFLinks || c.pdf == nil {
				continue
			}
		} else if !parse.IsCrawlable(linkURL) {
			continue
		}
		if !scope.Contains(linkURL) {
			continue
		}
		if !patterns.Allow(link) {
			continue
		}

		c.visited[normalized] = struct{}{}
		c.frontier.Add(models.FrontierEntry{URL: linkURL.String(), Depth: depth})
		queued++
	}
	if queued > 0 {
		c.log.Debugf("Queued %d new link(s) at depth %d", queued, depth)
	}
}

// seedFromSitemaps warms the robots.txt cache for the seed host (which
// discovers advertised sitemaps via FoundSitemap), then drains those
// sitemaps into the frontier at depth 1 subject to the normal filters.
func (c *Crawler) seedFromSitemaps(ctx context.Context, seedURL *url.URL, scope *policy.Scope, patterns *policy.PatternFilter, userAgent string) {
	if c.sitemaps == nil || c.robots == nil {
		c.log.Debug("Sitemap seeding requested but no sitemap source wired")
		return
	}

	c.robots.TestAgent(ctx, seedURL, userAgent)

	c.sitemapMu.Lock()
	discovered := make([]string, len(c.discoveredSitemaps))
	copy(discovered, c.discoveredSitemaps)
	c.sitemapMu.Unlock()

	if len(discovered) == 0 {
		c.log.Debug("No sitemaps advertised in robots.txt")
		return
	}

	seeded := 0
	for _, sitemapURL := range discovered {
		for _, pageURL := range c.sitemaps.Load(ctx, sitemapURL) {
			normalized, u, err := parse.ParseAndNormalize(pageURL)
			if err != nil {
				continue
			}
			if _, seen := c.visited[normalized]; seen {
				continue
			}
			if !parse.IsCrawlable(u) || !scope.Contains(u) || !patterns.Allow(pageURL) {
				continue
			}
			c.visited[normalized] = struct{}{}
			c.frontier.Add(models.FrontierEntry{URL: u.String(), Depth: 1})
			seeded++
		}
	}
	c.log.Infof("Seeded %d URL(s) from %d sitemap(s)", seeded, len(discovered))
}
