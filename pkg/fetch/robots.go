package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"crawlops/pkg/config"
)

// SitemapDiscoverer defines the callback interface for handling sitemap
// URLs advertised in robots.txt
type SitemapDiscoverer interface {
	FoundSitemap(sitemapURL string)
}

// RobotsHandler manages fetching, parsing, caching, and checking robots.txt
// data. The policy is fail-open: a robots.txt that cannot be fetched or
// parsed, or that comes back with any non-200 status, never blocks a crawl.
// Only a 200 response is parsed, so a server error can never be read as a
// disallow-all ruleset.
type RobotsHandler struct {
	fetcher         *Fetcher
	rateLimiter     *RateLimiter
	robotsCache     map[string]*robotstxt.RobotsData // hostname -> parsed data (nil = fail-open)
	robotsCacheMu   sync.Mutex
	sitemapNotifier SitemapDiscoverer // Component to notify about advertised sitemaps
	cfg             *config.AppConfig
	log             *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler
func NewRobotsHandler(
	fetcher *Fetcher,
	rateLimiter *RateLimiter,
	sitemapNotifier SitemapDiscoverer,
	cfg *config.AppConfig,
	log *logrus.Entry,
) *RobotsHandler {
	return &RobotsHandler{
		fetcher:         fetcher,
		rateLimiter:     rateLimiter,
		robotsCache:     make(map[string]*robotstxt.RobotsData),
		sitemapNotifier: sitemapNotifier,
		cfg:             cfg,
		log:             log,
	}
}

// cacheNil records a fail-open outcome for a host
func (rh *RobotsHandler) cacheNil(host string) {
	rh.robotsCacheMu.Lock()
	rh.robotsCache[host] = nil
	rh.robotsCacheMu.Unlock()
}

// GetRobotsData retrieves robots.txt data for the targetURL's host, using
// the cache or fetching. Returns nil on any error or non-200 status, which
// callers must treat as "allow everything".
func (rh *RobotsHandler) GetRobotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	if ctx == nil {
		ctx = context.Background()
	}

	host := targetURL.Hostname()
	hostLog := rh.log.WithField("host", host)

	// 1. Check cache
	rh.robotsCacheMu.Lock()
	robotsData, found := rh.robotsCache[host]
	rh.robotsCacheMu.Unlock()
	if found {
		return robotsData // Return cached data (could be nil)
	}

	// 2. Prepare fetch URL
	robotsURL := &url.URL{Scheme: targetURL.Scheme, Host: targetURL.Host, Path: "/robots.txt"}
	if targetURL.Scheme != "http" && targetURL.Scheme != "https" {
		hostLog.Warnf("Invalid scheme '%s', defaulting to https for robots.txt", targetURL.Scheme)
		robotsURL.Scheme = "https"
	}
	robotsURLStr := robotsURL.String()
	robotsLog := hostLog.WithField("robots_url", robotsURLStr)
	robotsLog.Info("Fetching robots.txt...") // Log only on cache miss

	// 3. Apply rate limit (robots fetches count against the host budget)
	if err := rh.rateLimiter.ApplyDelay(ctx, host, 0); err != nil {
		rh.cacheNil(host)
		return nil
	}

	// 4. Fetch with a dedicated timeout so a slow robots endpoint cannot
	// stall the crawl
	fetchCtx, cancel := context.WithTimeout(ctx, rh.cfg.RobotsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, robotsURLStr, nil)
	if err != nil {
		robotsLog.Errorf("Error creating request: %v", err)
		rh.cacheNil(host)
		return nil
	}
	req.Header.Set("User-Agent", rh.cfg.UserAgent)

	resp, fetchErr := rh.fetcher.FetchWithRetry(req, fetchCtx)
	rh.rateLimiter.UpdateLastRequestTime(host)

	if fetchErr != nil {
		// Covers network errors and every non-2xx status: fail open
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		robotsLog.Warnf("Fetching robots.txt failed, allowing all: %v", fetchErr)
		rh.cacheNil(host)
		return nil
	}
	defer resp.Body.Close()

	// 5. Only a 200 body carries rules; 2xx oddities (204 etc.) fail open
	if resp.StatusCode != http.StatusOK {
		robotsLog.Debugf("robots.txt status %d, allowing all", resp.StatusCode)
		io.Copy(io.Discard, resp.Body)
		rh.cacheNil(host)
		return nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		robotsLog.Errorf("Error reading body: %v", err)
		rh.cacheNil(host)
		return nil
	}

	data, err := robotstxt.FromBytes(bodyBytes)
	if err != nil {
		robotsLog.Errorf("Error parsing content, allowing all: %v", err)
		rh.cacheNil(host)
		return nil
	}

	// 6. Cache success & notify sitemaps
	robotsLog.Info("Successfully fetched and parsed robots.txt")
	rh.robotsCacheMu.Lock()
	rh.robotsCache[host] = data
	rh.robotsCacheMu.Unlock()

	if rh.sitemapNotifier != nil && len(data.Sitemaps) > 0 {
		robotsLog.Infof("Found %d sitemap directive(s)", len(data.Sitemaps))
		for _, sitemapURL := range data.Sitemaps {
			rh.sitemapNotifier.FoundSitemap(sitemapURL)
		}
	}

	return data
}

// TestAgent checks if the user agent is allowed access based on cached or
// freshly fetched rules. Returns true if allowed, and true whenever the
// rules could not be obtained.
func (rh *RobotsHandler) TestAgent(ctx context.Context, targetURL *url.URL, userAgent string) bool {
	robotsData := rh.GetRobotsData(ctx, targetURL)
	if robotsData == nil {
		return true
	}
	return robotsData.TestAgent(targetURL.RequestURI(), userAgent)
}
