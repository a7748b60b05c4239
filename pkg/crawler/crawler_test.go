package crawler

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlops/pkg/config"
	"crawlops/pkg/fetch"
	"crawlops/pkg/models"
	"crawlops/pkg/utils"
)

// fakeSite serves canned PageResults keyed by URL and records fetch order.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string][]string // URL -> outbound links
	missing map[string]bool     // URLs that fail to fetch
	fetched []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{pages: make(map[string][]string), missing: make(map[string]bool)}
}

func (s *fakeSite) page(pageURL string, links ...string) {
	s.pages[pageURL] = links
}

func (s *fakeSite) Fetch(_ context.Context, req *fetch.Request) (*models.PageResult, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, req.URL)
	s.mu.Unlock()

	if s.missing[req.URL] {
		return nil, utils.WrapErrorf(utils.ErrAllStrategiesFailed, "fetching '%s'", req.URL)
	}
	links, ok := s.pages[req.URL]
	if !ok {
		return nil, utils.WrapErrorf(utils.ErrAllStrategiesFailed, "fetching '%s'", req.URL)
	}
	return &models.PageResult{
		URL:       req.URL,
		Success:   true,
		Title:     "Page " + req.URL,
		Text:      "content of " + req.URL,
		Markdown:  "content of " + req.URL,
		WordCount: 3,
		Links:     links,
		Method:    models.FetchMethodBrowser,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// denyRobots blocks URLs containing any of the given substrings.
type denyRobots struct {
	blocked []string
}

func (r *denyRobots) TestAgent(_ context.Context, u *url.URL, _ string) bool {
	for _, b := range r.blocked {
		if strings.Contains(u.String(), b) {
			return false
		}
	}
	return true
}

func testPolicy(seed string) *config.CrawlPolicy {
	depth := 2
	return &config.CrawlPolicy{
		URL:      seed,
		MaxDepth: &depth,
		MaxPages: 100,
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func runCrawl(t *testing.T, policy *config.CrawlPolicy, opts Options) *models.CrawlReport {
	t.Helper()
	c := New("test-run", policy, &config.AppConfig{UserAgent: "test-agent"}, nil, opts, quietLogger())
	report, err := c.Run(context.Background())
	require.NoError(t, err)
	return report
}

func TestRun_BFSOrderAndOrderField(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/", "https://example.com/docs/a", "https://example.com/docs/b")
	site.page("https://example.com/docs/a", "https://example.com/docs/a1")
	site.page("https://example.com/docs/b")
	site.page("https://example.com/docs/a1")

	report := runCrawl(t, testPolicy("https://example.com/docs/"), Options{Pipeline: site})

	var urls []string
	for i, page := range report.Pages {
		urls = append(urls, page.URL)
		assert.Equal(t, i, page.Order)
	}
	assert.Equal(t, []string{
		"https://example.com/docs/",
		"https://example.com/docs/a",
		"https://example.com/docs/b",
		"https://example.com/docs/a1",
	}, urls)
	assert.Equal(t, 1, report.Pages[1].Depth)
	assert.Equal(t, 2, report.Pages[3].Depth)
	assert.Equal(t, 2, report.Summary.MaxDepthReached)
}

func TestRun_PageBudget(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/",
		"https://example.com/docs/a", "https://example.com/docs/b", "https://example.com/docs/c")
	site.page("https://example.com/docs/a")
	site.page("https://example.com/docs/b")
	site.page("https://example.com/docs/c")

	policy := testPolicy("https://example.com/docs/")
	policy.MaxPages = 2
	report := runCrawl(t, policy, Options{Pipeline: site})

	assert.Len(t, report.Pages, 2)
}

func TestRun_DepthLimit(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/", "https://example.com/docs/a")
	site.page("https://example.com/docs/a", "https://example.com/docs/b")
	site.page("https://example.com/docs/b", "https://example.com/docs/c")
	site.page("https://example.com/docs/c")

	policy := testPolicy("https://example.com/docs/")
	depth := 1
	policy.MaxDepth = &depth
	report := runCrawl(t, policy, Options{Pipeline: site})

	assert.Len(t, report.Pages, 2, "depth 0 and 1 only")
}

func TestRun_ZeroDepthFetchesSeedOnly(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/", "https://example.com/docs/a")
	site.page("https://example.com/docs/a")

	policy := testPolicy("https://example.com/docs/")
	depth := 0
	policy.MaxDepth = &depth
	report := runCrawl(t, policy, Options{Pipeline: site})

	require.Len(t, report.Pages, 1)
	assert.Equal(t, "https://example.com/docs/", report.Pages[0].URL)
}

func TestRun_ScopeConfinement(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/",
		"https://example.com/docs/in",
		"https://example.com/blog/out",
		"https://other.example.org/out")
	site.page("https://example.com/docs/in")

	report := runCrawl(t, testPolicy("https://example.com/docs/"), Options{Pipeline: site})

	assert.Len(t, report.Pages, 2)
	for _, page := range report.Pages {
		assert.NotContains(t, page.URL, "out")
	}
}

func TestRun_VisitedDeduplication(t *testing.T) {
	site := newFakeSite()
	// Both children link the same grandchild; it must be fetched once
	site.page("https://example.com/docs/", "https://example.com/docs/a", "https://example.com/docs/b")
	site.page("https://example.com/docs/a", "https://example.com/docs/shared")
	site.page("https://example.com/docs/b", "https://example.com/docs/shared")
	site.page("https://example.com/docs/shared")

	report := runCrawl(t, testPolicy("https://example.com/docs/"), Options{Pipeline: site})

	assert.Len(t, report.Pages, 4)
	count := 0
	for _, u := range site.fetched {
		if u == "https://example.com/docs/shared" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRun_SeedLinkBackNotRefetched(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/", "https://example.com/docs/a")
	site.page("https://example.com/docs/a", "https://example.com/docs/")

	report := runCrawl(t, testPolicy("https://example.com/docs/"), Options{Pipeline: site})

	assert.Len(t, report.Pages, 2)
}

func TestRun_ExcludePattern(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/",
		"https://example.com/docs/keep", "https://example.com/docs/private/page")
	site.page("https://example.com/docs/keep")

	policy := testPolicy("https://example.com/docs/")
	policy.ExcludePatterns = []string{"/private/"}
	report := runCrawl(t, policy, Options{Pipeline: site})

	assert.Len(t, report.Pages, 2)
}

func TestRun_ExcludedSeedNotFetched(t *testing.T) {
	site := newFakeSite()
	site.page("https://a.com/private/home")

	policy := testPolicy("https://a.com/private/home")
	policy.ExcludePatterns = []string{"/private"}
	report := runCrawl(t, policy, Options{Pipeline: site})

	assert.Empty(t, report.Pages, "a seed hit by an exclude pattern must not be fetched")
	assert.Empty(t, site.fetched)
	assert.False(t, report.Success)
}

func TestRun_SitemapURLsRespectDepthLimit(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/")
	site.page("https://example.com/docs/from-sitemap")

	policy := testPolicy("https://example.com/docs/")
	depth := 0
	policy.MaxDepth = &depth
	policy.SeedFromSitemap = true

	robots := &announcingRobots{sitemapURL: "https://example.com/sitemap.xml"}
	sitemaps := &fakeSitemaps{urls: []string{"https://example.com/docs/from-sitemap"}}
	c := New("test-run", policy, &config.AppConfig{UserAgent: "test-agent"}, nil,
		Options{Pipeline: site, Robots: robots, Sitemaps: sitemaps}, quietLogger())
	robots.crawler = c

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	// Sitemap entries enter the frontier at depth 1, past the limit
	require.Len(t, report.Pages, 1)
	assert.Equal(t, "https://example.com/docs/", report.Pages[0].URL)
	assert.NotContains(t, site.fetched, "https://example.com/docs/from-sitemap")
}

func TestRun_RobotsDisallowedSkipped(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/", "https://example.com/docs/secret")
	site.page("https://example.com/docs/secret")

	robots := &denyRobots{blocked: []string{"secret"}}
	report := runCrawl(t, testPolicy("https://example.com/docs/"), Options{Pipeline: site, Robots: robots})

	// The disallowed URL is skipped entirely, not recorded as a failure
	assert.Len(t, report.Pages, 1)
	assert.Equal(t, 0, report.Summary.FailedPages)
	assert.NotContains(t, site.fetched, "https://example.com/docs/secret")
}

func TestRun_RobotsIgnoredWhenDisabled(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/", "https://example.com/docs/secret")
	site.page("https://example.com/docs/secret")

	policy := testPolicy("https://example.com/docs/")
	policy.IgnoreRobots = true
	robots := &denyRobots{blocked: []string{"secret"}}
	report := runCrawl(t, policy, Options{Pipeline: site, Robots: robots})

	assert.Len(t, report.Pages, 2)
}

func TestRun_InvalidSeed(t *testing.T) {
	for _, seed := range []string{"", "not a url", "example.com/docs", "ftp://example.com/x"} {
		c := New("test-run", testPolicy(seed), &config.AppConfig{}, nil, Options{Pipeline: newFakeSite()}, quietLogger())
		report, err := c.Run(context.Background())

		assert.Nil(t, report, "seed %q", seed)
		assert.True(t, errors.Is(err, utils.ErrInvalidSeed), "seed %q: got %v", seed, err)
		assert.Equal(t, models.CrawlStateFailed, c.Status().State)
	}
}

func TestRun_FetchFailureRecorded(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/", "https://example.com/docs/broken", "https://example.com/docs/ok")
	site.missing["https://example.com/docs/broken"] = true
	site.page("https://example.com/docs/ok")

	report := runCrawl(t, testPolicy("https://example.com/docs/"), Options{Pipeline: site})

	assert.Len(t, report.Pages, 3)
	assert.Equal(t, 1, report.Summary.FailedPages)

	var failed *models.PageResult
	for i := range report.Pages {
		if !report.Pages[i].Success {
			failed = &report.Pages[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "https://example.com/docs/broken", failed.URL)
	assert.NotEmpty(t, failed.Error)
	assert.True(t, report.Success, "run succeeds overall when some pages succeeded")
}

func TestRun_LinkCapPerPage(t *testing.T) {
	site := newFakeSite()
	var links []string
	for i := range 30 {
		link := "https://example.com/docs/p" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		links = append(links, link)
		site.page(link)
	}
	site.page("https://example.com/docs/", links...)

	report := runCrawl(t, testPolicy("https://example.com/docs/"), Options{Pipeline: site})

	assert.Len(t, report.Pages, 1+maxLinksPerPage)
}

func TestRun_PDFRouting(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/", "https://example.com/docs/manual.pdf")

	pdf := &fakeStrategy{result: &models.PageResult{
		URL:     "https://example.com/docs/manual.pdf",
		Success: true,
		Method:  models.FetchMethodPDF,
	}}

	policy := testPolicy("https://example.com/docs/")
	policy.CrawlPDFLinks = true
	report := runCrawl(t, policy, Options{Pipeline: site, PDF: pdf})

	require.Len(t, report.Pages, 2)
	assert.Equal(t, models.FetchMethodPDF, report.Pages[1].Method)
	assert.Equal(t, 1, pdf.calls, "PDF URLs must route to the PDF strategy")
	assert.NotContains(t, site.fetched, "https://example.com/docs/manual.pdf")
}

func TestRun_PDFLinksSkippedWhenDisabled(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/", "https://example.com/docs/manual.pdf")

	report := runCrawl(t, testPolicy("https://example.com/docs/"), Options{Pipeline: site})

	assert.Len(t, report.Pages, 1)
}

func TestRun_CancelledContextStops(t *testing.T) {
	site := newFakeSite()
	site.page("https://example.com/docs/", "https://example.com/docs/a")
	site.page("https://example.com/docs/a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New("test-run", testPolicy("https://example.com/docs/"), &config.AppConfig{}, nil, Options{Pipeline: site}, quietLogger())
	report, err := c.Run(ctx)

	require.NoError(t, err, "cancellation yields a partial report, not an error")
	assert.Empty(t, report.Pages)
	assert.Equal(t, models.CrawlStateStopped, c.Status().State)
}

// fakeSitemaps satisfies SitemapSource with a fixed URL list.
type fakeSitemaps struct {
	urls []string
}

func (f *fakeSitemaps) Load(_ context.Context, _ string) []string { return f.urls }

// announcingRobots allows everything and advertises one sitemap to the
// crawler on every check, like a robots.txt with a Sitemap directive.
type announcingRobots struct {
	crawler    *Crawler
	sitemapURL string
}

func (r *announcingRobots) TestAgent(_ context.Context, _ *url.URL, _ string) bool {
	if r.crawler != nil {
		r.crawler.FoundSitemap(r.sitemapURL)
	}
	return true
}

// fakeStrategy satisfies fetch.Strategy for PDF routing tests.
type fakeStrategy struct {
	result *models.PageResult
	calls  int
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Fetch(_ context.Context, _ *fetch.Request) (*models.PageResult, error) {
	f.calls++
	return f.result, nil
}
