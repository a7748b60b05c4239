package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"crawlops/pkg/config"
	"crawlops/pkg/extract"
	"crawlops/pkg/log"
	"crawlops/pkg/models"
	"crawlops/pkg/utils"
)

// BrowserStrategy renders pages in a headless Chrome instance so that
// JavaScript-built content is present before extraction. One browser
// process is shared across crawls; each page gets its own tab.
type BrowserStrategy struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	cfg           *config.AppConfig
	log           *logrus.Logger
}

// NewBrowserStrategy launches the shared browser process. Call Close when
// the application shuts down.
func NewBrowserStrategy(cfg *config.AppConfig, logger *logrus.Logger) *BrowserStrategy {
	headless := true
	if cfg.BrowserHeadless != nil {
		headless = *cfg.BrowserHeadless
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.ChromedpLogf(logger)),
		chromedp.WithErrorf(log.ChromedpErrorf(logger)),
	)

	return &BrowserStrategy{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		cfg:           cfg,
		log:           logger,
	}
}

func (b *BrowserStrategy) Name() string { return "browser" }

// Close shuts down the shared browser process.
func (b *BrowserStrategy) Close() {
	b.browserCancel()
	b.allocCancel()
}

// Fetch renders the page in a fresh tab, waits for the document to be
// ready, scrolls once to trigger lazy loading, and extracts from the
// rendered DOM. All failures are wrapped in ErrBrowserFetch so the
// pipeline falls through to the HTTP strategy.
func (b *BrowserStrategy) Fetch(ctx context.Context, req *Request) (*models.PageResult, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	defer tabCancel()

	timeout := b.cfg.BrowserTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, timeout)
	defer timeoutCancel()

	// Propagate caller cancellation into the tab
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	// Record the status code of the main document response
	var statusCode int
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument && statusCode == 0 {
				statusCode = int(resp.Response.Status)
			}
		}
	})

	headers := make(network.Headers)
	for name, values := range req.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	if cookieHeader := cookieHeaderValue(req.Cookies); cookieHeader != "" {
		headers["Cookie"] = cookieHeader
	}

	var renderedHTML, location string
	actions := []chromedp.Action{network.Enable()}
	if len(headers) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	actions = append(actions,
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body"),
		// Scroll to the bottom so lazy-loaded content renders
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &renderedHTML),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, utils.WrapErrorf(utils.ErrBrowserFetch, "rendering '%s'", req.URL)
	}

	finalURL, err := url.Parse(location)
	if err != nil || finalURL.Host == "" {
		finalURL, err = url.Parse(req.URL)
		if err != nil {
			return nil, utils.WrapErrorf(utils.ErrParsing, "parsing final URL '%s'", req.URL)
		}
	}

	if statusCode == 0 {
		statusCode = 200
	}
	// A rendered error page is still a failed fetch; classify it the same
	// way the HTTP strategy does so the pipeline treats both paths alike
	if statusCode < 200 || statusCode >= 300 {
		return nil, documentStatusError(statusCode, req.URL)
	}

	content, err := extract.FromHTML(renderedHTML, finalURL)
	if err != nil {
		return nil, err
	}

	return buildPageResult(req.URL, statusCode, models.FetchMethodBrowser, content, b.cfg), nil
}

// documentStatusError maps a non-2xx main document status to the HTTP
// error sentinels.
func documentStatusError(statusCode int, pageURL string) error {
	sentinel := utils.ErrOtherHTTPError
	switch {
	case statusCode >= 500:
		sentinel = utils.ErrServerHTTPError
	case statusCode >= 400:
		sentinel = utils.ErrClientHTTPError
	}
	return fmt.Errorf("%w: status %d rendering '%s'", sentinel, statusCode, pageURL)
}

func cookieHeaderValue(cookies []*http.Cookie) string {
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
