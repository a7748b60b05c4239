package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"crawlops/pkg/config"
	"crawlops/pkg/extract"
	"crawlops/pkg/models"
	"crawlops/pkg/utils"
)

// defaultBrowserHeaders mimics a desktop Chrome request so that sites
// serving reduced content to obvious bots still respond with the full page.
// Policy headers override any of these.
var defaultBrowserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Cache-Control":             "max-age=0",
}

// maxResponseBody caps page downloads at 10MB
const maxResponseBody = 10 << 20

// HTTPStrategy fetches pages with a plain HTTP GET and static HTML
// extraction. It serves as the fallback when browser rendering fails
// or is disabled.
type HTTPStrategy struct {
	fetcher *Fetcher
	cfg     *config.AppConfig
	log     *logrus.Logger
}

// NewHTTPStrategy creates the HTTP fallback strategy on top of a retrying Fetcher
func NewHTTPStrategy(fetcher *Fetcher, cfg *config.AppConfig, log *logrus.Logger) *HTTPStrategy {
	return &HTTPStrategy{fetcher: fetcher, cfg: cfg, log: log}
}

func (s *HTTPStrategy) Name() string { return "http_fallback" }

// Fetch performs the GET (with retries), reads the body, and extracts
// title, text, markdown, links, and images from the static HTML.
func (s *HTTPStrategy) Fetch(ctx context.Context, req *Request) (*models.PageResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrRequestCreation, "creating GET request for '%s'", req.URL)
	}

	for name, value := range defaultBrowserHeaders {
		httpReq.Header.Set(name, value)
	}
	for name, values := range req.Header {
		if len(values) > 0 {
			httpReq.Header.Set(name, values[0])
		}
	}
	for _, cookie := range req.Cookies {
		httpReq.AddCookie(cookie)
	}

	resp, err := s.fetcher.FetchWithRetry(httpReq, ctx)
	if err != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrResponseBodyRead, "reading response body for '%s'", req.URL)
	}

	// Redirects may have moved us; extract relative links against the
	// final URL, not the requested one
	finalURL := resp.Request.URL
	if finalURL == nil {
		finalURL, err = url.Parse(req.URL)
		if err != nil {
			return nil, utils.WrapErrorf(utils.ErrParsing, "parsing final URL '%s'", req.URL)
		}
	}

	content, err := extract.FromHTML(string(body), finalURL)
	if err != nil {
		return nil, err
	}

	return buildPageResult(req.URL, resp.StatusCode, models.FetchMethodFallback, content, s.cfg), nil
}

// buildPageResult assembles a successful PageResult from extracted content,
// counting tokens only when the application enables it.
func buildPageResult(pageURL string, statusCode int, method models.FetchMethod, content *extract.Content, cfg *config.AppConfig) *models.PageResult {
	result := &models.PageResult{
		URL:        pageURL,
		Success:    true,
		Title:      content.Title,
		Text:       content.Text,
		Markdown:   content.Markdown,
		WordCount:  content.WordCount,
		Links:      content.Links,
		Images:     content.Images,
		StatusCode: statusCode,
		Method:     method,
		FetchedAt:  time.Now().UTC(),
	}
	if cfg.EnableTokenCounting {
		if count := extract.CountTokens(content.Text); count >= 0 {
			result.TokenCount = count
		}
	}
	return result
}
