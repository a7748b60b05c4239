package pdf

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"crawlops/pkg/config"
	"crawlops/pkg/extract"
	"crawlops/pkg/fetch"
	"crawlops/pkg/models"
	"crawlops/pkg/utils"
)

// maxPDFBody caps PDF downloads at 10MB
const maxPDFBody = 10 << 20

// minURLLength filters regex fragments too short to be real URLs
const minURLLength = 6

var (
	// httpURLPattern matches absolute http/https URLs in extracted text
	httpURLPattern = regexp.MustCompile(`(?i)https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

	// emailPattern matches addresses, reported as mailto: links
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// uriAnnotationPattern matches /URI link annotations in the raw PDF
	// bytes, catching hyperlinks that never appear in the text layer
	uriAnnotationPattern = regexp.MustCompile(`/URI\s*\(([^)]+)\)`)
)

// Extractor downloads a PDF and produces a PageResult with its text content
// and every URL it can harvest, from the text layer and from link
// annotations. It plugs into the fetch pipeline as the strategy for URLs
// the crawler routes to the PDF branch.
type Extractor struct {
	fetcher *fetch.Fetcher
	cfg     *config.AppConfig
	log     *logrus.Logger
}

// NewExtractor creates a PDF Extractor on top of a retrying Fetcher.
func NewExtractor(fetcher *fetch.Fetcher, cfg *config.AppConfig, log *logrus.Logger) *Extractor {
	return &Extractor{fetcher: fetcher, cfg: cfg, log: log}
}

func (e *Extractor) Name() string { return "pdf" }

// Fetch downloads the PDF (size-capped), extracts the text layer, and
// harvests outbound links. Policy headers and cookies are forwarded so
// authenticated PDFs behind the same session still resolve.
func (e *Extractor) Fetch(ctx context.Context, req *fetch.Request) (*models.PageResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrRequestCreation, "creating GET request for '%s'", req.URL)
	}
	for name, values := range req.Header {
		if len(values) > 0 {
			httpReq.Header.Set(name, values[0])
		}
	}
	httpReq.Header.Set("Accept", "application/pdf,application/octet-stream;q=0.9,*/*;q=0.8")
	for _, cookie := range req.Cookies {
		httpReq.AddCookie(cookie)
	}

	resp, err := e.fetcher.FetchWithRetry(httpReq, ctx)
	if err != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBody))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrResponseBodyRead, "reading PDF body for '%s'", req.URL)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, utils.WrapErrorf(utils.ErrParsing, "'%s' is not a PDF document", req.URL)
	}

	text, title := e.extractText(data, req.URL)
	links := harvestLinks(text, data)

	result := &models.PageResult{
		URL:        req.URL,
		Success:    true,
		Title:      title,
		Text:       text,
		WordCount:  len(strings.Fields(text)),
		Links:      links,
		StatusCode: resp.StatusCode,
		Method:     models.FetchMethodPDF,
		FetchedAt:  time.Now().UTC(),
	}
	if e.cfg.EnableTokenCounting {
		if count := extract.CountTokens(text); count >= 0 {
			result.TokenCount = count
		}
	}
	return result, nil
}

// extractText pulls the plain-text layer and a title from the document.
// Extraction failures are tolerated: a PDF with an unreadable text layer
// still yields its annotation links, so we log and continue with an
// empty body rather than failing the page.
func (e *Extractor) extractText(data []byte, pdfURL string) (text, title string) {
	title = titleFromURL(pdfURL)

	// The parser panics on some malformed files instead of returning an error
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("url", pdfURL).Warnf("PDF parser panicked: %v", r)
			text = ""
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.log.WithField("url", pdfURL).Warnf("Unreadable PDF structure: %v", err)
		return "", title
	}

	if t := strings.TrimSpace(reader.Trailer().Key("Info").Key("Title").Text()); t != "" {
		title = t
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		e.log.WithField("url", pdfURL).Warnf("PDF text extraction failed: %v", err)
		return "", title
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		e.log.WithField("url", pdfURL).Warnf("PDF text read failed: %v", err)
		return "", title
	}
	return strings.TrimSpace(buf.String()), title
}

// titleFromURL falls back to the PDF's file name when the document
// carries no Title metadata.
func titleFromURL(pdfURL string) string {
	parsed, err := url.Parse(pdfURL)
	if err != nil {
		return "PDF Document"
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return "PDF Document"
	}
	return name
}

// harvestLinks collects URLs from the text layer and /URI link annotations
// in the raw bytes, deduplicated and sorted. Email addresses become
// mailto: links.
func harvestLinks(text string, raw []byte) []string {
	seen := make(map[string]bool)

	for _, match := range httpURLPattern.FindAllString(text, -1) {
		if u := cleanURL(match); u != "" {
			seen[u] = true
		}
	}
	for _, match := range emailPattern.FindAllString(text, -1) {
		seen["mailto:"+match] = true
	}
	for _, match := range uriAnnotationPattern.FindAllSubmatch(raw, -1) {
		uri := cleanURL(string(match[1]))
		if uri == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(uri), "http") || strings.HasPrefix(strings.ToLower(uri), "mailto:") {
			seen[uri] = true
		}
	}

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

// cleanURL strips trailing punctuation that the regex drags in from
// surrounding prose and drops fragments too short to be real URLs.
func cleanURL(raw string) string {
	u := strings.Trim(raw, `.,;:!?)"'`)
	if len(u) < minURLLength {
		return ""
	}
	return u
}
