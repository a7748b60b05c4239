package extract

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"crawlops/pkg/parse"
	"crawlops/pkg/utils"
)

// Content holds everything pulled out of a single fetched page
type Content struct {
	Title     string
	Text      string
	Markdown  string
	HTML      string
	Links     []string
	Images    []string
	WordCount int
}

// FromHTML parses raw HTML and extracts the title, visible text, a Markdown
// rendition, and the absolute link/image URLs found in the document
// baseURL is used to resolve relative references; links are returned in
// document order with duplicates removed
func FromHTML(rawHTML string, baseURL *url.URL) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "parsing HTML document")
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = "Untitled Page"
	}

	links := collectLinks(doc, baseURL)
	images := collectImages(doc, baseURL)

	// Strip non-content elements and page chrome before text and markdown
	// extraction
	doc.Find("script, style, noscript, template, iframe, nav, footer, aside, header, menu").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	text := normalizeWhitespace(body.Text())

	bodyHTML, err := goquery.OuterHtml(body.First())
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "serializing cleaned HTML")
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(bodyHTML)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrMarkdownConversion, "converting page to markdown")
	}

	return &Content{
		Title:     title,
		Text:      text,
		Markdown:  strings.TrimSpace(markdown),
		HTML:      rawHTML,
		Links:     links,
		Images:    images,
		WordCount: len(strings.Fields(text)),
	}, nil
}

// collectLinks returns absolute http(s) link targets in document order,
// fragment-stripped and deduplicated. Only crawlable URLs and PDFs survive
func collectLinks(doc *goquery.Document, baseURL *url.URL) []string {
	var links []string
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		resolved, err := parse.Resolve(baseURL, href)
		if err != nil {
			return
		}
		if !parse.IsCrawlable(resolved) && !parse.IsPDF(resolved) {
			return
		}
		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	return links
}

func collectImages(doc *goquery.Document, baseURL *url.URL) []string {
	var images []string
	seen := make(map[string]struct{})

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		resolved, err := parse.Resolve(baseURL, src)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		images = append(images, abs)
	})

	return images
}

// normalizeWhitespace collapses runs of blank lines and intra-line whitespace
// so extracted text reads as plain paragraphs
func normalizeWhitespace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
