package aggregate

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"crawlops/pkg/models"
	"crawlops/pkg/parse"
	"crawlops/pkg/utils"
)

const pageSeparator = "\n\n---\n\n"

// Summarize folds a result list into its summary statistics. Pure and
// idempotent: calling it twice on the same slice yields the same value and
// never mutates the results.
func Summarize(pages []models.PageResult) models.CrawlSummary {
	var summary models.CrawlSummary
	seenLinks := make(map[string]struct{})
	seenImages := make(map[string]struct{})

	for _, page := range pages {
		summary.TotalPages++
		if page.Depth > summary.MaxDepthReached {
			summary.MaxDepthReached = page.Depth
		}
		if !page.Success {
			summary.FailedPages++
			continue
		}
		summary.SuccessfulPages++
		summary.TotalWords += page.WordCount
		if page.TokenCount > 0 {
			summary.TotalTokens += page.TokenCount
		}
		for _, link := range page.Links {
			key := dedupKey(link)
			if _, ok := seenLinks[key]; !ok {
				seenLinks[key] = struct{}{}
				summary.UniqueLinks++
			}
		}
		for _, image := range page.Images {
			key := dedupKey(image)
			if _, ok := seenImages[key]; !ok {
				seenImages[key] = struct{}{}
				summary.UniqueImages++
			}
		}
	}

	return summary
}

// dedupKey reduces a URL to its normalized form so that casing, default
// ports, and trailing slashes do not inflate the unique counts. Unparseable
// strings count as themselves.
func dedupKey(raw string) string {
	normalized, _, err := parse.ParseAndNormalize(raw)
	if err != nil {
		return raw
	}
	return normalized
}

// CombinedText concatenates the plain text of successful pages, each
// preceded by its title and URL.
func CombinedText(pages []models.PageResult) string {
	var sections []string
	for _, page := range pages {
		if !page.Success || page.Text == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("%s\n%s\n\n%s", page.Title, page.URL, page.Text))
	}
	return strings.Join(sections, pageSeparator)
}

// CombinedMarkdown concatenates the markdown of successful pages, each
// under a heading carrying the title and source URL.
func CombinedMarkdown(pages []models.PageResult) string {
	var sections []string
	for _, page := range pages {
		if !page.Success || page.Markdown == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("# %s\n\nSource: %s\n\n%s", page.Title, page.URL, page.Markdown))
	}
	return strings.Join(sections, pageSeparator)
}

// CombinedHTML renders the combined markdown view to an HTML fragment
func CombinedHTML(pages []models.PageResult) (string, error) {
	markdown := CombinedMarkdown(pages)
	if markdown == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", utils.WrapErrorf(utils.ErrMarkdownConversion, "rendering combined HTML")
	}
	return buf.String(), nil
}

// BuildReport assembles the complete report for a finished run
func BuildReport(id, seedURL string, pages []models.PageResult, startedAt, finishedAt time.Time) (*models.CrawlReport, error) {
	summary := Summarize(pages)

	combinedHTML, err := CombinedHTML(pages)
	if err != nil {
		return nil, err
	}

	return &models.CrawlReport{
		ID:               id,
		Success:          summary.SuccessfulPages > 0,
		SeedURL:          seedURL,
		Pages:            pages,
		Summary:          summary,
		CombinedText:     CombinedText(pages),
		CombinedMarkdown: CombinedMarkdown(pages),
		CombinedHTML:     combinedHTML,
		StartedAt:        startedAt,
		FinishedAt:       finishedAt,
	}, nil
}
