package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"crawlops/pkg/aggregate"
	"crawlops/pkg/models"
	"crawlops/pkg/utils"
)

// Format names accepted by WriteAll
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatText     = "text"
)

var allFormats = []string{FormatJSON, FormatMarkdown, FormatHTML, FormatText}

// Writer persists crawl reports as export artifacts on disk
type Writer struct {
	outputDir string
	log       *logrus.Entry
}

// NewWriter creates a Writer rooted at outputDir
func NewWriter(outputDir string, logger *logrus.Logger) *Writer {
	return &Writer{
		outputDir: outputDir,
		log:       logger.WithField("component", "export_writer"),
	}
}

// WriteAll writes the requested formats for a report, one file per format,
// named <slug>_<timestamp>.<ext>, plus a site tree listing of the crawled
// URLs. An empty or nil format list means every supported format. Unknown
// format names are skipped with a warning. Returns the paths written.
func (w *Writer) WriteAll(report *models.CrawlReport, formats []string) ([]string, error) {
	if len(formats) == 0 {
		formats = allFormats
	}

	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return nil, utils.WrapErrorf(utils.ErrFilesystem, "creating export directory '%s'", w.outputDir)
	}

	base := fmt.Sprintf("%s_%s", utils.SiteSlug(report.SeedURL), report.FinishedAt.Format("20060102_150405"))
	expLog := w.log.WithFields(logrus.Fields{"crawl_id": report.ID, "base": base})

	var written []string
	for _, format := range formats {
		var path string
		var err error

		switch strings.ToLower(strings.TrimSpace(format)) {
		case FormatJSON:
			path, err = w.writeJSON(base, report)
		case FormatMarkdown, "md":
			path, err = w.writeMarkdown(base, report)
		case FormatHTML:
			path, err = w.writeHTML(base, report)
		case FormatText, "txt":
			path, err = w.writeText(base, report)
		default:
			expLog.Warnf("Skipping unknown export format '%s'", format)
			continue
		}
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	treePath, err := w.writeSiteTree(base, report)
	if err != nil {
		return written, err
	}
	written = append(written, treePath)

	expLog.Infof("Wrote %d export artifact(s)", len(written))
	return written, nil
}

func (w *Writer) writeJSON(base string, report *models.CrawlReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", utils.WrapErrorf(utils.ErrParsing, "encoding report '%s'", report.ID)
	}
	return w.writeFile(base+".json", data)
}

// writeMarkdown prepends a table of contents built from the combined
// document's headings
func (w *Writer) writeMarkdown(base string, report *models.CrawlReport) (string, error) {
	var sb strings.Builder

	headings := aggregate.ExtractHeadings([]byte(report.CombinedMarkdown))
	if len(headings) > 0 {
		sb.WriteString("## Contents\n\n")
		for _, heading := range headings {
			sb.WriteString("- ")
			sb.WriteString(heading)
			sb.WriteString("\n")
		}
		sb.WriteString("\n---\n\n")
	}
	sb.WriteString(report.CombinedMarkdown)

	return w.writeFile(base+".md", []byte(sb.String()))
}

func (w *Writer) writeHTML(base string, report *models.CrawlReport) (string, error) {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	sb.WriteString(htmlEscape(report.SeedURL))
	sb.WriteString("</title>\n</head>\n<body>\n")
	sb.WriteString(report.CombinedHTML)
	sb.WriteString("\n</body>\n</html>\n")

	return w.writeFile(base+".html", []byte(sb.String()))
}

func (w *Writer) writeText(base string, report *models.CrawlReport) (string, error) {
	return w.writeFile(base+".txt", []byte(report.CombinedText))
}

// writeSiteTree renders the crawled URLs as a directory-style tree
func (w *Writer) writeSiteTree(base string, report *models.CrawlReport) (string, error) {
	urls := make([]string, 0, len(report.Pages))
	for _, page := range report.Pages {
		if page.Success {
			urls = append(urls, page.URL)
		}
	}
	return w.writeFile(base+"_sitemap.txt", []byte(utils.BuildURLTree(urls)))
}

func (w *Writer) writeFile(name string, data []byte) (string, error) {
	path := filepath.Join(w.outputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", utils.WrapErrorf(utils.ErrFilesystem, "writing export file '%s'", path)
	}
	w.log.Debugf("Wrote %s (%d bytes)", path, len(data))
	return path, nil
}

func htmlEscape(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return replacer.Replace(s)
}
