package parse

import (
	"net/url"
	"strings"
)

// excludedExtensions lists path suffixes that never yield crawlable page
// content. PDFs are intentionally absent; they get their own handling.
var excludedExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".ico",
	".mp3", ".wav", ".ogg", ".m4a", ".mp4", ".avi", ".mov", ".wmv",
	".zip", ".rar", ".tar", ".gz", ".7z", ".exe", ".dmg", ".pkg",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".css", ".js", ".xml", ".json", ".rss", ".atom",
}

// IsCrawlable reports whether a URL points at fetchable page content:
// http(s) scheme, a non-empty host, and a path that is not a known binary
// or asset extension.
func IsCrawlable(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}
	return true
}

// IsPDF reports whether a URL's path ends in .pdf, ignoring case and the
// query string.
func IsPDF(u *url.URL) bool {
	if u == nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}
