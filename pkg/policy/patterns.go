package policy

import (
	"regexp"

	"github.com/sirupsen/logrus"
)

// PatternFilter applies include/exclude regex patterns to candidate URLs.
// Matching is a case-insensitive search over the full URL string. Exclude
// patterns win over include patterns. An empty include list allows
// everything; malformed patterns are logged and skipped so a bad pattern
// never aborts a crawl.
type PatternFilter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewPatternFilter compiles the given pattern lists. Invalid patterns are
// reported on the logger at warn level and dropped.
func NewPatternFilter(include, exclude []string, log *logrus.Entry) *PatternFilter {
	return &PatternFilter{
		include: compilePatterns(include, "include", log),
		exclude: compilePatterns(exclude, "exclude", log),
	}
}

func compilePatterns(patterns []string, kind string, log *logrus.Entry) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			if log != nil {
				log.WithFields(logrus.Fields{
					"pattern": pattern,
					"kind":    kind,
				}).Warnf("Skipping invalid regex pattern: %v", err)
			}
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// Allow reports whether a URL passes the filter
func (f *PatternFilter) Allow(rawURL string) bool {
	for _, re := range f.exclude {
		if re.MatchString(rawURL) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, re := range f.include {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}
