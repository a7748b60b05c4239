package parse

import (
	"encoding/xml"
	"strings"

	"crawlops/pkg/utils"
)

// --- XML Structs for Sitemap Parsing ---

// XMLURL represents a <url> element in a sitemap
type XMLURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLURLSet represents a <urlset> element in a sitemap
type XMLURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []XMLURL `xml:"url"`
}

// XMLSitemap represents a <sitemap> element in a sitemap index file
type XMLSitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLSitemapIndex represents a <sitemapindex> element
type XMLSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []XMLSitemap `xml:"sitemap"`
}

// ParseSitemap decodes sitemap XML content. It returns page URLs for a
// <urlset> document, or child sitemap URLs for a <sitemapindex> document.
// Loc values are whitespace-trimmed; empty entries are dropped.
func ParseSitemap(data []byte) (pageURLs []string, childSitemaps []string, err error) {
	var urlSet XMLURLSet
	if xmlErr := xml.Unmarshal(data, &urlSet); xmlErr == nil && urlSet.XMLName.Local == "urlset" {
		for _, u := range urlSet.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				pageURLs = append(pageURLs, loc)
			}
		}
		return pageURLs, nil, nil
	}

	var index XMLSitemapIndex
	if xmlErr := xml.Unmarshal(data, &index); xmlErr == nil && index.XMLName.Local == "sitemapindex" {
		for _, s := range index.Sitemaps {
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				childSitemaps = append(childSitemaps, loc)
			}
		}
		return nil, childSitemaps, nil
	}

	return nil, nil, utils.WrapErrorf(utils.ErrParsing, "XML sitemap decode failed")
}
