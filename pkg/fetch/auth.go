package fetch

import (
	"encoding/base64"
	"net/http"

	"crawlops/pkg/config"
	"crawlops/pkg/models"
)

// BuildHeaders assembles the request headers a crawl policy implies:
// the computed Authorization header, custom headers, stored session state,
// and the effective User-Agent. The same header set is handed to every
// strategy so browser and fallback requests present identically.
func BuildHeaders(policy *config.CrawlPolicy, session *models.Session, baseUserAgent string) http.Header {
	hdr := make(http.Header)

	// User-Agent: stored session agent wins, then the configured base,
	// optionally suffixed per policy
	userAgent := baseUserAgent
	if session != nil && session.UserAgent != "" {
		userAgent = session.UserAgent
	}
	if policy.UserAgentSuffix != "" {
		userAgent = userAgent + " " + policy.UserAgentSuffix
	}
	if userAgent != "" {
		hdr.Set("User-Agent", userAgent)
	}

	// Computed Authorization header
	switch policy.AuthType {
	case config.AuthTypeBearer:
		hdr.Set("Authorization", "Bearer "+policy.AuthToken)
	case config.AuthTypeBasic:
		credentials := base64.StdEncoding.EncodeToString(
			[]byte(policy.AuthUsername + ":" + policy.AuthPassword),
		)
		hdr.Set("Authorization", "Basic "+credentials)
	case config.AuthTypeCustom:
		hdr.Set("Authorization", policy.AuthToken)
	}

	// Stored session tokens ride along as headers unless already set
	if session != nil {
		for name, value := range session.Tokens {
			if hdr.Get(name) == "" {
				hdr.Set(name, value)
			}
		}
	}

	// Custom headers merge last and override everything, including a
	// computed Authorization, when the caller names it explicitly
	for name, value := range policy.CustomHeaders {
		hdr.Set(name, value)
	}

	return hdr
}

// SessionCookies converts a stored session's cookie map into http.Cookie
// values for request attachment.
func SessionCookies(session *models.Session) []*http.Cookie {
	if session == nil || len(session.Cookies) == 0 {
		return nil
	}
	cookies := make([]*http.Cookie, 0, len(session.Cookies))
	for name, value := range session.Cookies {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	return cookies
}
