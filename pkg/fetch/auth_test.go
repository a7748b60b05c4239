package fetch

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"crawlops/pkg/config"
	"crawlops/pkg/models"
)

func TestBuildHeaders_AuthTypes(t *testing.T) {
	tests := []struct {
		name     string
		policy   config.CrawlPolicy
		expected string
	}{
		{
			name:     "Bearer",
			policy:   config.CrawlPolicy{AuthType: config.AuthTypeBearer, AuthToken: "tok123"},
			expected: "Bearer tok123",
		},
		{
			name:     "Basic",
			policy:   config.CrawlPolicy{AuthType: config.AuthTypeBasic, AuthUsername: "user", AuthPassword: "pass"},
			expected: "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass")),
		},
		{
			name:     "CustomRawToken",
			policy:   config.CrawlPolicy{AuthType: config.AuthTypeCustom, AuthToken: "ApiKey abc"},
			expected: "ApiKey abc",
		},
		{
			name:     "NoneLeavesAuthorizationUnset",
			policy:   config.CrawlPolicy{AuthType: config.AuthTypeNone},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr := BuildHeaders(&tt.policy, nil, "TestAgent/1.0")
			assert.Equal(t, tt.expected, hdr.Get("Authorization"))
		})
	}
}

func TestBuildHeaders_UserAgentPrecedence(t *testing.T) {
	// Base agent used when no session
	hdr := BuildHeaders(&config.CrawlPolicy{}, nil, "Base/1.0")
	assert.Equal(t, "Base/1.0", hdr.Get("User-Agent"))

	// Session agent wins over base
	session := &models.Session{UserAgent: "Session/2.0"}
	hdr = BuildHeaders(&config.CrawlPolicy{}, session, "Base/1.0")
	assert.Equal(t, "Session/2.0", hdr.Get("User-Agent"))

	// Suffix appends to whichever agent won
	policy := &config.CrawlPolicy{UserAgentSuffix: "(+extra)"}
	hdr = BuildHeaders(policy, session, "Base/1.0")
	assert.Equal(t, "Session/2.0 (+extra)", hdr.Get("User-Agent"))
}

func TestBuildHeaders_SessionTokensDoNotOverride(t *testing.T) {
	policy := &config.CrawlPolicy{AuthType: config.AuthTypeBearer, AuthToken: "policy-token"}
	session := &models.Session{
		Tokens: map[string]string{
			"Authorization": "Bearer session-token",
			"X-Api-Key":     "key456",
		},
	}

	hdr := BuildHeaders(policy, session, "")

	// The computed Authorization beats the stored session token, but
	// session tokens fill headers nothing else set
	assert.Equal(t, "Bearer policy-token", hdr.Get("Authorization"))
	assert.Equal(t, "key456", hdr.Get("X-Api-Key"))
}

func TestBuildHeaders_CustomHeadersOverrideEverything(t *testing.T) {
	policy := &config.CrawlPolicy{
		AuthType:      config.AuthTypeBearer,
		AuthToken:     "tok",
		CustomHeaders: map[string]string{"Authorization": "Custom wins", "X-Extra": "1"},
	}

	hdr := BuildHeaders(policy, nil, "")

	assert.Equal(t, "Custom wins", hdr.Get("Authorization"))
	assert.Equal(t, "1", hdr.Get("X-Extra"))
}

func TestSessionCookies(t *testing.T) {
	assert.Nil(t, SessionCookies(nil))
	assert.Nil(t, SessionCookies(&models.Session{}))

	cookies := SessionCookies(&models.Session{
		Cookies: map[string]string{"sid": "abc"},
	})
	assert.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
}
