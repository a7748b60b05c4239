package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlops/pkg/config"
	"crawlops/pkg/models"
	"crawlops/pkg/utils"
)

// fakeStrategy returns a canned result or error and records invocations.
type fakeStrategy struct {
	name   string
	result *models.PageResult
	err    error
	calls  int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Fetch(_ context.Context, _ *Request) (*models.PageResult, error) {
	f.calls++
	return f.result, f.err
}

func TestPipeline_FirstStrategyWins(t *testing.T) {
	primary := &fakeStrategy{name: "primary", result: &models.PageResult{URL: "https://example.com", Success: true}}
	fallback := &fakeStrategy{name: "fallback", result: &models.PageResult{}}

	p := NewPipeline(testLogger(), primary, fallback)
	result, err := p.Fetch(context.Background(), &Request{URL: "https://example.com"})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls, "fallback must not run when primary succeeds")
}

func TestPipeline_FallsThroughOnError(t *testing.T) {
	primary := &fakeStrategy{name: "primary", err: utils.ErrBrowserFetch}
	fallback := &fakeStrategy{name: "fallback", result: &models.PageResult{URL: "https://example.com", Success: true}}

	p := NewPipeline(testLogger(), primary, fallback)
	result, err := p.Fetch(context.Background(), &Request{URL: "https://example.com"})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestPipeline_AllFail(t *testing.T) {
	primary := &fakeStrategy{name: "primary", err: utils.ErrBrowserFetch}
	fallback := &fakeStrategy{name: "fallback", err: utils.ErrRetryFailed}

	p := NewPipeline(testLogger(), primary, fallback)
	result, err := p.Fetch(context.Background(), &Request{URL: "https://example.com"})

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrAllStrategiesFailed))
	assert.Contains(t, err.Error(), utils.ErrRetryFailed.Error(), "last strategy error should be reported")
}

func TestPipeline_NoStrategies(t *testing.T) {
	p := NewPipeline(testLogger())
	result, err := p.Fetch(context.Background(), &Request{URL: "https://example.com"})

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, utils.ErrAllStrategiesFailed))
}

func TestPipeline_ContextCancelled(t *testing.T) {
	primary := &fakeStrategy{name: "primary", result: &models.PageResult{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(testLogger(), primary)
	_, err := p.Fetch(ctx, &Request{URL: "https://example.com"})

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, primary.calls)
}

func newTestHTTPStrategy(t *testing.T) *HTTPStrategy {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.AppConfig{
		MaxRetries:        0,
		InitialRetryDelay: time.Millisecond,
		MaxRetryDelay:     time.Millisecond,
	}
	return NewHTTPStrategy(NewFetcher(testClient(), cfg, logger), cfg, logger)
}

func TestHTTPStrategy_FetchAndExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><head><title>Docs Home</title></head>
<body><p>Hello world</p><a href="/docs/next">Next</a></body></html>`)
	}))
	t.Cleanup(server.Close)

	s := newTestHTTPStrategy(t)
	result, err := s.Fetch(context.Background(), &Request{URL: server.URL + "/docs/"})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Docs Home", result.Title)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, models.FetchMethodFallback, result.Method)
	assert.Contains(t, result.Text, "Hello world")
	assert.Equal(t, []string{server.URL + "/docs/next"}, result.Links)
	assert.False(t, result.FetchedAt.IsZero())
}

func TestHTTPStrategy_SendsPolicyHeadersAndCookies(t *testing.T) {
	var gotAuth, gotCookie, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCookie = r.Header.Get("Cookie")
		gotUA = r.Header.Get("User-Agent")
		io.WriteString(w, "<html><body>ok</body></html>")
	}))
	t.Cleanup(server.Close)

	hdr := make(http.Header)
	hdr.Set("Authorization", "Bearer tok")
	hdr.Set("User-Agent", "PolicyAgent/1.0")

	s := newTestHTTPStrategy(t)
	_, err := s.Fetch(context.Background(), &Request{
		URL:     server.URL,
		Header:  hdr,
		Cookies: []*http.Cookie{{Name: "sid", Value: "abc"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "sid=abc", gotCookie)
	assert.Equal(t, "PolicyAgent/1.0", gotUA, "policy User-Agent overrides the browser-like default")
}

func TestHTTPStrategy_BrowserLikeDefaults(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		io.WriteString(w, "<html><body>ok</body></html>")
	}))
	t.Cleanup(server.Close)

	s := newTestHTTPStrategy(t)
	_, err := s.Fetch(context.Background(), &Request{URL: server.URL})

	require.NoError(t, err)
	assert.Contains(t, gotUA, "Chrome/")
	assert.Contains(t, gotAccept, "text/html")
}

func TestHTTPStrategy_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	s := newTestHTTPStrategy(t)
	result, err := s.Fetch(context.Background(), &Request{URL: server.URL + "/missing"})

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, utils.ErrClientHTTPError))
}
