package extract

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>  Getting Started  </title>
  <style>body { color: red; }</style>
  <script>console.log("noise");</script>
</head>
<body>
  <h1>Getting Started</h1>
  <p>Welcome to the   documentation.</p>
  <a href="/docs/install">Install</a>
  <a href="/docs/install">Install again</a>
  <a href="#section">Fragment only</a>
  <a href="mailto:team@example.com">Mail us</a>
  <a href="https://other.example.org/page">External</a>
  <a href="/manual.pdf">Manual</a>
  <a href="/logo.png">Logo link</a>
  <img src="/images/diagram.png">
  <img src="/images/diagram.png">
  <img src="data:image/png;base64,AAAA">
</body>
</html>`

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestFromHTML_Basic(t *testing.T) {
	base := mustParse(t, "https://example.com/docs/")
	content, err := FromHTML(samplePage, base)
	require.NoError(t, err)

	assert.Equal(t, "Getting Started", content.Title)
	assert.Contains(t, content.Text, "Welcome to the documentation.")
	assert.NotContains(t, content.Text, "console.log")
	assert.NotContains(t, content.Text, "color: red")
	assert.Positive(t, content.WordCount)
	assert.Contains(t, content.Markdown, "Getting Started")
}

func TestFromHTML_Links(t *testing.T) {
	base := mustParse(t, "https://example.com/docs/")
	content, err := FromHTML(samplePage, base)
	require.NoError(t, err)

	// Deduplicated, absolute, document order. Fragment-only, mailto and
	// image-extension links are dropped; PDFs are kept.
	assert.Equal(t, []string{
		"https://example.com/docs/install",
		"https://other.example.org/page",
		"https://example.com/manual.pdf",
	}, content.Links)
}

func TestFromHTML_Images(t *testing.T) {
	base := mustParse(t, "https://example.com/docs/")
	content, err := FromHTML(samplePage, base)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/images/diagram.png"}, content.Images)
}

func TestFromHTML_PageChromeStripped(t *testing.T) {
	page := `<html><head><title>Guide</title></head><body>
	  <header>Site Banner</header>
	  <nav><a href="/home">Home</a> navigation menu</nav>
	  <aside>Related reading</aside>
	  <menu><li>Context item</li></menu>
	  <p>Actual article body.</p>
	  <footer>Copyright notice</footer>
	</body></html>`

	content, err := FromHTML(page, mustParse(t, "https://example.com/"))
	require.NoError(t, err)

	assert.Contains(t, content.Text, "Actual article body.")
	assert.NotContains(t, content.Text, "Site Banner")
	assert.NotContains(t, content.Text, "navigation menu")
	assert.NotContains(t, content.Text, "Related reading")
	assert.NotContains(t, content.Text, "Context item")
	assert.NotContains(t, content.Text, "Copyright notice")
	assert.Equal(t, 3, content.WordCount)
}

func TestFromHTML_TitleFallbacks(t *testing.T) {
	base := mustParse(t, "https://example.com/")

	content, err := FromHTML(`<html><body><h1>Only Heading</h1></body></html>`, base)
	require.NoError(t, err)
	assert.Equal(t, "Only Heading", content.Title)

	content, err = FromHTML(`<html><body><p>no headings here</p></body></html>`, base)
	require.NoError(t, err)
	assert.Equal(t, "Untitled Page", content.Title)
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "  hello   world  \n\n\n  second\tline \n"
	assert.Equal(t, "hello world\nsecond line", normalizeWhitespace(in))
}
