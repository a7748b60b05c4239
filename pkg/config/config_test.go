package config

import (
	"os"
	"path/filepath"
	"testing"

	"crawlops/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- AuthType Tests ---

func TestAuthType_IsValid(t *testing.T) {
	tests := []struct {
		authType AuthType
		expected bool
	}{
		{AuthTypeNone, true},
		{AuthTypeBearer, true},
		{AuthTypeBasic, true},
		{AuthTypeCustom, true},
		{AuthType("oauth2"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.authType.IsValid(), "AuthType(%q)", tt.authType)
	}
}

func TestAuthType_String(t *testing.T) {
	assert.Equal(t, "none", AuthTypeNone.String())
	assert.Equal(t, "bearer", AuthTypeBearer.String())
}

// --- LoadCrawlPolicy Tests ---

func TestLoadCrawlPolicy_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
url: https://docs.example.com/guide/
max_depth: 3
max_pages: 50
scope: host_only
include_patterns:
  - /guide/
exclude_patterns:
  - /guide/private/
delay_seconds: 0.5
custom_headers:
  X-Team: docs
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	policy, warnings, err := LoadCrawlPolicy(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "https://docs.example.com/guide/", policy.URL)
	assert.Equal(t, 3, policy.DepthLimit())
	assert.Equal(t, 50, policy.MaxPages)
	assert.Equal(t, "host_only", policy.Scope)
	assert.Equal(t, []string{"/guide/"}, policy.IncludePatterns)
	assert.Equal(t, 0.5, policy.DelaySeconds)
	assert.Equal(t, "docs", policy.CustomHeaders["X-Team"])
}

func TestLoadCrawlPolicy_MissingFile(t *testing.T) {
	_, _, err := LoadCrawlPolicy("/nonexistent/policy.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFilesystem)
	assert.Contains(t, err.Error(), "no such file", "underlying os error should be preserved")
}

func TestLoadCrawlPolicy_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: [unclosed"), 0644))

	_, _, err := LoadCrawlPolicy(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
	assert.Contains(t, err.Error(), "yaml", "underlying yaml error should be preserved")
}

func TestLoadCrawlPolicy_InvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_depth: 3\n"), 0644))

	_, _, err := LoadCrawlPolicy(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

// --- LoadAppConfig Tests ---

func TestLoadAppConfig_EmptyPathGetsDefaults(t *testing.T) {
	cfg, _, err := LoadAppConfig("")
	require.NoError(t, err)

	assert.Equal(t, "./crawlops_state", cfg.StateDir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadAppConfig_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
user_agent: TestAgent/2.0
state_dir: /tmp/state
output_dir: /tmp/out
log_level: debug
log_format: json
max_concurrent_crawls: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, warnings, err := LoadAppConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "TestAgent/2.0", cfg.UserAgent)
	assert.Equal(t, "/tmp/state", cfg.StateDir)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, int64(5), cfg.MaxConcurrentCrawls)
	assert.False(t, containsWarning(warnings, "state_dir"))
}

func TestLoadAppConfig_MissingFile(t *testing.T) {
	_, _, err := LoadAppConfig("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrFilesystem)
	assert.Contains(t, err.Error(), "no such file", "underlying os error should be preserved")
}
