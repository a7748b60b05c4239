package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// --- CategorizeError Tests ---

func TestCategorizeError_NilError(t *testing.T) {
	result := CategorizeError(nil)
	if result != "None" {
		t.Errorf("CategorizeError(nil) = %q, want %q", result, "None")
	}
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"InvalidSeed", ErrInvalidSeed, "Policy_InvalidSeed"},
		{"RobotsDisallowed", ErrRobotsDisallowed, "Policy_Robots"},
		{"ScopeViolation", ErrScopeViolation, "Policy_Scope"},
		{"AllStrategiesFailed", ErrAllStrategiesFailed, "Fetch_AllStrategiesFailed"},
		{"BrowserFetch", ErrBrowserFetch, "Fetch_Browser"},
		{"MarkdownConversion", ErrMarkdownConversion, "Content_Markdown"},
		{"RequestCreation", ErrRequestCreation, "Internal_RequestCreation"},
		{"ResponseBodyRead", ErrResponseBodyRead, "Network_BodyRead"},
		{"ConfigValidation", ErrConfigValidation, "Config_Validation"},
		{"ServerHTTPError", ErrServerHTTPError, "HTTP_5xx"},
		{"OtherHTTPError", ErrOtherHTTPError, "HTTP_OtherStatus"},
		{"Database", ErrDatabase, "Database_Other"},
		{"Filesystem", ErrFilesystem, "Filesystem_Other"},
		{"SessionNotFound", ErrSessionNotFound, "Session_NotFound"},
		{"SessionExpired", ErrSessionExpired, "Session_Expired"},
		{"ReportNotFound", ErrReportNotFound, "Report_NotFound"},
		{"CrawlStopped", ErrCrawlStopped, "System_CrawlStopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_WrappedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "WrappedRobotsDisallowed",
			err:      fmt.Errorf("some context: %w", ErrRobotsDisallowed),
			expected: "Policy_Robots",
		},
		{
			name:     "WrappedScopeViolation",
			err:      fmt.Errorf("URL out of scope: %w", ErrScopeViolation),
			expected: "Policy_Scope",
		},
		{
			name:     "DoubleWrapped",
			err:      fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrAllStrategiesFailed)),
			expected: "Fetch_AllStrategiesFailed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ClientHTTPCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "404",
			err:      fmt.Errorf("HTTP status 404 : %w", ErrClientHTTPError),
			expected: "HTTP_404",
		},
		{
			name:     "403",
			err:      fmt.Errorf("HTTP status 403 : %w", ErrClientHTTPError),
			expected: "HTTP_403",
		},
		{
			name:     "401",
			err:      fmt.Errorf("HTTP status 401 : %w", ErrClientHTTPError),
			expected: "HTTP_401",
		},
		{
			name:     "429",
			err:      fmt.Errorf("HTTP status 429 : %w", ErrClientHTTPError),
			expected: "HTTP_429",
		},
		{
			name:     "Generic4xx",
			err:      fmt.Errorf("HTTP status 400: %w", ErrClientHTTPError),
			expected: "HTTP_4xx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ParsingErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "URLParsing",
			err:      fmt.Errorf("URL parsing failed: %w", ErrParsing),
			expected: "Content_ParsingURL",
		},
		{
			name:     "HTMLParsing",
			err:      fmt.Errorf("HTML parsing failed: %w", ErrParsing),
			expected: "Content_ParsingHTML",
		},
		{
			name:     "JSONParsing",
			err:      fmt.Errorf("JSON parsing failed: %w", ErrParsing),
			expected: "Content_ParsingJSON",
		},
		{
			name:     "PDFParsing",
			err:      fmt.Errorf("PDF parsing failed: %w", ErrParsing),
			expected: "Content_ParsingPDF",
		},
		{
			name:     "GenericParsing",
			err:      fmt.Errorf("parsing failed: %w", ErrParsing),
			expected: "Content_ParsingOther",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ContextCanceled", context.Canceled, "System_ContextCanceled"},
		{"ContextDeadlineExceeded", context.DeadlineExceeded, "System_ContextDeadlineExceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_NetworkStrings(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Timeout", errors.New("connection timeout occurred"), "Network_TimeoutGeneric"},
		{"ConnectionRefused", errors.New("connection refused"), "Network_ConnectionRefused"},
		{"DNSLookup", errors.New("no such host"), "Network_DNSLookup"},
		{"TLS", errors.New("tls handshake failed"), "Network_TLS"},
		{"Certificate", errors.New("certificate verify failed"), "Network_TLS"},
		{"ConnectionReset", errors.New("reset by peer"), "Network_ConnectionReset"},
		{"BrokenPipe", errors.New("broken pipe"), "Network_BrokenPipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_Unknown(t *testing.T) {
	err := errors.New("some completely unknown error")
	result := CategorizeError(err)
	if result != "Unknown" {
		t.Errorf("CategorizeError(%v) = %q, want %q", err, result, "Unknown")
	}
}

// --- SanitizeFilename Tests ---

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple", "hello", "hello"},
		{"WithSpaces", "hello world", "hello world"},
		{"WithSlash", "path/to/file", "path_to_file"},
		{"WithBackslash", "path\\to\\file", "path_to_file"},
		{"WithColon", "file:name", "file_name"},
		{"WithQuotes", `file"name`, "file_name"},
		{"WithMultipleInvalid", "a<b>c:d", "a_b_c_d"},
		{"ConsecutiveUnderscores", "a___b", "a_b"},
		{"LeadingUnderscore", "_file", "file"},
		{"TrailingUnderscore", "file_", "file"},
		{"LeadingTrailingSpaces", "  file  ", "file"},
		{"Empty", "", "untitled"},
		{"OnlyInvalidChars", "<>:", "untitled"},
		{"OnlyUnderscores", "___", "untitled"},
		{"QuestionMark", "file?name", "file_name"},
		{"Asterisk", "file*name", "file_name"},
		{"Pipe", "file|name", "file_name"},
		{"NullChar", "file\x00name", "file_name"},
		{"ControlChars", "file\x01\x02name", "file_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename_LongNames(t *testing.T) {
	// Create a string longer than maxFilenameLength (100)
	longName := ""
	for i := 0; i < 150; i++ {
		longName += "a"
	}

	result := SanitizeFilename(longName)
	if len(result) > 100 {
		t.Errorf("SanitizeFilename(long) length = %d, want <= 100", len(result))
	}
}

// --- SiteSlug Tests ---

func TestSiteSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"HostOnly", "https://example.com", "example_com"},
		{"HostWithPath", "https://docs.example.com/guide/", "docs_example_com_guide"},
		{"DeepPath", "https://example.com/a/b", "example_com_a_b"},
		{"WithPort", "http://localhost:8080/docs", "localhost_docs"},
		{"NotAURL", "not a url at all", "not a url at all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SiteSlug(tt.input)
			if result != tt.expected {
				t.Errorf("SiteSlug(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// --- WrapErrorf Tests ---

func TestWrapErrorf_NilError(t *testing.T) {
	result := WrapErrorf(nil, "some context")
	if result != nil {
		t.Errorf("WrapErrorf(nil, ...) = %v, want nil", result)
	}
}

func TestWrapErrorf_WrapsError(t *testing.T) {
	original := errors.New("original error")
	wrapped := WrapErrorf(original, "context %s", "value")

	if wrapped == nil {
		t.Fatal("WrapErrorf() returned nil, want error")
	}
	if !errors.Is(wrapped, original) {
		t.Error("WrapErrorf() result should wrap original error")
	}
	expectedMsg := "context value: original error"
	if wrapped.Error() != expectedMsg {
		t.Errorf("WrapErrorf() message = %q, want %q", wrapped.Error(), expectedMsg)
	}
}
