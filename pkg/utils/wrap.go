package utils

import "fmt"

// WrapErrorf wraps err with a formatted context message. Returns nil when
// err is nil so callers can wrap unconditionally.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
