package report

import (
	"fmt"
)

// InvalidParameterError is returned when a report name or range cannot be
// resolved into request windows. It is not retryable; the caller must fix
// the input.
type InvalidParameterError struct {
	Param  string
	Value  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
	}
	return fmt.Sprintf("invalid parameter %q (%q): %s", e.Param, e.Value, e.Reason)
}

// FetchError is returned when the HTTP call for a window fails or its body
// cannot be parsed. Window identifies the failing request.
type FetchError struct {
	Window     Window
	StatusCode int // zero when no HTTP response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.Window, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Window, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
