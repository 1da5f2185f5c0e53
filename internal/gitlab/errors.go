package gitlab

import (
	"errors"
	"fmt"
)

var ErrMissingToken = errors.New("gitlab access token is required")

// ConfigError is returned by New when the client cannot be constructed.
// It is raised before any network activity.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("gitlab config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type FailureKind int

const (
	// FailureNetwork covers connection errors, timeouts and truncated bodies.
	FailureNetwork FailureKind = iota + 1
	// FailureStatus is a non-2xx response, retryable or not.
	FailureStatus
	// FailureDecode is a complete response whose body is not the expected JSON.
	FailureDecode
	// FailureCanceled means the caller's context ended first.
	FailureCanceled
)

func (k FailureKind) String() string {
	switch k {
	case FailureNetwork:
		return "network"
	case FailureStatus:
		return "status"
	case FailureDecode:
		return "decode"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// FetchError means no more data is available for the request right now.
type FetchError struct {
	Kind       FailureKind
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("GET %s failed (%s", e.URL, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(", %d attempts", e.Attempts)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// WalkError reports a paginated walk that stopped before an empty page.
// Items is the number of items yielded before the failure.
type WalkError struct {
	Path  string
	Page  int
	Items int
	Err   error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("walk %s stopped at page %d after %d items: %v", e.Path, e.Page, e.Items, e.Err)
}

func (e *WalkError) Unwrap() error {
	return e.Err
}
