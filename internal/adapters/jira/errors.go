package jira

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigurationMissing means base URL, email, or API token is unset.
	ErrConfigurationMissing = errors.New("jira: configuration missing (base URL, email, API token)")
	// ErrInvalidURL means the configured base URL does not parse.
	ErrInvalidURL = errors.New("jira: invalid base URL")
	// ErrCredentialEncoding means the email/token pair cannot form a
	// Basic auth credential.
	ErrCredentialEncoding = errors.New("jira: could not encode credentials")
)

// HTTPError is any non-2xx response, kept with the raw body for diagnostics.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("jira api status=%d body=%s", e.Status, strings.TrimSpace(e.Body))
}

// NetworkError wraps a transport-level failure.
type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return "jira: request failed: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError wraps a malformed-payload failure.
type DecodeError struct{ Err error }

func (e *DecodeError) Error() string { return "jira: decode response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }
