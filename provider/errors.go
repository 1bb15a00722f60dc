package provider

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig reports a missing or malformed credential, empty input, an
	// unknown provider or an unsupported target language.
	ErrConfig = errors.New("configuration error")

	// ErrEmptyResult reports a successful response without a usable
	// translation.
	ErrEmptyResult = errors.New("provider returned no translation")

	// ErrBatchUnsupported is returned by BuildBatchRequest of adapters that
	// must be driven one text at a time.
	ErrBatchUnsupported = errors.New("provider has no batch endpoint")
)

// configErrorf returns an error wrapping ErrConfig.
func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// ProviderError is a failure decoded from a provider's response.
type ProviderError struct {
	// Provider is the adapter ID.
	Provider string
	// Status is the HTTP status code.
	Status int
	// Code is the provider's own error code, if any.
	Code string
	// Reason is the human-readable cause from the provider's error table.
	Reason string
	// Message is the provider's raw error message, if any.
	Message string
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	switch {
	case e.Reason != "":
		b.WriteString(e.Reason)
	case e.Message != "":
		b.WriteString(e.Message)
	default:
		fmt.Fprintf(&b, "HTTP %d", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (code %s)", e.Code)
	}
	if e.Reason != "" && e.Message != "" && e.Message != e.Reason {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// NetworkError is a transport-level failure.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// httpStatusError builds a ProviderError for a non-2xx status without a
// decodable body.
func httpStatusError(provider string, status int, body []byte) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Status:   status,
		Message:  truncate(strings.TrimSpace(string(body)), 200),
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
