package collector

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrDataUnavailable matches every *DataUnavailableError via errors.Is.
var ErrDataUnavailable = errors.New("data unavailable")

// DataUnavailableError reports an unknown symbol or an empty result.
type DataUnavailableError struct {
	Symbol string
	Reason string
}

func (e *DataUnavailableError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", ErrDataUnavailable, e.Symbol)
	}
	return fmt.Sprintf("%s: %s: %s", ErrDataUnavailable, e.Symbol, e.Reason)
}

func (e *DataUnavailableError) Is(target error) bool { return target == ErrDataUnavailable }

// ProviderError reports a transport, status, rate-limit or decode failure.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the request may succeed: transport errors,
// rate limits and server errors are, client errors and decode failures are not.
func (e *ProviderError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == 0:
		return e.Op == "request" || e.Op == "timeout"
	default:
		return false
	}
}

// IsDataUnavailable reports whether err is a DataUnavailable condition.
func IsDataUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable)
}

// IsProviderError reports whether err wraps a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
