package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a provider failure for retry and reporting.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindNetwork   ErrorKind = "network"
	KindUnknown   ErrorKind = "unknown"
)

// Retryable reports whether failures of this kind are safe to retry.
// Auth failures never resolve on their own and unknown failures may
// not be idempotent, so only rate limiting and transport faults retry.
func (k ErrorKind) Retryable() bool {
	return k == KindRateLimit || k == KindNetwork
}

// ProviderError is a classified failure from a model provider.
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Message    string
	RetryAfter *float64 // seconds, from a Retry-After header if present
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s] %s (%s, status=%d)", e.Provider, e.Message, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Provider, e.Message, e.Kind)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ErrorFromStatusCode builds a ProviderError classified from an HTTP
// status code.
func ErrorFromStatusCode(provider string, statusCode int, message string, cause error) *ProviderError {
	pe := &ProviderError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
	switch {
	case statusCode == 401 || statusCode == 403:
		pe.Kind = KindAuth
	case statusCode == 429:
		pe.Kind = KindRateLimit
	case statusCode == 408 || statusCode >= 500:
		pe.Kind = KindNetwork
	default:
		pe.Kind = KindUnknown
	}
	return pe
}

// KindOf classifies an arbitrary error. Already-classified provider
// errors keep their kind; transport-level errors map to network;
// everything else is unknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindUnknown
}

// IsRetryable reports whether err is safe to retry.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
