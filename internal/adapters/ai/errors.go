package ai

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"redteam/pkg/errors"
)

// ErrorKind classifies a provider failure. Retry policy depends only on the kind.
type ErrorKind string

const (
	KindAuth           ErrorKind = "auth"
	KindRateLimit      ErrorKind = "rate_limit"
	KindOverloaded     ErrorKind = "overloaded"
	KindTimeout        ErrorKind = "timeout"
	KindUnknownModel   ErrorKind = "unknown_model"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindGeneric        ErrorKind = "generic"
)

// Retryable reports whether the gateway should re-attempt a call failing with this kind.
// Generic failures are retried since they are mostly transport errors.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimit, KindOverloaded, KindTimeout, KindGeneric:
		return true
	default:
		return false
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindAuth:
		return errors.ErrUnauthorized
	case KindRateLimit:
		return errors.ErrRateLimitExceeded
	case KindOverloaded:
		return errors.ErrUnavailable
	case KindTimeout:
		return errors.ErrTimeout
	case KindUnknownModel:
		return errors.ErrNotFound
	case KindInvalidRequest:
		return errors.ErrInvalidInput
	default:
		return errors.ErrExternal
	}
}

// ProviderError is returned by every ChatProvider and by the Gateway.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s error", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches the shared sentinel for the error kind, so callers can use
// errors.Is(err, errors.ErrRateLimitExceeded) without importing this package.
func (e *ProviderError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Retryable reports whether the failure is transient.
func (e *ProviderError) Retryable() bool {
	return e.Kind.Retryable()
}

// KindOf extracts the kind of a provider failure; non-provider errors are generic.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, errors.ErrTimeout):
		return KindTimeout
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return KindRateLimit
	case errors.Is(err, errors.ErrUnauthorized):
		return KindAuth
	}
	return KindGeneric
}

// classifyCode maps structured provider error codes (Anthropic error types,
// OpenAI-compatible codes, Google RPC statuses).
func classifyCode(code string) (ErrorKind, bool) {
	switch strings.ToLower(code) {
	case "authentication_error", "permission_error", "invalid_api_key", "unauthenticated", "permission_denied":
		return KindAuth, true
	case "rate_limit_error", "rate_limit_exceeded", "resource_exhausted":
		return KindRateLimit, true
	case "overloaded_error", "server_error", "unavailable", "internal":
		return KindOverloaded, true
	case "not_found_error", "model_not_found", "not_found":
		return KindUnknownModel, true
	case "deadline_exceeded", "timeout":
		return KindTimeout, true
	case "invalid_request_error", "invalid_argument":
		return KindInvalidRequest, true
	}
	return "", false
}

func classifyStatus(status int) (ErrorKind, bool) {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth, true
	case status == http.StatusTooManyRequests:
		return KindRateLimit, true
	case status == http.StatusNotFound:
		return KindUnknownModel, true
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout, true
	case status == 529 || status == http.StatusServiceUnavailable ||
		status == http.StatusBadGateway || status == http.StatusInternalServerError:
		return KindOverloaded, true
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindInvalidRequest, true
	}
	return "", false
}

// ClassifyText is the last-resort classifier for failures that carry no
// status or code. Substring matching is brittle; structured fields win when present.
func ClassifyText(msg string) ErrorKind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "rate limit") || strings.Contains(m, "rate_limit") || strings.Contains(m, "429"):
		return KindRateLimit
	case strings.Contains(m, "overloaded") || strings.Contains(m, "529") || strings.Contains(m, "503"):
		return KindOverloaded
	case strings.Contains(m, "timeout") || strings.Contains(m, "timed out") || strings.Contains(m, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(m, "unauthorized") || strings.Contains(m, "authentication") ||
		strings.Contains(m, "api key") || strings.Contains(m, "401"):
		return KindAuth
	case strings.Contains(m, "model") &&
		(strings.Contains(m, "not found") || strings.Contains(m, "does not exist") || strings.Contains(m, "invalid model")):
		return KindUnknownModel
	}
	return KindGeneric
}

// classify picks the most structured signal available: code, then status, then text.
func classify(status int, code, msg string) ErrorKind {
	if k, ok := classifyCode(code); ok {
		// A 400 "invalid request" naming a model is an unknown-model failure
		if k == KindInvalidRequest && ClassifyText(msg) == KindUnknownModel {
			return KindUnknownModel
		}
		return k
	}
	if k, ok := classifyStatus(status); ok {
		if k == KindInvalidRequest && ClassifyText(msg) == KindUnknownModel {
			return KindUnknownModel
		}
		return k
	}
	return ClassifyText(msg)
}

// newAPIError builds a ProviderError from an upstream error response.
func newAPIError(provider string, status int, code, msg string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       classify(status, code, msg),
		StatusCode: status,
		Message:    msg,
		Err:        errors.ErrExternal,
	}
}

// newTransportError wraps a failure that never produced a response.
func newTransportError(provider string, err error) *ProviderError {
	kind := KindGeneric
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	default:
		kind = ClassifyText(err.Error())
	}
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}
