package ai

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"redteam/pkg/errors"
)

func TestRetryableDependsOnlyOnKind(t *testing.T) {
	retryable := map[ErrorKind]bool{
		KindAuth:           false,
		KindRateLimit:      true,
		KindOverloaded:     true,
		KindTimeout:        true,
		KindUnknownModel:   false,
		KindInvalidRequest: false,
		KindGeneric:        true,
	}
	for kind, want := range retryable {
		assert.Equal(t, want, kind.Retryable(), kind)
		assert.Equal(t, want, (&ProviderError{Kind: kind, Message: "anything"}).Retryable(), kind)
	}
}

func TestClassifyPrefersStructuredFields(t *testing.T) {
	// Message text says "overloaded" but the code says auth
	assert.Equal(t, KindAuth, classify(http.StatusUnauthorized, "authentication_error", "server overloaded"))
	// No code: status decides
	assert.Equal(t, KindRateLimit, classify(http.StatusTooManyRequests, "", "timeout"))
	// Invalid request naming a model
	assert.Equal(t, KindUnknownModel, classify(http.StatusBadRequest, "invalid_request_error", "model claude-9 does not exist"))
	assert.Equal(t, KindInvalidRequest, classify(http.StatusBadRequest, "", "max_tokens too large"))
	// Text only
	assert.Equal(t, KindOverloaded, classify(0, "", "Anthropic API is overloaded"))
	assert.Equal(t, KindGeneric, classify(0, "", "something odd"))
}

func TestClassifyText(t *testing.T) {
	tests := map[string]ErrorKind{
		"Rate limit reached for requests":   KindRateLimit,
		"Error code: 529 - overloaded":      KindOverloaded,
		"request timed out":                 KindTimeout,
		"invalid api key provided":          KindAuth,
		"The model `gpt-9` does not exist":  KindUnknownModel,
		"connection reset by peer":          KindGeneric,
	}
	for msg, want := range tests {
		assert.Equal(t, want, ClassifyText(msg), msg)
	}
}

func TestProviderErrorMatchesSentinels(t *testing.T) {
	err := errors.Wrap(&ProviderError{Provider: "anthropic", Kind: KindAuth, StatusCode: 401}, "analysis")

	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
	assert.False(t, errors.Is(err, errors.ErrRateLimitExceeded))
	assert.Equal(t, KindAuth, KindOf(err))
	assert.Contains(t, err.Error(), "anthropic auth error (401)")
}

func TestKindOfPlainErrors(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindGeneric, KindOf(errors.New("boom")))
}
