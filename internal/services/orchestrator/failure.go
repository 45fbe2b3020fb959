package orchestrator

import (
	"context"

	"redteam/internal/adapters/ai"
	"redteam/pkg/errors"
)

// FailureMessage turns a perspective error into the text shown in place of an analysis.
func FailureMessage(err error) string {
	if err == nil || errors.Is(err, context.Canceled) {
		return "Analysis cancelled before this perspective could run."
	}

	switch ai.KindOf(err) {
	case ai.KindAuth:
		return "Analysis failed: authentication error. Check that the API key for the selected provider is valid."
	case ai.KindRateLimit:
		return "Analysis failed: rate limit exceeded. The provider is throttling requests; wait a minute and try again or lower the concurrency."
	case ai.KindOverloaded:
		return "Analysis failed: the model provider is overloaded. Please retry in a few minutes."
	case ai.KindTimeout:
		return "Analysis failed: the request timed out before the model responded."
	case ai.KindUnknownModel:
		return "Analysis failed: the configured model was not found. Check the AI_MODEL setting."
	case ai.KindInvalidRequest:
		return "Analysis failed: the provider rejected the request as invalid: " + err.Error()
	default:
		return "Analysis failed: " + err.Error()
	}
}
