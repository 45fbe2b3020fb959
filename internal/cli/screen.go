package cli

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"redteam/pkg/errors"
)

// MinStrategyLength is the shortest strategy worth sending to the model.
const MinStrategyLength = 50

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(password|api[_\s]?key|secret|token)\b`),
	regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`),
}

// ScreenStrategy rejects input that is blank, too short, too long, or looks
// like it carries credentials or e-mail addresses. maxLength <= 0 disables the
// upper bound. The returned error wraps ErrInvalidInput.
func ScreenStrategy(text string, maxLength int) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return errors.NewValidationError("strategy", "please enter a strategy to analyze", "")
	}
	if utf8.RuneCountInString(trimmed) < MinStrategyLength {
		return errors.NewValidationError("strategy",
			fmt.Sprintf("should be at least %d characters for meaningful analysis", MinStrategyLength),
			utf8.RuneCountInString(trimmed))
	}
	if n := utf8.RuneCountInString(text); maxLength > 0 && n > maxLength {
		return errors.NewValidationError("strategy",
			fmt.Sprintf("is too long, keep it under %s characters", humanize.Comma(int64(maxLength))), n)
	}
	for _, re := range sensitivePatterns {
		if re.MatchString(text) {
			return errors.NewValidationError("strategy",
				"remove sensitive information (passwords, API keys, emails) first", "")
		}
	}
	return nil
}
