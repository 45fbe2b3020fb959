package ai

import "strings"

// ProviderName represents an AI provider identifier
type ProviderName string

// Provider name constants
const (
	ProviderNameAnthropic  ProviderName = "anthropic"
	ProviderNameOpenRouter ProviderName = "openrouter"
	ProviderNameGoogle     ProviderName = "google"
)

// String returns the string representation of the provider name
func (p ProviderName) String() string {
	return string(p)
}

// IsValid checks if the provider name is supported
func (p ProviderName) IsValid() bool {
	switch p {
	case ProviderNameAnthropic, ProviderNameOpenRouter, ProviderNameGoogle:
		return true
	default:
		return false
	}
}

// AllProviderNames returns all supported provider names
func AllProviderNames() []ProviderName {
	return []ProviderName{
		ProviderNameAnthropic,
		ProviderNameOpenRouter,
		ProviderNameGoogle,
	}
}

// NormalizeProviderName maps config spellings onto a ProviderName.
func NormalizeProviderName(name string) ProviderName {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "claude":
		return ProviderNameAnthropic
	case "gemini":
		return ProviderNameGoogle
	default:
		return ProviderName(n)
	}
}

// Default models per provider, used when AI_MODEL is empty
const (
	ModelClaudeOpus4      = "claude-opus-4-20250514"
	ModelRelayClaudeOpus4 = "anthropic/claude-opus-4"
	ModelGemini25Pro      = "gemini-2.5-pro"
)

// DefaultModel returns the model used for a provider when none is configured.
func DefaultModel(p ProviderName) string {
	switch p {
	case ProviderNameAnthropic:
		return ModelClaudeOpus4
	case ProviderNameOpenRouter:
		return ModelRelayClaudeOpus4
	case ProviderNameGoogle:
		return ModelGemini25Pro
	default:
		return ""
	}
}
