package ai

import "time"

// ChatRequest represents a chat completion request.
type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64

	// JSON asks providers that support it for a JSON-only response body.
	JSON bool
}

// ChatResponse is the provider-independent response shape.
type ChatResponse struct {
	ID           string
	Model        string
	Text         string
	FinishReason FinishReason
	Usage        Usage
}

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop   FinishReason = "stop"
	FinishReasonLength FinishReason = "length"
	FinishReasonOther  FinishReason = "other"
)

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CallRequest is the Gateway contract: prompt, system prompt, token budget,
// temperature and a per-attempt timeout. Zero values fall back to gateway defaults.
type CallRequest struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
	JSON        bool
}

// Temperature is a helper for CallRequest.Temperature.
func Temperature(v float64) *float64 {
	return &v
}
