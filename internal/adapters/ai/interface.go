package ai

import "context"

// ChatProvider is a single model backend. Implementations normalize the
// provider response into ChatResponse and report failures as *ProviderError.
type ChatProvider interface {
	Name() string

	// Chat sends one system instruction plus one user turn.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Caller is what the analysis services depend on. Gateway implements it.
type Caller interface {
	Call(ctx context.Context, req CallRequest) (string, error)
}
