package ai

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/genai"

	"redteam/pkg/errors"
)

// Ensure GeminiProvider implements ChatProvider
var _ ChatProvider = (*GeminiProvider)(nil)

// GeminiProvider talks to the Gemini API through the genai SDK.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider. No request is made until Chat.
func NewGeminiProvider(ctx context.Context, apiKey string, timeout time.Duration) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrConfiguration, "gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfiguration, "create gemini client: "+err.Error())
	}

	return &GeminiProvider{client: client}, nil
}

// Name returns provider name.
func (p *GeminiProvider) Name() string {
	return ProviderNameGoogle.String()
}

// Chat sends the prompt with the system text as system instruction.
func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, p.convertError(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, &ProviderError{
			Provider: p.Name(),
			Kind:     KindGeneric,
			Message:  "response has no text content",
			Err:      errors.ErrExternal,
		}
	}

	out := &ChatResponse{
		ID:           resp.ResponseID,
		Model:        resp.ModelVersion,
		Text:         text,
		FinishReason: FinishReasonOther,
	}
	if len(resp.Candidates) > 0 {
		switch resp.Candidates[0].FinishReason {
		case genai.FinishReasonStop:
			out.FinishReason = FinishReasonStop
		case genai.FinishReasonMaxTokens:
			out.FinishReason = FinishReasonLength
		}
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (p *GeminiProvider) convertError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newAPIError(p.Name(), apiErr.Code, apiErr.Status, apiErr.Message)
	}
	return newTransportError(p.Name(), err)
}
