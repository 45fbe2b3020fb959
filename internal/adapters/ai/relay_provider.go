package ai

import (
	"context"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"redteam/pkg/errors"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// Ensure RelayProvider implements ChatProvider
var _ ChatProvider = (*RelayProvider)(nil)

// RelayOptions configures the chat-completions relay.
type RelayOptions struct {
	APIKey   string
	BaseURL  string
	SiteURL  string
	SiteName string
	Timeout  time.Duration
}

// RelayProvider talks to an OpenAI-compatible chat completions relay (OpenRouter by default).
type RelayProvider struct {
	client openai.Client
	apiKey string
}

// NewRelayProvider creates a relay provider. SDK retries are disabled; the Gateway owns retry.
func NewRelayProvider(opts RelayOptions) *RelayProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = openRouterBaseURL
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(opts.BaseURL),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
	}
	if opts.SiteURL != "" {
		reqOpts = append(reqOpts, option.WithHeader("HTTP-Referer", opts.SiteURL))
	}
	if opts.SiteName != "" {
		reqOpts = append(reqOpts, option.WithHeader("X-Title", opts.SiteName))
	}

	return &RelayProvider{
		client: openai.NewClient(reqOpts...),
		apiKey: opts.APIKey,
	}
}

// Name returns provider name.
func (p *RelayProvider) Name() string {
	return ProviderNameOpenRouter.String()
}

// Chat sends one system message and one user message through the relay.
func (p *RelayProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.apiKey == "" {
		return nil, errors.Wrap(errors.ErrConfiguration, "relay API key not configured")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.convertError(err)
	}

	if len(completion.Choices) == 0 {
		return nil, &ProviderError{
			Provider: p.Name(),
			Kind:     KindGeneric,
			Message:  "no response content received",
			Err:      errors.ErrExternal,
		}
	}

	choice := completion.Choices[0]
	finish := FinishReasonOther
	switch choice.FinishReason {
	case "stop":
		finish = FinishReasonStop
	case "length":
		finish = FinishReasonLength
	}

	return &ChatResponse{
		ID:           completion.ID,
		Model:        completion.Model,
		Text:         choice.Message.Content,
		FinishReason: finish,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

func (p *RelayProvider) convertError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code := apiErr.Code
		if code == "" {
			code = apiErr.Type
		}
		return newAPIError(p.Name(), apiErr.StatusCode, code, apiErr.Message)
	}
	return newTransportError(p.Name(), err)
}
