package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"redteam/pkg/errors"
)

const (
	claudeAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// Ensure ClaudeProvider implements ChatProvider
var _ ChatProvider = (*ClaudeProvider)(nil)

// ClaudeProvider talks to the Anthropic messages API.
type ClaudeProvider struct {
	apiKey string
	url    string
	client *http.Client
}

// NewClaudeProvider creates a new Claude provider. An empty url uses the public endpoint.
func NewClaudeProvider(apiKey, url string, timeout time.Duration) *ClaudeProvider {
	if url == "" {
		url = claudeAPIURL
	}
	return &ClaudeProvider{
		apiKey: apiKey,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns provider name.
func (p *ClaudeProvider) Name() string {
	return ProviderNameAnthropic.String()
}

// Chat sends a chat completion request to Claude API.
func (p *ClaudeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.apiKey == "" {
		return nil, errors.Wrap(errors.ErrConfiguration, "claude API key not configured")
	}

	body, err := json.Marshal(p.convertToClaude(req))
	if err != nil {
		return nil, errors.Wrap(err, "marshal claude request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, newTransportError(p.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(p.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp claudeErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Type != "" {
			return nil, newAPIError(p.Name(), resp.StatusCode, errResp.Error.Type, errResp.Error.Message)
		}
		return nil, newAPIError(p.Name(), resp.StatusCode, "", strings.TrimSpace(string(respBody)))
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(respBody, &claudeResp); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Kind: KindGeneric, Err: errors.Wrap(err, "unmarshal claude response")}
	}

	return p.convertFromClaude(&claudeResp)
}

// Claude API types
type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type claudeResponse struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	Content    []claudeContent `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      claudeUsage     `json:"usage"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type claudeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *ClaudeProvider) convertToClaude(req ChatRequest) claudeRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return claudeRequest{
		Model:       req.Model,
		System:      req.System,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages:    []claudeMessage{{Role: "user", Content: req.Prompt}},
	}
}

// convertFromClaude returns the first text block of the response.
func (p *ClaudeProvider) convertFromClaude(resp *claudeResponse) (*ChatResponse, error) {
	var text string
	found := false
	for _, c := range resp.Content {
		if c.Type == "text" {
			text = c.Text
			found = true
			break
		}
	}
	if !found {
		return nil, &ProviderError{
			Provider: p.Name(),
			Kind:     KindGeneric,
			Message:  "response has no text content",
			Err:      errors.ErrExternal,
		}
	}

	finish := FinishReasonOther
	switch resp.StopReason {
	case "end_turn", "stop_sequence":
		finish = FinishReasonStop
	case "max_tokens":
		finish = FinishReasonLength
	}

	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Text:         text,
		FinishReason: finish,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
