package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

const openAIDefaultBaseURL = "https://api.openai.com"

// OpenAIProvider adapts OpenAI's chat-completions endpoint to the
// domain.Provider SPI, grounded on the teacher's OpenAIProvider
// (pkg/llm/provider/openai.go) request-building and response-parsing
// shape, generalised from the teacher's own Option/Response types to
// ProviderRequest/ProviderResponse.
type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = url }
}

func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.httpClient = client }
}

// NewOpenAIProvider constructs an OpenAIProvider for model, authenticating
// with apiKey.
func NewOpenAIProvider(apiKey, model string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    openAIDefaultBaseURL,
		httpClient: defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Capabilities() []domain.Capability {
	return []domain.Capability{domain.CapabilityJSONMode}
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
	TopP        *float64            `json:"top_p,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Invoke implements domain.Provider.
func (p *OpenAIProvider) Invoke(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
	started := time.Now()

	reqBody := openAIChatRequest{
		Model:       p.model,
		Messages:    toOpenAIMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}

	var respBody openAIChatResponse
	url := fmt.Sprintf("%s/v1/chat/completions", p.baseURL)
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := postJSON(ctx, p.httpClient, p.Name(), url, headers, reqBody, &respBody); err != nil {
		return nil, err
	}

	if len(respBody.Choices) == 0 {
		return nil, domain.NewClassifiedError(p.Name(), domain.RetriableError, "API returned no choices", nil)
	}

	return &domain.ProviderResponse{
		Text:         respBody.Choices[0].Message.Content,
		LatencyMS:    time.Since(started).Milliseconds(),
		Model:        respBody.Model,
		FinishReason: respBody.Choices[0].FinishReason,
		TokenUsage: &domain.TokenUsage{
			PromptTokens:     respBody.Usage.PromptTokens,
			CompletionTokens: respBody.Usage.CompletionTokens,
		},
	}, nil
}

func toOpenAIMessages(req *domain.ProviderRequest) []openAIChatMessage {
	if len(req.Messages) > 0 {
		out := make([]openAIChatMessage, len(req.Messages))
		for i, m := range req.Messages {
			out[i] = openAIChatMessage{Role: string(m.Role), Content: m.Content}
		}
		return out
	}
	return []openAIChatMessage{{Role: string(domain.RoleUser), Content: req.Prompt}}
}
