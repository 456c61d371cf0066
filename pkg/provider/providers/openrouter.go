package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

const openRouterDefaultBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider adapts OpenRouter's OpenAI-compatible chat-completions
// endpoint to the domain.Provider SPI, reusing the wire types from
// openai.go since OpenRouter is a pass-through aggregator over the same
// format (spec.md §6 supplemented provider: routes a model string to
// whichever upstream OpenRouter resolves it to).
type OpenRouterProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

type OpenRouterOption func(*OpenRouterProvider)

func WithOpenRouterBaseURL(url string) OpenRouterOption {
	return func(p *OpenRouterProvider) { p.baseURL = url }
}

func WithOpenRouterHTTPClient(client *http.Client) OpenRouterOption {
	return func(p *OpenRouterProvider) { p.httpClient = client }
}

func NewOpenRouterProvider(apiKey, model string, opts ...OpenRouterOption) *OpenRouterProvider {
	p := &OpenRouterProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    openRouterDefaultBaseURL,
		httpClient: defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenRouterProvider) Name() string { return "openrouter" }

func (p *OpenRouterProvider) Capabilities() []domain.Capability {
	return []domain.Capability{domain.CapabilityJSONMode}
}

func (p *OpenRouterProvider) Invoke(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
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
	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
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
