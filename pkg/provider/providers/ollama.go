package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

const ollamaDefaultBaseURL = "http://localhost:11434"

// OllamaProvider adapts a local Ollama server's OpenAI-compatible
// chat-completions endpoint to the domain.Provider SPI. Structurally
// identical to OpenAIProvider (pkg/provider/providers/openai.go) since
// Ollama implements the same wire format; kept as a separate type so its
// default base URL, lack of an API key, and Name() stay distinct.
type OllamaProvider struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

type OllamaOption func(*OllamaProvider)

func WithOllamaBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) { p.baseURL = url }
}

func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) { p.httpClient = client }
}

func NewOllamaProvider(model string, opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		model:      model,
		baseURL:    ollamaDefaultBaseURL,
		httpClient: defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OllamaProvider) Name() string                     { return "ollama" }
func (p *OllamaProvider) Capabilities() []domain.Capability { return nil }

func (p *OllamaProvider) Invoke(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
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
	if err := postJSON(ctx, p.httpClient, p.Name(), url, nil, reqBody, &respBody); err != nil {
		return nil, err
	}

	if len(respBody.Choices) == 0 {
		return nil, domain.NewClassifiedError(p.Name(), domain.RetriableError, "API returned no choices", nil)
	}

	return &domain.ProviderResponse{
		Text:         respBody.Choices[0].Message.Content,
		LatencyMS:    time.Since(started).Milliseconds(),
		Model:        p.model,
		FinishReason: respBody.Choices[0].FinishReason,
		TokenUsage: &domain.TokenUsage{
			PromptTokens:     respBody.Usage.PromptTokens,
			CompletionTokens: respBody.Usage.CompletionTokens,
		},
	}, nil
}
