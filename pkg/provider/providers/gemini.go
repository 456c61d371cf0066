package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
const geminiDefaultModel = "gemini-2.0-flash-lite"

// GeminiProvider adapts Google Gemini's generateContent endpoint to the
// domain.Provider SPI, grounded on the teacher's GeminiProvider
// (pkg/llm/provider/gemini.go) URL-building and content-part shape.
type GeminiProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

type GeminiOption func(*GeminiProvider)

func WithGeminiBaseURL(url string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = url }
}

func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.httpClient = client }
}

// NewGeminiProvider constructs a GeminiProvider; model defaults to
// gemini-2.0-flash-lite when empty, matching the teacher's default.
func NewGeminiProvider(apiKey, model string, opts ...GeminiOption) *GeminiProvider {
	if model == "" {
		model = geminiDefaultModel
	}
	p := &GeminiProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    geminiDefaultBaseURL,
		httpClient: defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Capabilities() []domain.Capability {
	return []domain.Capability{domain.CapabilityVision, domain.CapabilityJSONMode}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (p *GeminiProvider) Invoke(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
	started := time.Now()

	reqBody := geminiRequest{
		Contents: toGeminiContents(req),
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			StopSequences:   req.Stop,
		},
	}

	var respBody geminiResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	headers := map[string]string{"x-goog-api-key": p.apiKey}
	if err := postJSON(ctx, p.httpClient, p.Name(), url, headers, reqBody, &respBody); err != nil {
		return nil, err
	}

	if len(respBody.Candidates) == 0 || len(respBody.Candidates[0].Content.Parts) == 0 {
		return nil, domain.NewClassifiedError(p.Name(), domain.RetriableError, "API returned no candidates", nil)
	}

	text := respBody.Candidates[0].Content.Parts[0].Text
	return &domain.ProviderResponse{
		Text:         text,
		LatencyMS:    time.Since(started).Milliseconds(),
		Model:        p.model,
		FinishReason: respBody.Candidates[0].FinishReason,
		TokenUsage: &domain.TokenUsage{
			PromptTokens:     respBody.UsageMetadata.PromptTokenCount,
			CompletionTokens: respBody.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

func toGeminiContents(req *domain.ProviderRequest) []geminiContent {
	if len(req.Messages) > 0 {
		out := make([]geminiContent, 0, len(req.Messages))
		for _, m := range req.Messages {
			role := "user"
			if m.Role == domain.RoleAssistant {
				role = "model"
			}
			out = append(out, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
		}
		return out
	}
	return []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}}
}
