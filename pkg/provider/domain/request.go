package domain

import "errors"

// ErrModelRequired is returned by NewProviderRequest when Model is empty.
var ErrModelRequired = errors.New("domain: model must not be empty")

// ErrPromptOrMessagesRequired is returned when neither Prompt nor Messages
// is set.
var ErrPromptOrMessagesRequired = errors.New("domain: at least one of prompt or messages is required")

// Role is the sender of a message in an ordered conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one role/content turn in ProviderRequest.Messages.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ProviderRequest is the immutable description of one inference call.
// It must not be mutated after being submitted to the engine; every
// method on it returns a derived value rather than altering the struct.
type ProviderRequest struct {
	Model       string                 `json:"model"`
	Prompt      string                 `json:"prompt,omitempty"`
	Messages    []Message              `json:"messages,omitempty"`
	MaxTokens   int                    `json:"max_tokens"`
	Temperature *float64               `json:"temperature,omitempty"`
	TopP        *float64               `json:"top_p,omitempty"`
	Stop        []string               `json:"stop,omitempty"`
	TimeoutS    *float64               `json:"timeout_s,omitempty"`
	Metadata    map[string]OptionValue `json:"metadata,omitempty"`
	Options     map[string]OptionValue `json:"options,omitempty"`
}

// DefaultMaxTokens is applied by NewProviderRequest when MaxTokens is left
// at its zero value, per spec.md §3.
const DefaultMaxTokens = 256

// NewProviderRequest validates and returns a ProviderRequest, applying the
// default MaxTokens. Constructing a ProviderRequest by hand (struct literal)
// is legal too — validation happens again at the orchestrator boundary via
// Validate — but this constructor is the idiomatic entry point.
func NewProviderRequest(model string, opts ...RequestOption) (*ProviderRequest, error) {
	req := &ProviderRequest{
		Model:     model,
		MaxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(req)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// RequestOption configures a ProviderRequest built via NewProviderRequest.
type RequestOption func(*ProviderRequest)

func WithPrompt(prompt string) RequestOption {
	return func(r *ProviderRequest) { r.Prompt = prompt }
}

func WithMessages(messages []Message) RequestOption {
	return func(r *ProviderRequest) { r.Messages = messages }
}

func WithMaxTokens(n int) RequestOption {
	return func(r *ProviderRequest) { r.MaxTokens = n }
}

func WithTemperature(t float64) RequestOption {
	return func(r *ProviderRequest) { r.Temperature = &t }
}

func WithTopP(p float64) RequestOption {
	return func(r *ProviderRequest) { r.TopP = &p }
}

func WithStop(stop []string) RequestOption {
	return func(r *ProviderRequest) { r.Stop = stop }
}

func WithTimeoutS(seconds float64) RequestOption {
	return func(r *ProviderRequest) { r.TimeoutS = &seconds }
}

func WithMetadata(metadata map[string]OptionValue) RequestOption {
	return func(r *ProviderRequest) { r.Metadata = metadata }
}

func WithOptions(options map[string]OptionValue) RequestOption {
	return func(r *ProviderRequest) { r.Options = options }
}

// Validate checks the invariants from spec.md §3: a non-empty model and at
// least one of Prompt or Messages.
func (r *ProviderRequest) Validate() error {
	if r.Model == "" {
		return ErrModelRequired
	}
	if r.Prompt == "" && len(r.Messages) == 0 {
		return ErrPromptOrMessagesRequired
	}
	if r.MaxTokens < 0 {
		return errors.New("domain: max_tokens must be non-negative")
	}
	return nil
}

// TokenUsage reports prompt/completion token counts for one attempt.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns the derived prompt+completion token count.
func (u TokenUsage) Total() int { return u.PromptTokens + u.CompletionTokens }

// ProviderResponse is returned only on a successful attempt; failures are
// always signalled through an error, never through a zero-value response.
type ProviderResponse struct {
	Text         string      `json:"text"`
	LatencyMS    int64       `json:"latency_ms"`
	TokenUsage   *TokenUsage `json:"token_usage,omitempty"`
	Model        string      `json:"model,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Raw          any         `json:"-"`
}
