// Package providers holds concrete domain.Provider implementations: the
// deterministic mock family used throughout the engine's tests, and the
// HTTP-backed adapters for the real inference backends.
package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

// MockProvider is a deterministic, configurable domain.Provider used for
// engine tests and the CLI's `kind: mock` provider entries, grounded on the
// teacher's MockProvider func-field injection pattern (mock.go) adapted to
// the single-method Provider SPI.
type MockProvider struct {
	name         string
	capabilities []domain.Capability
	invokeFunc   func(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error)
}

// NewMockProvider returns a mock that always succeeds with a canned response.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name: name,
		invokeFunc: func(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
			return &domain.ProviderResponse{
				Text:         fmt.Sprintf("mock response from %s", name),
				Model:        req.Model,
				FinishReason: "stop",
				TokenUsage:   &domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5},
			}, nil
		},
	}
}

// WithCapabilities sets the capabilities the mock advertises.
func (p *MockProvider) WithCapabilities(caps ...domain.Capability) *MockProvider {
	p.capabilities = caps
	return p
}

// WithInvoke overrides the mock's invocation behaviour entirely.
func (p *MockProvider) WithInvoke(f func(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error)) *MockProvider {
	p.invokeFunc = f
	return p
}

// WithResponseText fixes the text the mock returns on every call.
func (p *MockProvider) WithResponseText(text string) *MockProvider {
	p.invokeFunc = func(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
		return &domain.ProviderResponse{Text: text, Model: req.Model, FinishReason: "stop"}, nil
	}
	return p
}

func (p *MockProvider) Name() string                        { return p.name }
func (p *MockProvider) Capabilities() []domain.Capability    { return p.capabilities }
func (p *MockProvider) Invoke(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
	return p.invokeFunc(ctx, req)
}

// NewSlowMock returns a mock whose Invoke sleeps delay before returning,
// honouring ctx cancellation — used to exercise timeout and rate-limit
// scenarios deterministically.
func NewSlowMock(name string, delay time.Duration, text string) *MockProvider {
	return NewMockProvider(name).WithInvoke(func(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return &domain.ProviderResponse{Text: text, Model: req.Model, FinishReason: "stop"}, nil
		}
	})
}

// NewFailingMock returns a mock whose Invoke always fails classified as kind.
func NewFailingMock(name string, kind domain.FailureKind, message string) *MockProvider {
	return NewMockProvider(name).WithInvoke(func(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
		return nil, domain.NewClassifiedError(name, kind, message, nil)
	})
}

// NewFlakyMock returns a mock that fails with kind for the first
// failCount calls, then succeeds with text on every call after. Useful for
// exercising the sequential runner's advance-on-failure path without a
// separate always-failing provider in the chain.
func NewFlakyMock(name string, failCount int, kind domain.FailureKind, text string) *MockProvider {
	calls := 0
	return NewMockProvider(name).WithInvoke(func(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResponse, error) {
		calls++
		if calls <= failCount {
			return nil, domain.NewClassifiedError(name, kind, "flaky mock induced failure", nil)
		}
		return &domain.ProviderResponse{Text: text, Model: req.Model, FinishReason: "stop"}, nil
	})
}
