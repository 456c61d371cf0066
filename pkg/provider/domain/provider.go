package domain

import "context"

// Capability is a token a provider advertises about what it supports.
// The core never requires a capability to run; it may filter on them when
// a caller documents the requirement (see FilterByCapability).
type Capability string

const (
	CapabilityStreaming Capability = "streaming"
	CapabilityJSONMode  Capability = "json_mode"
	CapabilityVision    Capability = "vision"
	CapabilityTools     Capability = "tools"
)

// Provider is the uniform contract every backend (OpenAI, Gemini, Ollama,
// OpenRouter, or a deterministic mock) conforms to. Invoke may block or
// suspend; it must honour ctx's deadline and return a *ClassifiedError on
// failure — never a partially-populated ProviderResponse.
type Provider interface {
	Name() string
	Capabilities() []Capability
	Invoke(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error)
}

// HasCapability reports whether p advertises the given capability.
func HasCapability(p Provider, capability Capability) bool {
	for _, c := range p.Capabilities() {
		if c == capability {
			return true
		}
	}
	return false
}

// FilterByCapability returns the subset of providers advertising the
// required capability, preserving order. Used by callers that need e.g.
// only JSON-mode-capable providers for a structured-output consensus run;
// the core itself never calls this implicitly.
func FilterByCapability(providers []Provider, required Capability) []Provider {
	filtered := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if HasCapability(p, required) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
