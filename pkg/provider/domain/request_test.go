package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProviderRequestAppliesDefaultMaxTokens(t *testing.T) {
	req, err := NewProviderRequest("gpt-4", WithPrompt("hi"))
	require.NoError(t, err)
	require.Equal(t, DefaultMaxTokens, req.MaxTokens)
}

func TestNewProviderRequestRequiresModel(t *testing.T) {
	_, err := NewProviderRequest("", WithPrompt("hi"))
	require.ErrorIs(t, err, ErrModelRequired)
}

func TestNewProviderRequestRequiresPromptOrMessages(t *testing.T) {
	_, err := NewProviderRequest("gpt-4")
	require.ErrorIs(t, err, ErrPromptOrMessagesRequired)
}

func TestNewProviderRequestAcceptsMessagesWithoutPrompt(t *testing.T) {
	req, err := NewProviderRequest("gpt-4", WithMessages([]Message{{Role: RoleUser, Content: "hi"}}))
	require.NoError(t, err)
	require.Len(t, req.Messages, 1)
}

func TestRequestOptionsApplyInOrder(t *testing.T) {
	req, err := NewProviderRequest("gpt-4",
		WithPrompt("hi"),
		WithMaxTokens(10),
		WithTemperature(0.5),
		WithTopP(0.9),
		WithStop([]string{"\n"}),
		WithTimeoutS(2.5),
	)
	require.NoError(t, err)
	require.Equal(t, 10, req.MaxTokens)
	require.InDelta(t, 0.5, *req.Temperature, 0.0001)
	require.InDelta(t, 0.9, *req.TopP, 0.0001)
	require.Equal(t, []string{"\n"}, req.Stop)
	require.InDelta(t, 2.5, *req.TimeoutS, 0.0001)
}

func TestTokenUsageTotal(t *testing.T) {
	usage := TokenUsage{PromptTokens: 3, CompletionTokens: 4}
	require.Equal(t, 7, usage.Total())
}
