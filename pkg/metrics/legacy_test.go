package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadLegacyTokenUsageParsesOldShape(t *testing.T) {
	line := []byte(`{"tokens_in": 10, "tokens_out": 20}`)
	usage, err := ReadLegacyTokenUsage(line)
	require.NoError(t, err)
	require.NotNil(t, usage)
	require.Equal(t, 10, usage.PromptTokens)
	require.Equal(t, 20, usage.CompletionTokens)
	require.Equal(t, 30, usage.TotalTokens)
}

func TestReadLegacyTokenUsageReturnsNilWhenAbsent(t *testing.T) {
	line := []byte(`{"event": "provider_call", "token_usage": {"prompt_tokens": 1, "completion_tokens": 2}}`)
	usage, err := ReadLegacyTokenUsage(line)
	require.NoError(t, err)
	require.Nil(t, usage)
}
