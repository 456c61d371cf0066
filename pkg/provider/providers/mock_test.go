package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

func TestMockProviderDefaultResponse(t *testing.T) {
	p := NewMockProvider("alpha")
	req, err := domain.NewProviderRequest("m", domain.WithPrompt("hi"))
	require.NoError(t, err)

	resp, err := p.Invoke(context.Background(), req)
	require.NoError(t, err)
	require.Contains(t, resp.Text, "alpha")
	require.Equal(t, "alpha", p.Name())
}

func TestMockProviderWithResponseText(t *testing.T) {
	p := NewMockProvider("beta").WithResponseText("fixed text")
	req, _ := domain.NewProviderRequest("m", domain.WithPrompt("hi"))

	resp, err := p.Invoke(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "fixed text", resp.Text)
}

func TestNewFailingMockAlwaysFails(t *testing.T) {
	p := NewFailingMock("gamma", domain.AuthError, "nope")
	req, _ := domain.NewProviderRequest("m", domain.WithPrompt("hi"))

	_, err := p.Invoke(context.Background(), req)
	require.Error(t, err)
	require.True(t, domain.Is(err, domain.AuthError))
}

func TestNewFlakyMockSucceedsAfterThreshold(t *testing.T) {
	p := NewFlakyMock("delta", 2, domain.RetriableError, "ok now")
	req, _ := domain.NewProviderRequest("m", domain.WithPrompt("hi"))
	ctx := context.Background()

	_, err := p.Invoke(ctx, req)
	require.Error(t, err)
	_, err = p.Invoke(ctx, req)
	require.Error(t, err)

	resp, err := p.Invoke(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "ok now", resp.Text)
}

func TestNewSlowMockRespectsCancellation(t *testing.T) {
	p := NewSlowMock("epsilon", 200*time.Millisecond, "too slow")
	req, _ := domain.NewProviderRequest("m", domain.WithPrompt("hi"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Invoke(ctx, req)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
