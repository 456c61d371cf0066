package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap"

	"github.com/lexlapax/llmrun/pkg/engine/ratelimit"
	"github.com/lexlapax/llmrun/pkg/metrics"
	"github.com/lexlapax/llmrun/pkg/provider/domain"
	"github.com/lexlapax/llmrun/pkg/provider/providers"
)

type recordingSink struct {
	events []metrics.Event
}

func (s *recordingSink) Emit(e metrics.Event) { s.events = append(s.events, e) }
func (s *recordingSink) Close() error         { return nil }

func (s *recordingSink) countByName(name string) int {
	n := 0
	for _, e := range s.events {
		if e.Event == name {
			n++
		}
	}
	return n
}

func newTestRequest(t *testing.T) *domain.ProviderRequest {
	t.Helper()
	req, err := domain.NewProviderRequest("test-model", domain.WithPrompt("hello"))
	require.NoError(t, err)
	return req
}

func TestOrchestratorSequentialAdvancesOnFailure(t *testing.T) {
	sink := &recordingSink{}
	cfg := domain.RunnerConfig{Mode: domain.ModeSequential, MaxConcurrency: 1, BackoffPolicy: domain.DefaultBackoffPolicy()}
	orch := New(cfg, sink, zap.NewNop(), nil, "run-1")

	chain := []domain.Provider{
		providers.NewFailingMock("a", domain.RetriableError, "boom"),
		providers.NewFailingMock("b", domain.AuthError, "bad key"),
		providers.NewMockProvider("c"),
	}

	result, err := orch.Run(context.Background(), newTestRequest(t), chain, cfg)
	require.NoError(t, err)
	require.Equal(t, "c", result.ProviderID)
	require.Equal(t, 1, sink.countByName(metrics.EventProviderSuccess))
	require.Equal(t, 3, sink.countByName(metrics.EventProviderCall))
}

func TestOrchestratorSequentialAllFailed(t *testing.T) {
	sink := &recordingSink{}
	cfg := domain.RunnerConfig{Mode: domain.ModeSequential, MaxConcurrency: 1, BackoffPolicy: domain.DefaultBackoffPolicy()}
	orch := New(cfg, sink, zap.NewNop(), nil, "run-2")

	chain := []domain.Provider{
		providers.NewFailingMock("a", domain.RetriableError, "boom"),
		providers.NewFailingMock("b", domain.AuthError, "bad key"),
	}

	_, err := orch.Run(context.Background(), newTestRequest(t), chain, cfg)
	require.Error(t, err)
	var allFailed *domain.AllFailedError
	require.ErrorAs(t, err, &allFailed)
	require.Len(t, allFailed.Failures, 2)
	require.Equal(t, 1, sink.countByName(metrics.EventProviderChainFailed))
}

func TestOrchestratorSequentialStopsChainWhenRetriableNextProviderDisabled(t *testing.T) {
	sink := &recordingSink{}
	policy := domain.DefaultBackoffPolicy()
	policy.RetriableNextProvider = false
	cfg := domain.RunnerConfig{Mode: domain.ModeSequential, MaxConcurrency: 1, BackoffPolicy: policy}
	orch := New(cfg, sink, zap.NewNop(), nil, "run-2b")

	chain := []domain.Provider{
		providers.NewFailingMock("a", domain.RetriableError, "boom"),
		providers.NewMockProvider("b"),
	}

	_, err := orch.Run(context.Background(), newTestRequest(t), chain, cfg)
	require.Error(t, err)
	var allFailed *domain.AllFailedError
	require.ErrorAs(t, err, &allFailed)
	require.Len(t, allFailed.Failures, 1)
	require.Equal(t, 1, sink.countByName(metrics.EventProviderCall))
}

func TestOrchestratorSequentialSleepsOnRateLimit(t *testing.T) {
	sink := &recordingSink{}
	policy := domain.DefaultBackoffPolicy()
	policy.RateLimitSleep = 30 * time.Millisecond
	cfg := domain.RunnerConfig{Mode: domain.ModeSequential, MaxConcurrency: 1, BackoffPolicy: policy}
	orch := New(cfg, sink, zap.NewNop(), nil, "run-3")

	chain := []domain.Provider{
		providers.NewFailingMock("a", domain.RateLimitError, "slow down"),
		providers.NewMockProvider("b"),
	}

	start := time.Now()
	result, err := orch.Run(context.Background(), newTestRequest(t), chain, cfg)
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Equal(t, "b", result.ProviderID)
	require.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
}

func TestOrchestratorParallelAnyReturnsFirstSuccessAndCancelsRest(t *testing.T) {
	sink := &recordingSink{}
	cfg := domain.RunnerConfig{Mode: domain.ModeParallelAny, MaxConcurrency: 3}
	orch := New(cfg, sink, zap.NewNop(), nil, "run-4")

	chain := []domain.Provider{
		providers.NewSlowMock("slow", 200*time.Millisecond, "too late"),
		providers.NewMockProvider("fast"),
	}

	start := time.Now()
	result, err := orch.Run(context.Background(), newTestRequest(t), chain, cfg)
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Equal(t, "fast", result.ProviderID)
	require.Equal(t, 1, sink.countByName(metrics.EventParallelFirstSuccess))
	require.Less(t, elapsed, 150*time.Millisecond, "the slow attempt must be cancelled, not awaited")
}

func TestOrchestratorParallelAnyAllFail(t *testing.T) {
	sink := &recordingSink{}
	cfg := domain.RunnerConfig{Mode: domain.ModeParallelAny, MaxConcurrency: 2}
	orch := New(cfg, sink, zap.NewNop(), nil, "run-5")

	chain := []domain.Provider{
		providers.NewFailingMock("a", domain.RetriableError, "boom"),
		providers.NewFailingMock("b", domain.TimeoutError, "slow"),
	}

	_, err := orch.Run(context.Background(), newTestRequest(t), chain, cfg)
	require.Error(t, err)
	var perr *domain.ParallelExecutionError
	require.ErrorAs(t, err, &perr)
	require.Len(t, perr.Failures, 2)
}

func TestOrchestratorConsensusMajorityVote(t *testing.T) {
	sink := &recordingSink{}
	consensusCfg := domain.DefaultConsensusConfig()
	cfg := domain.RunnerConfig{Mode: domain.ModeConsensus, MaxConcurrency: 3, ConsensusConfig: &consensusCfg}
	orch := New(cfg, sink, zap.NewNop(), nil, "run-6")

	chain := []domain.Provider{
		providers.NewMockProvider("a").WithResponseText("Paris"),
		providers.NewMockProvider("b").WithResponseText("paris"),
		providers.NewMockProvider("c").WithResponseText("Berlin"),
	}

	result, err := orch.Run(context.Background(), newTestRequest(t), chain, cfg)
	require.NoError(t, err)
	require.Contains(t, []string{"a", "b"}, result.ProviderID)
	require.Equal(t, 1, sink.countByName(metrics.EventConsensusVote))
}

func TestOrchestratorShadowPopulatesConsensusDeltaUnderConsensusMode(t *testing.T) {
	sink := &recordingSink{}
	consensusCfg := domain.DefaultConsensusConfig()
	consensusCfg.Quorum = 1
	shadow := providers.NewMockProvider("shadow").WithResponseText("Berlin")
	cfg := domain.RunnerConfig{Mode: domain.ModeConsensus, MaxConcurrency: 3, ConsensusConfig: &consensusCfg, ShadowProvider: shadow}
	orch := New(cfg, sink, zap.NewNop(), nil, "run-6b")

	chain := []domain.Provider{
		providers.NewMockProvider("a").WithResponseText("Paris"),
		providers.NewMockProvider("b").WithResponseText("Paris"),
	}

	result, err := orch.Run(context.Background(), newTestRequest(t), chain, cfg)
	require.NoError(t, err)
	require.Equal(t, "Paris", result.Success.Text)

	require.NoError(t, orch.Close(context.Background()))
	require.Equal(t, 1, sink.countByName(metrics.EventShadowDiff))

	var diff *metrics.Event
	for i := range sink.events {
		if sink.events[i].Event == metrics.EventShadowDiff {
			diff = &sink.events[i]
		}
	}
	require.NotNil(t, diff)
	require.NotNil(t, diff.ShadowConsensusDelta)
	require.False(t, diff.ShadowConsensusDelta.WouldChangeWinner)
	require.Equal(t, "berlin", diff.ShadowConsensusDelta.ShadowVoteGroup)
}

func TestOrchestratorShadowDoesNotAffectPrimaryResult(t *testing.T) {
	sink := &recordingSink{}
	shadow := providers.NewSlowMock("shadow", 50*time.Millisecond, "shadow text")
	cfg := domain.RunnerConfig{Mode: domain.ModeSequential, MaxConcurrency: 1, BackoffPolicy: domain.DefaultBackoffPolicy(), ShadowProvider: shadow}
	orch := New(cfg, sink, zap.NewNop(), nil, "run-7")

	chain := []domain.Provider{providers.NewMockProvider("primary")}

	result, err := orch.Run(context.Background(), newTestRequest(t), chain, cfg)
	require.NoError(t, err)
	require.Equal(t, "primary", result.ProviderID)

	require.NoError(t, orch.Close(context.Background()))
	require.Equal(t, 1, sink.countByName(metrics.EventShadowDiff))
}

func TestAttempterLogsFailureAtWarnLevel(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)
	sink := &recordingSink{}
	attempter := NewAttempter(ratelimit.New(0), sink, logger, nil, "run-8")

	req := newTestRequest(t)
	candidate := attempter.Run(context.Background(), providers.NewFailingMock("x", domain.AuthError, "bad creds"), req, 0)

	require.False(t, candidate.Ok())
	require.Equal(t, 1, logs.Len())
}
