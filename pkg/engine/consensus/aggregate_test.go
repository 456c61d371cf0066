package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

func candidate(id, text string, latency int64, cost float64) domain.Candidate {
	return domain.Candidate{
		ProviderID:   id,
		Success:      &domain.ProviderResponse{Text: text},
		LatencyMS:    latency,
		CostEstimate: &cost,
	}
}

func candidateNoCost(id, text string, latency int64) domain.Candidate {
	return domain.Candidate{
		ProviderID: id,
		Success:    &domain.ProviderResponse{Text: text},
		LatencyMS:  latency,
	}
}

func failed(id string, kind domain.FailureKind) domain.Candidate {
	return domain.Candidate{
		ProviderID: id,
		Failure:    &domain.ClassifiedError{Kind: kind, Provider: id, Message: "boom"},
	}
}

func TestAggregateMajorityVote(t *testing.T) {
	candidates := []domain.Candidate{
		candidate("a", "Paris is the capital", 100, 0.01),
		candidate("b", "paris is the capital", 120, 0.02),
		candidate("c", "Berlin", 90, 0.01),
	}
	cfg := domain.DefaultConsensusConfig()

	result, err := Aggregate(context.Background(), candidates, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, result.VotesFor)
	require.Contains(t, []string{"a", "b"}, result.Winner.ProviderID)
}

func TestAggregateQuorumNotMetFallsBackToTieBreak(t *testing.T) {
	candidates := []domain.Candidate{
		candidate("a", "one", 50, 0.01),
		candidate("b", "two", 30, 0.01),
		candidate("c", "three", 70, 0.01),
	}
	cfg := domain.DefaultConsensusConfig()
	cfg.TieBreaker = domain.TieBreakMinLatency

	result, err := Aggregate(context.Background(), candidates, cfg)
	require.NoError(t, err)
	require.True(t, result.TieBreakApplied)
	require.Equal(t, "b", result.Winner.ProviderID)
}

func TestAggregateWeightedVote(t *testing.T) {
	candidates := []domain.Candidate{
		candidate("a", "yes", 10, 0.0),
		candidate("b", "no", 10, 0.0),
		candidate("c", "no", 10, 0.0),
	}
	cfg := domain.ConsensusConfig{
		Strategy:   domain.StrategyWeightedVote,
		Quorum:     1,
		TieBreaker: domain.TieBreakStableOrder,
		ProviderWeights: map[string]float64{
			"a": 10.0,
			"b": 1.0,
			"c": 1.0,
		},
	}

	result, err := Aggregate(context.Background(), candidates, cfg)
	require.NoError(t, err)
	require.Equal(t, "a", result.Winner.ProviderID)
}

func TestAggregateNoSuccessesReturnsParallelExecutionError(t *testing.T) {
	candidates := []domain.Candidate{
		failed("a", domain.TimeoutError),
		failed("b", domain.AuthError),
	}
	cfg := domain.DefaultConsensusConfig()

	_, err := Aggregate(context.Background(), candidates, cfg)
	require.Error(t, err)
	var perr *domain.ParallelExecutionError
	require.ErrorAs(t, err, &perr)
	require.Len(t, perr.Failures, 2)
}

func TestAggregateFiltersByMaxLatency(t *testing.T) {
	candidates := []domain.Candidate{
		candidate("a", "slow", 5000, 0.0),
		candidate("b", "fast", 100, 0.0),
	}
	maxLatency := int64(1000)
	cfg := domain.DefaultConsensusConfig()
	cfg.Quorum = 1
	cfg.MaxLatencyMS = &maxLatency

	result, err := Aggregate(context.Background(), candidates, cfg)
	require.NoError(t, err)
	require.Equal(t, "b", result.Winner.ProviderID)
}

func TestAggregateMinCostTieBreakTreatsNilCostAsLast(t *testing.T) {
	candidates := []domain.Candidate{
		candidateNoCost("a", "one", 50),
		candidate("b", "two", 50, 0.05),
		candidate("c", "three", 50, 0.01),
	}
	cfg := domain.DefaultConsensusConfig()
	cfg.TieBreaker = domain.TieBreakMinCost

	result, err := Aggregate(context.Background(), candidates, cfg)
	require.NoError(t, err)
	require.True(t, result.TieBreakApplied)
	require.Equal(t, "c", result.Winner.ProviderID)
}

type stubJudge struct {
	scores map[string]float64
}

func (s stubJudge) Score(_ context.Context, c domain.Candidate) (float64, error) {
	return s.scores[c.ProviderID], nil
}

func TestAggregateMaxScoreUsesJudge(t *testing.T) {
	candidates := []domain.Candidate{
		candidate("a", "meh", 10, 0.0),
		candidate("b", "great", 10, 0.0),
		candidate("c", "terse", 10, 0.0),
	}
	cfg := domain.ConsensusConfig{
		Strategy:   domain.StrategyMaxScore,
		Quorum:     1,
		TieBreaker: domain.TieBreakStableOrder,
		Judge:      stubJudge{scores: map[string]float64{"a": 0.2, "b": 0.9, "c": 0.5}},
	}

	result, err := Aggregate(context.Background(), candidates, cfg)
	require.NoError(t, err)
	require.Equal(t, "b", result.Winner.ProviderID)
	require.NotNil(t, result.WinnerScore)
	require.InDelta(t, 0.9, *result.WinnerScore, 0.0001)
}
