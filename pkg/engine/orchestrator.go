package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lexlapax/llmrun/pkg/engine/consensus"
	"github.com/lexlapax/llmrun/pkg/engine/ratelimit"
	"github.com/lexlapax/llmrun/pkg/metrics"
	"github.com/lexlapax/llmrun/pkg/provider/domain"
	"github.com/lexlapax/llmrun/pkg/telemetry"
)

func errUnknownMode(mode domain.Mode) error {
	return fmt.Errorf("engine: unknown mode %q", mode)
}

// Orchestrator is the single entry point a caller uses to run a request
// against a set of providers under one of the four execution modes
// (spec.md §2, C11). One Orchestrator owns one rate limiter, shared across
// every call made through it, per spec.md §4.4.
type Orchestrator struct {
	attempter *Attempter
	limiter   *ratelimit.Limiter
	shadow    *ShadowRunner
	logger    *zap.Logger
}

// New constructs an Orchestrator. sink and logger may be nil; sink
// defaults to metrics.NopSink{} and logger to zap.NewNop().
func New(cfg domain.RunnerConfig, sink metrics.Sink, logger *zap.Logger, gauges *telemetry.Gauges, runID string) *Orchestrator {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := ratelimit.New(cfg.RPM)
	attempter := NewAttempter(limiter, sink, logger, gauges, runID)

	return &Orchestrator{
		attempter: attempter,
		limiter:   limiter,
		shadow:    NewShadowRunner(attempter, cfg.ShadowProvider),
		logger:    logger,
	}
}

// Run dispatches req to the runner selected by cfg.Mode, against providers
// in the order given. It emits at most one terminal metric event
// (provider_success or provider_chain_failed in sequential mode,
// parallel_first_success in parallel_any mode, consensus_vote in consensus
// mode; parallel_all mode and failed parallel or consensus runs emit none)
// in addition to one provider_call per attempt that reached its provider, and — when
// a shadow provider is configured — fires a best-effort shadow_diff
// alongside, isolated from the returned result per invariant 5.
func (o *Orchestrator) Run(ctx context.Context, req *domain.ProviderRequest, providers []domain.Provider, cfg domain.RunnerConfig) (*domain.Candidate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		result          *domain.Candidate
		err             error
		shadowConsensus func(domain.Candidate) *metrics.ShadowConsensusDelta
	)

	switch cfg.Mode {
	case domain.ModeSequential:
		result, err = RunSequential(ctx, o.attempter, providers, req, cfg.BackoffPolicy)
	case domain.ModeParallelAny:
		result, err = RunParallelAny(ctx, o.attempter, providers, req, cfg.MaxConcurrency)
	case domain.ModeParallelAll, domain.ModeConsensus:
		candidates := RunParallelAll(ctx, o.attempter, providers, req, cfg.MaxConcurrency)
		if cfg.Mode == domain.ModeParallelAll {
			result, err = firstSuccess(candidates)
		} else {
			var consensusResult *consensus.Result
			result, consensusResult, err = o.runConsensus(ctx, candidates, *cfg.ConsensusConfig)
			if err == nil && o.shadow != nil {
				shadowConsensus = o.shadowConsensusDelta(candidates, *cfg.ConsensusConfig, consensusResult)
			}
		}
	default:
		return nil, errUnknownMode(cfg.Mode)
	}

	if o.shadow != nil && result != nil {
		o.shadow.Run(ctx, req, *result, shadowConsensus)
	}

	return result, err
}

// Close drains any in-flight shadow attempts. Callers that configure a
// shadow provider should call this before process shutdown.
func (o *Orchestrator) Close(ctx context.Context) error {
	return o.shadow.Close(ctx)
}

func firstSuccess(candidates []domain.Candidate) (*domain.Candidate, error) {
	failures := make([]domain.ProviderFailure, 0, len(candidates))
	for i := range candidates {
		if candidates[i].Ok() {
			return &candidates[i], nil
		}
		failures = append(failures, domain.ProviderFailure{
			Provider: candidates[i].ProviderID,
			Kind:     candidates[i].Failure.Kind,
			Message:  candidates[i].Failure.Message,
		})
	}
	return nil, &domain.ParallelExecutionError{Failures: failures, Reason: "every provider failed"}
}

func (o *Orchestrator) runConsensus(ctx context.Context, candidates []domain.Candidate, cfg domain.ConsensusConfig) (*domain.Candidate, *consensus.Result, error) {
	result, err := consensus.Aggregate(ctx, candidates, cfg)
	if err != nil {
		return nil, nil, err
	}

	summaries := make([]metrics.CandidateSummary, 0, len(candidates))
	for _, c := range candidates {
		status := "failure"
		if c.Ok() {
			status = "success"
		}
		summaries = append(summaries, metrics.CandidateSummary{
			Provider:  c.ProviderID,
			Status:    status,
			LatencyMS: c.LatencyMS,
			Cost:      c.CostEstimate,
		})
	}

	quorum := cfg.Quorum
	votesFor := result.VotesFor
	votesAgainst := result.VotesAgainst
	abstained := result.Abstained
	tieApplied := result.TieBreakApplied

	o.attempter.Sink.Emit(metrics.Event{
		Event:              metrics.EventConsensusVote,
		RunID:              o.attempter.RunID,
		Strategy:           string(cfg.Strategy),
		Quorum:             &quorum,
		VotesFor:           &votesFor,
		VotesAgainst:       &votesAgainst,
		Abstained:          &abstained,
		WinnerProvider:     result.Winner.ProviderID,
		WinnerScore:        result.WinnerScore,
		TieBreaker:         string(cfg.TieBreaker),
		TieBreakApplied:    &tieApplied,
		TieBreakReason:     result.TieBreakReason,
		CandidateSummaries: summaries,
	})

	if o.attempter.Gauges != nil {
		outcome := "quorum"
		if tieApplied {
			outcome = "tie_break"
		}
		o.attempter.Gauges.ConsensusVotes.WithLabelValues(string(cfg.Strategy), outcome).Inc()
	}

	return &result.Winner, result, nil
}

// shadowConsensusDelta builds the callback ShadowRunner.Run invokes once the
// shadow attempt completes: it re-aggregates the primary's candidates with
// the shadow candidate added, and reports whether that changes the winner,
// per spec.md §4.9's "shadow_consensus_delta ... when the primary itself is
// a parallel/consensus run".
func (o *Orchestrator) shadowConsensusDelta(candidates []domain.Candidate, cfg domain.ConsensusConfig, primary *consensus.Result) func(domain.Candidate) *metrics.ShadowConsensusDelta {
	return func(shadow domain.Candidate) *metrics.ShadowConsensusDelta {
		withShadow := append(append([]domain.Candidate{}, candidates...), shadow)
		recomputed, err := consensus.Aggregate(context.Background(), withShadow, cfg)
		if err != nil {
			return &metrics.ShadowConsensusDelta{WouldChangeWinner: false}
		}

		delta := &metrics.ShadowConsensusDelta{
			WouldChangeWinner: recomputed.Winner.ProviderID != primary.Winner.ProviderID,
		}
		if cfg.Strategy == domain.StrategyMaxScore && cfg.Judge != nil && shadow.Ok() {
			if score, err := cfg.Judge.Score(context.Background(), shadow); err == nil {
				delta.ShadowScore = &score
			}
		}
		for _, g := range recomputed.Groups {
			for _, c := range g.Candidates {
				if c.ProviderID == shadow.ProviderID {
					delta.ShadowVoteGroup = g.Key
				}
			}
		}
		return delta
	}
}
