package domain

import (
	"context"
	"time"
)

// Mode selects which runner the orchestrator dispatches a request to.
type Mode string

const (
	ModeSequential  Mode = "sequential"
	ModeParallelAny Mode = "parallel_any"
	ModeParallelAll Mode = "parallel_all"
	ModeConsensus   Mode = "consensus"
)

// Strategy selects the consensus voting algorithm (spec.md §3).
type Strategy string

const (
	StrategyMajorityVote Strategy = "majority_vote"
	StrategyMaxScore     Strategy = "max_score"
	StrategyWeightedVote Strategy = "weighted_vote"
)

// TieBreaker selects the deterministic rule that resolves equal-rank
// consensus groups.
type TieBreaker string

const (
	TieBreakMinLatency TieBreaker = "min_latency"
	TieBreakMinCost    TieBreaker = "min_cost"
	TieBreakStableOrder TieBreaker = "stable_order"
)

// Judge scores a successful candidate in [0, 1] for the max_score strategy.
// Implementations are supplied by the caller (the CLI resolves a reference
// string to a concrete Judge before invoking the engine), per spec.md §9's
// "Judge and schema as injectable callables" design note.
type Judge interface {
	Score(ctx context.Context, candidate Candidate) (float64, error)
}

// Schema validates/parses a candidate's text output for the JSON-aware
// normalisation path of the consensus aggregator.
type Schema interface {
	Validate(output string) (map[string]any, error)
}

// ConsensusConfig configures the consensus aggregator (C9). ConsensusConfig
// is required iff RunnerConfig.Mode == ModeConsensus.
type ConsensusConfig struct {
	Strategy        Strategy
	Quorum          int
	TieBreaker      TieBreaker
	Schema          Schema
	Judge           Judge
	ProviderWeights map[string]float64
	MaxLatencyMS    *int64
	MaxCostUSD      *float64
}

// DefaultConsensusConfig returns the spec.md §3 defaults: majority vote,
// quorum 2, stable-order tie-break.
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		Strategy:   StrategyMajorityVote,
		Quorum:     2,
		TieBreaker: TieBreakStableOrder,
	}
}

// BackoffPolicy configures the sequential runner's retry sleeps (spec.md §4.6).
type BackoffPolicy struct {
	RateLimitSleep      time.Duration
	TimeoutNextProvider bool
	RetriableNextProvider bool
}

// DefaultBackoffPolicy returns the spec.md §4.1 default: a 50ms sleep on
// RateLimitError, and advancing immediately on timeout/retriable failures.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		RateLimitSleep:        50 * time.Millisecond,
		TimeoutNextProvider:   true,
		RetriableNextProvider: true,
	}
}

// RunnerConfig configures one orchestrator call.
type RunnerConfig struct {
	Mode            Mode
	MaxConcurrency  int
	RPM             int
	BackoffPolicy   BackoffPolicy
	ShadowProvider  Provider
	MetricsPath     string
	ConsensusConfig *ConsensusConfig
}

// Validate enforces the cross-field invariants from spec.md §3: a
// non-positive MaxConcurrency is raised to 1, a ConsensusConfig.Quorum below
// 1 is raised to 1, and consensus mode without a ConsensusConfig is an error.
func (c *RunnerConfig) Validate() error {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 1
	}
	if c.Mode == ModeConsensus && c.ConsensusConfig == nil {
		return ErrConsensusConfigRequired
	}
	if c.ConsensusConfig != nil {
		if c.ConsensusConfig.Quorum < 1 {
			c.ConsensusConfig.Quorum = 1
		}
	}
	return nil
}

// ErrConsensusConfigRequired is returned by RunnerConfig.Validate when Mode
// is consensus but ConsensusConfig is nil.
var ErrConsensusConfigRequired = newValidationError("consensus mode requires a ConsensusConfig")

func newValidationError(msg string) error { return validationError(msg) }

type validationError string

func (e validationError) Error() string { return "domain: " + string(e) }
