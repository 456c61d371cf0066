// Package consensus implements the deterministic winner-selection pipeline
// from spec.md §4.8 (C9): filter by constraints, normalise outputs,
// apply a voting strategy, check quorum, and break ties deterministically.
package consensus

import (
	"context"
	"sort"
	"strings"

	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

// Result is the outcome of one Aggregate call, carrying everything the
// engine needs to emit a consensus_vote MetricEvent (spec.md §6).
type Result struct {
	Winner          domain.Candidate
	WinnerScore     *float64
	VotesFor        int
	VotesAgainst    int
	Abstained       int
	TieBreakApplied bool
	TieBreakReason  string
	Groups          []Group
}

// Group is one normalised-output voting bloc.
type Group struct {
	Key        string
	Candidates []domain.Candidate
	Weight     float64
}

// Aggregate runs the full spec.md §4.8 pipeline over candidates produced by
// a parallel-all attempt. It returns *domain.ParallelExecutionError when no
// candidate survives filtering, when zero candidates succeeded, or when no
// successful output passes schema validation.
func Aggregate(ctx context.Context, candidates []domain.Candidate, cfg domain.ConsensusConfig) (*Result, error) {
	filtered := filterByConstraints(candidates, cfg)
	if len(filtered) == 0 {
		return nil, &domain.ParallelExecutionError{
			Failures: failureList(candidates),
			Reason:   "no candidate satisfied the latency/cost constraints",
		}
	}

	successes := onlySuccesses(filtered)
	if len(successes) == 0 {
		return nil, &domain.ParallelExecutionError{
			Failures: failureList(candidates),
			Reason:   "no provider produced a successful response",
		}
	}

	groups, err := groupByNormalisedOutput(successes, cfg)
	if err != nil {
		return nil, err
	}
	// Outputs that failed schema validation are in no group; they count as
	// abstentions, like failed attempts.
	eligible := len(flatten(groups))
	if eligible == 0 {
		return nil, &domain.ParallelExecutionError{
			Failures: failureList(candidates),
			Reason:   "no successful response passed schema validation",
		}
	}

	switch cfg.Strategy {
	case domain.StrategyWeightedVote:
		applyWeights(groups, cfg.ProviderWeights)
	case domain.StrategyMaxScore:
		if cfg.Judge == nil {
			// Fall back to plain majority ranking when no judge is wired.
			applyWeights(groups, nil)
		}
	default: // StrategyMajorityVote
		applyWeights(groups, nil)
	}

	leading := leadingGroups(groups, cfg.Strategy)

	quorum := cfg.Quorum
	if quorum < 1 {
		quorum = 1
	}

	var pool []domain.Candidate
	var votesFor, votesAgainst int
	if len(leading) == 1 && len(leading[0].Candidates) >= quorum {
		pool = leading[0].Candidates
		votesFor = len(leading[0].Candidates)
		votesAgainst = eligible - votesFor
	} else if cfg.Judge != nil {
		scored, err := scoreWithJudge(ctx, flatten(leading), cfg.Judge)
		if err != nil {
			return nil, err
		}
		pool = []domain.Candidate{scored.candidate}
		votesFor = 1
		votesAgainst = eligible - 1
		winner, tieApplied, reason := breakTies(pool, cfg.TieBreaker)
		return &Result{
			Winner:          winner,
			WinnerScore:     &scored.score,
			VotesFor:        votesFor,
			VotesAgainst:    votesAgainst,
			Abstained:       len(candidates) - eligible,
			TieBreakApplied: tieApplied,
			TieBreakReason:  reason,
			Groups:          groups,
		}, nil
	} else {
		pool = flatten(leading)
		votesFor = len(leading[0].Candidates)
		votesAgainst = eligible - votesFor
	}

	winner, tieApplied, reason := breakTies(pool, cfg.TieBreaker)

	var winnerScore *float64
	if cfg.Strategy == domain.StrategyMaxScore && cfg.Judge != nil {
		score, err := cfg.Judge.Score(ctx, winner)
		if err == nil {
			winnerScore = &score
		}
	}

	return &Result{
		Winner:          winner,
		WinnerScore:     winnerScore,
		VotesFor:        votesFor,
		VotesAgainst:    votesAgainst,
		Abstained:       len(candidates) - eligible,
		TieBreakApplied: tieApplied,
		TieBreakReason:  reason,
		Groups:          groups,
	}, nil
}

func filterByConstraints(candidates []domain.Candidate, cfg domain.ConsensusConfig) []domain.Candidate {
	if cfg.MaxLatencyMS == nil && cfg.MaxCostUSD == nil {
		return candidates
	}
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if cfg.MaxLatencyMS != nil && c.LatencyMS > *cfg.MaxLatencyMS {
			continue
		}
		if cfg.MaxCostUSD != nil && c.CostEstimate != nil && *c.CostEstimate > *cfg.MaxCostUSD {
			continue
		}
		out = append(out, c)
	}
	return out
}

func onlySuccesses(candidates []domain.Candidate) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Ok() {
			out = append(out, c)
		}
	}
	return out
}

func failureList(candidates []domain.Candidate) []domain.ProviderFailure {
	failures := make([]domain.ProviderFailure, 0, len(candidates))
	for _, c := range candidates {
		if c.Failure != nil {
			failures = append(failures, domain.ProviderFailure{
				Provider: c.ProviderID,
				Kind:     c.Failure.Kind,
				Message:  c.Failure.Message,
			})
		}
	}
	return failures
}

// normalise applies the plain-text normalisation rule from spec.md §4.8:
// trim, collapse internal whitespace runs, lower-case.
func normalise(text string) string {
	fields := strings.Fields(text)
	return strings.ToLower(strings.Join(fields, " "))
}

func flatten(groups []Group) []domain.Candidate {
	var out []domain.Candidate
	for _, g := range groups {
		out = append(out, g.Candidates...)
	}
	return out
}

// leadingGroups returns the group(s) tied for the largest vote/weight. More
// than one entry means a tie across groups, which falls through to the
// judge-or-tie-break path in Aggregate.
func leadingGroups(groups []Group, strategy domain.Strategy) []Group {
	if len(groups) == 0 {
		return nil
	}
	sorted := append([]Group(nil), groups...)
	key := func(g Group) float64 {
		if strategy == domain.StrategyWeightedVote {
			return g.Weight
		}
		return float64(len(g.Candidates))
	}
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) > key(sorted[j]) })

	top := key(sorted[0])
	leading := []Group{sorted[0]}
	for _, g := range sorted[1:] {
		if key(g) == top {
			leading = append(leading, g)
		}
	}
	return leading
}

func applyWeights(groups []Group, weights map[string]float64) {
	for i := range groups {
		var total float64
		for _, c := range groups[i].Candidates {
			w := 1.0
			if weights != nil {
				if found, ok := weights[c.ProviderID]; ok {
					w = found
				}
			}
			total += w
		}
		groups[i].Weight = total
	}
}

type judgedCandidate struct {
	candidate domain.Candidate
	score     float64
}

func scoreWithJudge(ctx context.Context, candidates []domain.Candidate, judge domain.Judge) (judgedCandidate, error) {
	best := judgedCandidate{score: -1}
	for _, c := range candidates {
		score, err := judge.Score(ctx, c)
		if err != nil {
			continue
		}
		if score > best.score {
			best = judgedCandidate{candidate: c, score: score}
		}
	}
	if best.score < 0 {
		return judgedCandidate{}, &domain.ParallelExecutionError{Reason: "judge could not score any candidate"}
	}
	return best, nil
}
