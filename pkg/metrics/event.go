// Package metrics implements the append-only JSONL event sink (spec.md §4.3/§6).
package metrics

import "time"

// SchemaVersion is the current MetricEvent schema version (spec.md §6).
// Additive changes bump only documentation; removing or repurposing a field
// requires incrementing this constant.
const SchemaVersion = 1

// Event is one line of the JSONL sink. Fields beyond the common envelope
// vary by Event discriminator; each emitter (the attempt executor and the
// runners) populates only the fields its event type requires.
type Event struct {
	TS            time.Time      `json:"ts"`
	RunID         string         `json:"run_id"`
	Event         string         `json:"event"`
	SchemaVersion int            `json:"schema_version"`

	// provider_call / provider_success / provider_skipped
	Provider       string      `json:"provider,omitempty"`
	Model          string      `json:"model,omitempty"`
	LatencyMS      *int64      `json:"latency_ms,omitempty"`
	Status         string      `json:"status,omitempty"`
	FailureKind    string      `json:"failure_kind,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	TokenUsage     *TokenUsage `json:"token_usage,omitempty"`
	AttemptIndex   *int        `json:"attempt_index,omitempty"`
	CostEstimate   *float64    `json:"cost_estimate,omitempty"`
	Reason         string      `json:"reason,omitempty"`

	// provider_chain_failed
	Providers []string          `json:"providers,omitempty"`
	Failures  []FailureRecord   `json:"failures,omitempty"`

	// parallel_first_success
	WinnerProvider     string   `json:"winner_provider,omitempty"`
	WinnerLatencyMS    *int64   `json:"winner_latency_ms,omitempty"`
	CancelledProviders []string `json:"cancelled_providers,omitempty"`

	// consensus_vote
	Strategy            string               `json:"strategy,omitempty"`
	Quorum              *int                 `json:"quorum,omitempty"`
	VotesFor            *int                 `json:"votes_for,omitempty"`
	VotesAgainst        *int                 `json:"votes_against,omitempty"`
	Abstained           *int                 `json:"abstained,omitempty"`
	WinnerScore         *float64             `json:"winner_score,omitempty"`
	TieBreaker          string               `json:"tie_breaker,omitempty"`
	TieBreakApplied     *bool                `json:"tie_break_applied,omitempty"`
	TieBreakReason      string               `json:"tie_break_reason,omitempty"`
	CandidateSummaries  []CandidateSummary   `json:"candidate_summaries,omitempty"`

	// shadow_diff
	RequestFingerprint   string                `json:"request_fingerprint,omitempty"`
	PrimaryProvider      string                `json:"primary_provider,omitempty"`
	PrimaryLatencyMS     *int64                `json:"primary_latency_ms,omitempty"`
	ShadowProvider       string                `json:"shadow_provider,omitempty"`
	ShadowOK             *bool                 `json:"shadow_ok,omitempty"`
	ShadowLatencyMS      *int64                `json:"shadow_latency_ms,omitempty"`
	LatencyGapMS         *int64                `json:"latency_gap_ms,omitempty"`
	ShadowError          string                `json:"shadow_error,omitempty"`
	ShadowConsensusDelta *ShadowConsensusDelta `json:"shadow_consensus_delta,omitempty"`
}

// TokenUsage mirrors domain.TokenUsage for the JSONL wire shape, kept
// independent of the domain package so the metrics schema can evolve
// without coupling to the in-process request/response model.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FailureRecord is one entry of a provider_chain_failed event's Failures list.
type FailureRecord struct {
	Provider string `json:"provider"`
	Kind     string `json:"failure_kind"`
	Message  string `json:"message"`
}

// CandidateSummary is one entry of a consensus_vote event's CandidateSummaries.
type CandidateSummary struct {
	Provider  string   `json:"provider"`
	Status    string   `json:"status"`
	LatencyMS int64    `json:"latency_ms"`
	Cost      *float64 `json:"cost_estimate,omitempty"`
	Score     *float64 `json:"score,omitempty"`
}

// ShadowConsensusDelta records what a shadow's vote/score/tie-break would
// have looked like had it been a voter in the primary's consensus run.
type ShadowConsensusDelta struct {
	WouldChangeWinner bool     `json:"would_change_winner"`
	ShadowVoteGroup   string   `json:"shadow_vote_group,omitempty"`
	ShadowScore       *float64 `json:"shadow_score,omitempty"`
}

const (
	EventProviderCall         = "provider_call"
	EventProviderSuccess      = "provider_success"
	EventProviderSkipped      = "provider_skipped"
	EventProviderChainFailed  = "provider_chain_failed"
	EventParallelFirstSuccess = "parallel_first_success"
	EventConsensusVote        = "consensus_vote"
	EventShadowDiff           = "shadow_diff"
)
