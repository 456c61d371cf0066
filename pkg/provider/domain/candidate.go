package domain

import "time"

// Candidate is produced once per parallel-all attempt and consumed once by
// the consensus aggregator. It is never persisted — see spec.md §3.
type Candidate struct {
	ProviderID string

	// Success holds the response when the attempt succeeded; nil on failure.
	Success *ProviderResponse
	// Failure holds the classified error when the attempt failed; nil on success.
	Failure *ClassifiedError

	LatencyMS    int64
	CostEstimate *float64
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Ok reports whether the candidate represents a successful attempt.
func (c Candidate) Ok() bool { return c.Success != nil }

// Text returns the candidate's output text, or "" if it failed.
func (c Candidate) Text() string {
	if c.Success == nil {
		return ""
	}
	return c.Success.Text
}
