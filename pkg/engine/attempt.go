// Package engine implements the execution runners (C6-C11 of spec.md §2):
// the per-provider attempt executor, the sequential/parallel/shadow
// runners, the consensus aggregator wiring, and the single orchestrator
// entry point a caller invokes.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lexlapax/llmrun/pkg/engine/ratelimit"
	"github.com/lexlapax/llmrun/pkg/metrics"
	"github.com/lexlapax/llmrun/pkg/provider/domain"
	"github.com/lexlapax/llmrun/pkg/telemetry"
)

// Attempter executes one provider call end to end: acquire a rate-limit
// slot, apply the per-attempt deadline, invoke, classify the result, and
// emit a provider_call MetricEvent. It is the only piece of the engine
// that touches a Provider directly (spec.md §4.5, C6).
type Attempter struct {
	Limiter *ratelimit.Limiter
	Sink    metrics.Sink
	Logger  *zap.Logger
	Gauges  *telemetry.Gauges
	RunID   string
}

// NewAttempter wires the collaborators an Attempter needs. A nil Logger is
// replaced with zap.NewNop(); a nil Gauges is kept as nil and every gauge
// update is then skipped, so callers that don't care about observability
// can pass zero values.
func NewAttempter(limiter *ratelimit.Limiter, sink metrics.Sink, logger *zap.Logger, gauges *telemetry.Gauges, runID string) *Attempter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Attempter{Limiter: limiter, Sink: sink, Logger: logger, Gauges: gauges, RunID: runID}
}

// Run executes req against p once. On success it returns a Candidate with
// Success populated; on failure, Failure populated. Run never returns a Go
// error itself — every failure mode is represented in the returned
// Candidate, per spec.md §4.1's "errors as values, not panics" design.
func (a *Attempter) Run(ctx context.Context, p domain.Provider, req *domain.ProviderRequest, attemptIndex int) domain.Candidate {
	started := time.Now()
	providerName := p.Name()

	waitStart := time.Now()
	if err := a.Limiter.Acquire(ctx); err != nil {
		if a.Gauges != nil {
			a.Gauges.ObserveRateLimiterWait(time.Since(waitStart))
		}
		classified := domain.NewClassifiedError(providerName, domain.TimeoutError, "rate limiter wait cancelled: "+err.Error(), err)
		// The provider was never invoked, so no provider_call event is
		// emitted for this attempt.
		finished := time.Now()
		return domain.Candidate{
			ProviderID: providerName,
			Failure:    classified,
			LatencyMS:  finished.Sub(started).Milliseconds(),
			StartedAt:  started,
			FinishedAt: finished,
		}
	}
	if a.Gauges != nil {
		a.Gauges.ObserveRateLimiterWait(time.Since(waitStart))
		a.Gauges.AttemptsInFlight.Inc()
		defer a.Gauges.AttemptsInFlight.Dec()
	}

	attemptCtx := ctx
	var cancel context.CancelFunc
	if req.TimeoutS != nil {
		attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(*req.TimeoutS*float64(time.Second)))
		defer cancel()
	}

	resp, err := a.invokeSafely(attemptCtx, p, req)
	if err != nil {
		classified := classify(providerName, attemptCtx, err)
		return a.finish(req, providerName, started, attemptIndex, nil, classified)
	}

	return a.finish(req, providerName, started, attemptIndex, resp, nil)
}

// invokeSafely calls p.Invoke, converting any panic into a RetriableError
// candidate rather than letting it crash the caller, per spec.md §4.1's
// panic-isolation invariant.
func (a *Attempter) invokeSafely(ctx context.Context, p domain.Provider, req *domain.ProviderRequest) (resp *domain.ProviderResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Invoke(ctx, req)
}

// classify normalises a raw provider error into a ClassifiedError. A
// provider that already returns a *domain.ClassifiedError is passed
// through verbatim (providers are expected, but not required, to classify
// their own errors); anything else is treated as retriable unless the
// attempt's own context expired, which takes priority as a timeout.
func classify(providerName string, ctx context.Context, err error) *domain.ClassifiedError {
	if classified, ok := err.(*domain.ClassifiedError); ok {
		return classified
	}
	if ctx.Err() != nil {
		return domain.NewClassifiedError(providerName, domain.TimeoutError, err.Error(), err)
	}
	return domain.NewClassifiedError(providerName, domain.RetriableError, err.Error(), err)
}

func (a *Attempter) finish(req *domain.ProviderRequest, providerName string, started time.Time, attemptIndex int, resp *domain.ProviderResponse, failure *domain.ClassifiedError) domain.Candidate {
	finished := time.Now()
	latency := finished.Sub(started).Milliseconds()

	event := metrics.Event{
		Event:        metrics.EventProviderCall,
		RunID:        a.RunID,
		Provider:     providerName,
		Model:        req.Model,
		LatencyMS:    &latency,
		AttemptIndex: &attemptIndex,
	}

	candidate := domain.Candidate{
		ProviderID: providerName,
		LatencyMS:  latency,
		StartedAt:  started,
		FinishedAt: finished,
	}

	if failure != nil {
		event.Status = "error"
		event.FailureKind = string(failure.Kind)
		event.ErrorMessage = failure.Message
		candidate.Failure = failure
		a.Logger.Warn("provider attempt failed",
			zap.String("provider", providerName),
			zap.String("failure_kind", string(failure.Kind)),
			zap.Int64("latency_ms", latency),
		)
	} else {
		event.Status = "success"
		if resp.TokenUsage != nil {
			event.TokenUsage = &metrics.TokenUsage{
				PromptTokens:     resp.TokenUsage.PromptTokens,
				CompletionTokens: resp.TokenUsage.CompletionTokens,
				TotalTokens:      resp.TokenUsage.Total(),
			}
		}
		candidate.Success = resp
		a.Logger.Debug("provider attempt succeeded",
			zap.String("provider", providerName),
			zap.Int64("latency_ms", latency),
		)
	}

	a.Sink.Emit(event)
	return candidate
}
