package engine

import (
	"context"
	"time"

	"github.com/lexlapax/llmrun/pkg/metrics"
	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

// RunSequential tries providers in declared order, advancing to the next on
// failure, per spec.md §4.6 (C7). RateLimitError sleeps cfg.BackoffPolicy's
// RateLimitSleep before advancing. TimeoutError/RetriableError advance to the
// next provider only while policy.TimeoutNextProvider/RetriableNextProvider
// is true; when the relevant flag is false the chain stops at that failure
// instead of trying the remaining providers. It returns the first success,
// or *domain.AllFailedError once the chain stops.
func RunSequential(ctx context.Context, attempter *Attempter, providers []domain.Provider, req *domain.ProviderRequest, policy domain.BackoffPolicy) (*domain.Candidate, error) {
	failures := make([]domain.ProviderFailure, 0, len(providers))
	names := make([]string, 0, len(providers))

	for i, p := range providers {
		names = append(names, p.Name())

		candidate := attempter.Run(ctx, p, req, i)
		if candidate.Ok() {
			attempter.Sink.Emit(metrics.Event{
				Event:    metrics.EventProviderSuccess,
				RunID:    attempter.RunID,
				Provider: candidate.ProviderID,
			})
			return &candidate, nil
		}

		failures = append(failures, domain.ProviderFailure{
			Provider: candidate.ProviderID,
			Kind:     candidate.Failure.Kind,
			Message:  candidate.Failure.Message,
		})

		last := i == len(providers)-1
		stop := false
		switch candidate.Failure.Kind {
		case domain.RateLimitError:
			if !last {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(policy.RateLimitSleep):
				}
			}
		case domain.TimeoutError:
			stop = !policy.TimeoutNextProvider
		case domain.RetriableError:
			stop = !policy.RetriableNextProvider
		}
		if stop {
			break
		}
	}

	attempter.Sink.Emit(metrics.Event{
		Event:     metrics.EventProviderChainFailed,
		RunID:     attempter.RunID,
		Providers: names,
		Failures:  toFailureRecords(failures),
	})

	return nil, &domain.AllFailedError{Failures: failures}
}

func toFailureRecords(failures []domain.ProviderFailure) []metrics.FailureRecord {
	records := make([]metrics.FailureRecord, 0, len(failures))
	for _, f := range failures {
		records = append(records, metrics.FailureRecord{
			Provider: f.Provider,
			Kind:     string(f.Kind),
			Message:  f.Message,
		})
	}
	return records
}
