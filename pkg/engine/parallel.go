package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lexlapax/llmrun/pkg/metrics"
	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

// RunParallelAny launches every provider concurrently (bounded by
// maxConcurrency) and returns the first success, cancelling the rest, per
// spec.md §4.7 (C8). If every provider fails, it returns
// *domain.ParallelExecutionError with every failure collected.
func RunParallelAny(ctx context.Context, attempter *Attempter, providers []domain.Provider, req *domain.ProviderRequest, maxConcurrency int) (*domain.Candidate, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(clampConcurrency(maxConcurrency, len(providers))))

	var (
		mu       sync.Mutex
		failures []domain.ProviderFailure
		winner   *domain.Candidate
	)

	g, gctx := errgroup.WithContext(runCtx)
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			candidate := attempter.Run(runCtx, p, req, i)

			mu.Lock()
			defer mu.Unlock()
			if candidate.Ok() {
				if winner == nil {
					winner = &candidate
					cancel() // stop the remaining in-flight attempts
				}
				return nil
			}
			failures = append(failures, domain.ProviderFailure{
				Provider: candidate.ProviderID,
				Kind:     candidate.Failure.Kind,
				Message:  candidate.Failure.Message,
			})
			return nil
		})
	}
	_ = g.Wait()

	if winner != nil {
		var cancelled []string
		for _, p := range providers {
			if p.Name() != winner.ProviderID {
				cancelled = append(cancelled, p.Name())
			}
		}
		latency := winner.LatencyMS
		attempter.Sink.Emit(metrics.Event{
			Event:              metrics.EventParallelFirstSuccess,
			RunID:              attempter.RunID,
			WinnerProvider:     winner.ProviderID,
			WinnerLatencyMS:    &latency,
			CancelledProviders: cancelled,
		})
		return winner, nil
	}

	return nil, &domain.ParallelExecutionError{Failures: failures, Reason: "every provider failed"}
}

// RunParallelAll launches every provider concurrently (bounded by
// maxConcurrency) and waits for all of them to finish, returning every
// candidate (success or failure) in declared provider order — the input to
// the consensus aggregator (spec.md §4.7, §4.8).
func RunParallelAll(ctx context.Context, attempter *Attempter, providers []domain.Provider, req *domain.ProviderRequest, maxConcurrency int) []domain.Candidate {
	sem := semaphore.NewWeighted(int64(clampConcurrency(maxConcurrency, len(providers))))
	candidates := make([]domain.Candidate, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				candidates[i] = domain.Candidate{
					ProviderID: p.Name(),
					Failure:    domain.NewClassifiedError(p.Name(), domain.TimeoutError, "cancelled before dispatch", err),
				}
				return nil
			}
			defer sem.Release(1)
			candidates[i] = attempter.Run(ctx, p, req, i)
			return nil
		})
	}
	_ = g.Wait()

	return candidates
}

func clampConcurrency(requested, providerCount int) int {
	if requested <= 0 {
		requested = 1
	}
	if providerCount > 0 && requested > providerCount {
		return providerCount
	}
	return requested
}
