package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Gauges is a private registry of process-local operational metrics,
// deliberately separate from pkg/metrics' JSONL event sink (spec.md §4.3's
// C4) — this is an additive layer a host application can scrape, not part
// of the spec's metric schema. Grounded on agentflow/axonflow/jupiter's use
// of prometheus/client_golang for service instrumentation.
type Gauges struct {
	registry *prometheus.Registry

	AttemptsInFlight prometheus.Gauge
	RateLimiterWait  prometheus.Histogram
	ConsensusVotes   *prometheus.CounterVec
	ShadowDiffs      *prometheus.CounterVec
}

// NewGauges constructs a Gauges backed by a fresh, private Registry (never
// the global default registry, so multiple Orchestrators in one process
// don't collide).
func NewGauges() *Gauges {
	registry := prometheus.NewRegistry()

	g := &Gauges{
		registry: registry,
		AttemptsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "llmrun_attempts_in_flight",
			Help: "Number of provider attempts currently executing.",
		}),
		RateLimiterWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "llmrun_rate_limiter_wait_seconds",
			Help:    "Time spent blocked acquiring a rate-limit slot.",
			Buckets: prometheus.DefBuckets,
		}),
		ConsensusVotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmrun_consensus_votes_total",
			Help: "Consensus decisions by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		ShadowDiffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llmrun_shadow_diffs_total",
			Help: "Shadow executions by success/failure.",
		}, []string{"shadow_ok"}),
	}

	registry.MustRegister(g.AttemptsInFlight, g.RateLimiterWait, g.ConsensusVotes, g.ShadowDiffs)
	return g
}

// Registry exposes the private prometheus.Registry for a host process to
// serve on its own /metrics endpoint.
func (g *Gauges) Registry() *prometheus.Registry { return g.registry }

// ObserveRateLimiterWait records how long an Acquire call blocked.
func (g *Gauges) ObserveRateLimiterWait(d time.Duration) {
	g.RateLimiterWait.Observe(d.Seconds())
}
