package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	dto "github.com/prometheus/client_model/go"
)

func TestGaugesObserveRateLimiterWait(t *testing.T) {
	g := NewGauges()
	g.ObserveRateLimiterWait(25 * time.Millisecond)

	metric := &dto.Metric{}
	require.NoError(t, g.RateLimiterWait.Write(metric))
	require.EqualValues(t, 1, metric.GetHistogram().GetSampleCount())
}

func TestGaugesAttemptsInFlightIncDec(t *testing.T) {
	g := NewGauges()
	g.AttemptsInFlight.Inc()
	g.AttemptsInFlight.Inc()
	g.AttemptsInFlight.Dec()

	metric := &dto.Metric{}
	require.NoError(t, g.AttemptsInFlight.Write(metric))
	require.EqualValues(t, 1, metric.GetGauge().GetValue())
}

func TestGaugesRegistryGathersRegisteredMetrics(t *testing.T) {
	g := NewGauges()
	g.ConsensusVotes.WithLabelValues("majority_vote", "winner").Inc()

	families, err := g.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
