package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"github.com/lexlapax/llmrun/pkg/metrics"
	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

var shadowJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ShadowRunner fires a configured provider alongside the primary call,
// never blocking or affecting the primary's result (spec.md §4.9, C10,
// invariant 5). Each call to Run spawns an independent errgroup task;
// Close drains any still-running shadow attempts before returning.
type ShadowRunner struct {
	attempter *Attempter
	provider  domain.Provider

	mu sync.Mutex
	g  errgroup.Group
}

// NewShadowRunner returns nil if provider is nil, so callers can do
// `shadow := NewShadowRunner(...); if shadow != nil { shadow.Run(...) }`
// without a separate enabled flag.
func NewShadowRunner(attempter *Attempter, provider domain.Provider) *ShadowRunner {
	if provider == nil {
		return nil
	}
	return &ShadowRunner{attempter: attempter, provider: provider}
}

// Run launches the shadow attempt in the background. primary is the
// already-completed primary candidate this shadow call is compared
// against; consensus is an optional hook invoked with the shadow's
// candidate once it completes, letting the caller compute a
// ShadowConsensusDelta without the shadow runner knowing about consensus
// internals.
func (s *ShadowRunner) Run(ctx context.Context, req *domain.ProviderRequest, primary domain.Candidate, consensus func(domain.Candidate) *metrics.ShadowConsensusDelta) {
	if s == nil {
		return
	}

	fingerprint := fingerprintRequest(req)

	s.mu.Lock()
	s.g.Go(func() error {
		shadowCandidate := s.attempter.Run(ctx, s.provider, req, 0)
		s.emitDiff(fingerprint, primary, shadowCandidate, consensus)
		return nil
	})
	s.mu.Unlock()
}

// Close waits for every in-flight shadow attempt to finish. Callers should
// invoke it before process shutdown so shadow metrics aren't lost, but it
// is never on the primary response's critical path.
func (s *ShadowRunner) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		_ = s.g.Wait()
		s.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ShadowRunner) emitDiff(fingerprint string, primary, shadow domain.Candidate, consensus func(domain.Candidate) *metrics.ShadowConsensusDelta) {
	ok := shadow.Ok()
	primaryLatency := primary.LatencyMS
	shadowLatency := shadow.LatencyMS
	gap := shadowLatency - primaryLatency

	event := metrics.Event{
		Event:              metrics.EventShadowDiff,
		RunID:              s.attempter.RunID,
		RequestFingerprint: fingerprint,
		PrimaryProvider:    primary.ProviderID,
		PrimaryLatencyMS:   &primaryLatency,
		ShadowProvider:     shadow.ProviderID,
		ShadowOK:           &ok,
		ShadowLatencyMS:    &shadowLatency,
		LatencyGapMS:       &gap,
	}
	if !ok && shadow.Failure != nil {
		event.ShadowError = shadow.Failure.Message
	}
	if consensus != nil {
		event.ShadowConsensusDelta = consensus(shadow)
	}

	if s.attempter.Gauges != nil {
		s.attempter.Gauges.ShadowDiffs.WithLabelValues(strconv.FormatBool(ok)).Inc()
	}

	s.attempter.Sink.Emit(event)
}

// fingerprintRequest derives a stable, content-addressed identifier for a
// request so a shadow_diff event can be correlated with its primary call
// without re-emitting the full prompt text.
func fingerprintRequest(req *domain.ProviderRequest) string {
	payload, err := shadowJSON.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:16]
}
