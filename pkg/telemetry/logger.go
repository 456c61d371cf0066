// Package telemetry provides the engine's structured logging and
// process-local operational gauges — the ambient observability stack the
// distilled spec omits, built the way BaSui01-agentflow builds its service
// layer's logging and instrumentation.
package telemetry

import "go.uber.org/zap"

// NewLogger returns a production zap.Logger. Callers that want a silent
// logger (e.g. library embedders, tests) should use zap.NewNop() directly
// rather than a bespoke no-op type.
func NewLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

// NewDevelopmentLogger returns a human-readable console logger suited to
// the CLI's --verbose mode.
func NewDevelopmentLogger() (*zap.Logger, error) {
	return zap.NewDevelopment()
}
