package metrics

import (
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/google/uuid"
)

// jsonAPI matches the standard library's marshalling semantics while using
// json-iterator's faster codec, the same configuration the teacher's
// pkg/util/json wraps.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeRetries    = 3
	writeRetryDelay = 10 * time.Millisecond
)

// Sink accepts MetricEvents and is responsible for never letting a failure
// to record one propagate into the caller (spec.md §4.3/§7).
type Sink interface {
	Emit(event Event)
	// Close flushes and releases any underlying resources. Safe to call
	// more than once.
	Close() error
}

// NopSink drops every event. It is the sink used when metrics are disabled
// (spec.md §4.3: "Accept None/disabled mode").
type NopSink struct{}

func (NopSink) Emit(Event)   {}
func (NopSink) Close() error { return nil }

// JSONLSink is an append-only JSONL file sink. One write syscall per event,
// serialised under mu so interleaved concurrent Emit calls never corrupt a
// line.
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONLSink opens (creating if necessary) path for append and returns a
// Sink writing newline-terminated JSON objects to it.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLSink{file: f}, nil
}

// Emit marshals and appends event as one line. The write is attempted up to
// writeRetries times, writeRetryDelay apart, then the event is dropped
// silently; a marshal failure drops the event at once without retrying —
// metric-emission failure must never fail the caller's request.
func (s *JSONLSink) Emit(event Event) {
	if event.SchemaVersion == 0 {
		event.SchemaVersion = SchemaVersion
	}
	if event.TS.IsZero() {
		event.TS = time.Now().UTC()
	}

	line, err := jsonAPI.Marshal(event)
	if err != nil {
		return
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	var writeErr error
	for attempt := 0; attempt < writeRetries; attempt++ {
		if _, writeErr = s.file.Write(line); writeErr == nil {
			return
		}
		time.Sleep(writeRetryDelay)
	}
	// All retries exhausted: drop the event. Never propagate.
}

// Close flushes and closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// NewRunID generates a fresh run identifier for callers that don't supply
// their own, per spec.md §6 ("run_id caller-supplied or generated UUID").
func NewRunID() string {
	return uuid.NewString()
}
