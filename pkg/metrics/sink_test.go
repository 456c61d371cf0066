package metrics

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONLSinkWritesOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewJSONLSink(path)
	require.NoError(t, err)

	sink.Emit(Event{RunID: "r1", Event: EventProviderCall, Provider: "openai"})
	sink.Emit(Event{RunID: "r1", Event: EventProviderSuccess, Provider: "openai"})
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	require.Equal(t, 2, lines)
}

func TestJSONLSinkFillsSchemaVersionAndTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewJSONLSink(path)
	require.NoError(t, err)
	sink.Emit(Event{RunID: "r1", Event: EventProviderCall})
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, jsonAPI.Unmarshal(data, &decoded))
	require.Equal(t, SchemaVersion, decoded.SchemaVersion)
	require.False(t, decoded.TS.IsZero())
}

func TestNopSinkDropsEverything(t *testing.T) {
	sink := NopSink{}
	sink.Emit(Event{Event: EventProviderCall})
	require.NoError(t, sink.Close())
}

func TestNewRunIDGeneratesUniqueIDs(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	require.NotEqual(t, a, b)
	require.NotEmpty(t, a)
}
