package consensus

import (
	"math"
	"sort"

	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

// groupByNormalisedOutput buckets successful candidates by their normalised
// text. When cfg.Schema is set, candidates are normalised by validating
// their output against the schema and comparing the resulting structured
// value instead of the raw text (spec.md §4.8's schema-aware comparison
// path) — two candidates that produce differently-formatted but
// schema-equivalent JSON land in the same group.
func groupByNormalisedOutput(candidates []domain.Candidate, cfg domain.ConsensusConfig) ([]Group, error) {
	index := map[string]int{}
	var groups []Group

	for _, c := range candidates {
		key, err := normaliseKey(c, cfg)
		if err != nil {
			// A candidate that fails schema validation abstains from voting
			// rather than failing the whole aggregation.
			continue
		}
		if i, ok := index[key]; ok {
			groups[i].Candidates = append(groups[i].Candidates, c)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, Group{Key: key, Candidates: []domain.Candidate{c}})
	}

	return groups, nil
}

func normaliseKey(c domain.Candidate, cfg domain.ConsensusConfig) (string, error) {
	text := c.Text()
	if cfg.Schema != nil {
		parsed, err := cfg.Schema.Validate(text)
		if err != nil {
			return "", err
		}
		return canonicalJSONKey(parsed), nil
	}
	return normalise(text), nil
}

// canonicalJSONKey produces a stable string key for a parsed JSON-like value
// by sorting map keys recursively, so field order never affects grouping.
func canonicalJSONKey(v any) string {
	var buf []byte
	buf = appendCanonical(buf, v)
	return string(buf)
}

func appendCanonical(buf []byte, v any) []byte {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = append(buf, '"')
			buf = append(buf, k...)
			buf = append(buf, '"', ':')
			buf = appendCanonical(buf, val[k])
		}
		buf = append(buf, '}')
	case []any:
		buf = append(buf, '[')
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendCanonical(buf, item)
		}
		buf = append(buf, ']')
	default:
		buf = append(buf, jsonMustMarshal(val)...)
	}
	return buf
}

func jsonMustMarshal(v any) []byte {
	b, err := jsonMarshal(v)
	if err != nil {
		return []byte(`null`)
	}
	return b
}

// breakTies applies the deterministic tie-break order — min_latency, then
// min_cost, then stable_order — starting at the configured rule, to pick a
// single winner out of a tied pool. Candidates still tied after the last
// rule resolve to the one that comes first in pool.
func breakTies(pool []domain.Candidate, rule domain.TieBreaker) (domain.Candidate, bool, string) {
	if len(pool) == 1 {
		return pool[0], false, ""
	}
	if len(pool) == 0 {
		return domain.Candidate{}, false, ""
	}

	costKey := func(c domain.Candidate) float64 {
		if c.CostEstimate == nil {
			// nulls sort last (spec.md §4.8 step 5.2): an unknown cost
			// must never beat a known, positive one.
			return math.Inf(1)
		}
		return *c.CostEstimate
	}

	switch rule {
	case domain.TieBreakMinCost:
		return minBy(pool, costKey), true, "min_cost"
	case domain.TieBreakStableOrder:
		return pool[0], true, "stable_order"
	default: // min_latency, then min_cost among the fastest
		fastest := minBy(pool, func(c domain.Candidate) float64 {
			return float64(c.LatencyMS)
		}).LatencyMS
		var tied []domain.Candidate
		for _, c := range pool {
			if c.LatencyMS == fastest {
				tied = append(tied, c)
			}
		}
		return minBy(tied, costKey), true, "min_latency"
	}
}

func minBy(pool []domain.Candidate, key func(domain.Candidate) float64) domain.Candidate {
	best := pool[0]
	bestKey := key(best)
	for _, c := range pool[1:] {
		if k := key(c); k < bestKey {
			best, bestKey = c, k
		}
	}
	return best
}
