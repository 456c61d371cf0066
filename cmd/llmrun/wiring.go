package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lexlapax/llmrun/pkg/metrics"
	"github.com/lexlapax/llmrun/pkg/provider/domain"
	"github.com/lexlapax/llmrun/pkg/provider/providers"
	"github.com/lexlapax/llmrun/pkg/telemetry"
)

func newCLILogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return telemetry.NewDevelopmentLogger()
	}
	return telemetry.NewLogger()
}

func newCLISink(path string) (metrics.Sink, error) {
	if path == "" {
		return metrics.NopSink{}, nil
	}
	return metrics.NewJSONLSink(path)
}

// buildProviders resolves each fileProviderCredentials entry into a live
// domain.Provider, in declared order — that order is what the sequential
// runner's chain and the stable_order tie-breaker key off of.
func buildProviders(entries []fileProviderCredentials) ([]domain.Provider, error) {
	out := make([]domain.Provider, 0, len(entries))
	for _, e := range entries {
		p, err := buildProvider(e)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func buildProvider(e fileProviderCredentials) (domain.Provider, error) {
	switch e.Kind {
	case "openai":
		opts := []providers.OpenAIOption{}
		if e.URL != "" {
			opts = append(opts, providers.WithOpenAIBaseURL(e.URL))
		}
		return providers.NewOpenAIProvider(e.APIKey, e.Model, opts...), nil
	case "gemini":
		opts := []providers.GeminiOption{}
		if e.URL != "" {
			opts = append(opts, providers.WithGeminiBaseURL(e.URL))
		}
		return providers.NewGeminiProvider(e.APIKey, e.Model, opts...), nil
	case "ollama":
		opts := []providers.OllamaOption{}
		if e.URL != "" {
			opts = append(opts, providers.WithOllamaBaseURL(e.URL))
		}
		return providers.NewOllamaProvider(e.Model, opts...), nil
	case "openrouter":
		opts := []providers.OpenRouterOption{}
		if e.URL != "" {
			opts = append(opts, providers.WithOpenRouterBaseURL(e.URL))
		}
		return providers.NewOpenRouterProvider(e.APIKey, e.Model, opts...), nil
	case "mock", "":
		name := e.Name
		if name == "" {
			name = "mock"
		}
		return providers.NewMockProvider(name), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", e.Kind)
	}
}

func buildRunnerConfig(fileCfg *fileConfig, modeOverride string) (domain.RunnerConfig, error) {
	mode := fileCfg.Mode
	if modeOverride != "" {
		mode = modeOverride
	}

	cfg := domain.RunnerConfig{
		Mode:           domain.Mode(mode),
		MaxConcurrency: fileCfg.MaxConcurrency,
		RPM:            fileCfg.RPM,
		BackoffPolicy:  domain.DefaultBackoffPolicy(),
	}

	if cfg.Mode == domain.ModeConsensus {
		consensusCfg := domain.DefaultConsensusConfig()
		if fileCfg.Consensus.Strategy != "" {
			consensusCfg.Strategy = domain.Strategy(fileCfg.Consensus.Strategy)
		}
		if fileCfg.Consensus.Quorum > 0 {
			consensusCfg.Quorum = fileCfg.Consensus.Quorum
		}
		if fileCfg.Consensus.TieBreaker != "" {
			consensusCfg.TieBreaker = domain.TieBreaker(fileCfg.Consensus.TieBreaker)
		}
		if len(fileCfg.Consensus.Weights) > 0 {
			consensusCfg.ProviderWeights = fileCfg.Consensus.Weights
		}
		cfg.ConsensusConfig = &consensusCfg
	}

	if err := cfg.Validate(); err != nil {
		return domain.RunnerConfig{}, err
	}
	return cfg, nil
}
