package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/lexlapax/llmrun/pkg/provider/domain"
)

// fileConfig is the on-disk shape a --config YAML file is unmarshalled
// into, generalised from the teacher's cmd/config.go Config struct
// (provider/model/verbose/output plus a per-provider credentials map) to
// a list of providers instead of one selected provider, since this CLI
// runs several providers per call.
type fileConfig struct {
	Mode           string                    `koanf:"mode"`
	RPM            int                       `koanf:"rpm"`
	MaxConcurrency int                       `koanf:"max_concurrency"`
	MetricsPath    string                    `koanf:"metrics_path"`
	Consensus      fileConsensusConfig       `koanf:"consensus"`
	Providers      []fileProviderCredentials `koanf:"providers"`
}

type fileConsensusConfig struct {
	Strategy   string             `koanf:"strategy"`
	Quorum     int                `koanf:"quorum"`
	TieBreaker string             `koanf:"tie_breaker"`
	Weights    map[string]float64 `koanf:"weights"`
}

type fileProviderCredentials struct {
	Kind   string `koanf:"kind"` // openai | gemini | ollama | openrouter | mock
	Name   string `koanf:"name"`
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
	URL    string `koanf:"base_url"`
}

// loadFileConfig layers defaults < YAML file (if present) < environment
// variables prefixed LLMRUN_, mirroring the teacher's layered precedence
// intent but replacing its hand-rolled os.ReadFile/yaml.Unmarshal
// (cmd/config.go) with koanf's provider-chain idiom, the stack the
// teacher's own go.mod already declares.
func loadFileConfig(path string) (*fileConfig, error) {
	k := koanf.New(".")

	defaults := fileConfig{
		Mode:           string(domain.ModeSequential),
		MaxConcurrency: 4,
	}
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}

	envProvider := env.Provider("LLMRUN_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "LLMRUN_")), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	var cfg fileConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}
