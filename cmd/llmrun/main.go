// Command llmrun is a thin CLI over the engine orchestrator: it resolves
// providers and a RunnerConfig from flags/config file, submits one request,
// and prints the winning candidate as JSON, per spec.md §6.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	jsoniter "github.com/json-iterator/go"

	"github.com/lexlapax/llmrun/pkg/engine"
	"github.com/lexlapax/llmrun/pkg/metrics"
	"github.com/lexlapax/llmrun/pkg/provider/domain"
	"github.com/lexlapax/llmrun/pkg/telemetry"
)

var cliJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// CLI is the kong command tree, generalised from the teacher's
// cmd/cli_minimal.go MinimalCLI struct (global flags + cmd structs) down
// to the single "run" operation this engine exposes.
type CLI struct {
	Config  string `kong:"type='path',short='c',help='Config file location (YAML)'"`
	Verbose bool   `kong:"short='v',help='Enable verbose (development) logging'"`

	Run RunCmd `kong:"cmd,help='Submit one request to the configured providers'"`
}

// RunCmd is the CLI's sole operation: one prompt, against the providers
// named in the config file, under the configured execution mode.
type RunCmd struct {
	Prompt   string   `kong:"arg,required,help='Prompt text to send'"`
	Model    string   `kong:"short='m',default='default-model',help='Model name passed to each provider'"`
	Mode     string   `kong:"short='M',enum='sequential,parallel_any,parallel_all,consensus',help='Execution mode; overrides the config file'"`
	RunID    string   `kong:"help='Override the generated run_id'"`
	TimeoutS float64  `kong:"short='t',help='Per-attempt timeout in seconds'"`
}

func (r *RunCmd) Run(cliCtx *kong.Context, cli *CLI) error {
	fileCfg, err := loadFileConfig(cli.Config)
	if err != nil {
		return err
	}

	logger, err := newCLILogger(cli.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	sink, err := newCLISink(fileCfg.MetricsPath)
	if err != nil {
		return err
	}
	defer sink.Close() //nolint:errcheck

	providerList, err := buildProviders(fileCfg.Providers)
	if err != nil {
		return err
	}
	if len(providerList) == 0 {
		return fmt.Errorf("no providers configured: set providers in %s or use LLMRUN_PROVIDERS_0_KIND=mock", cli.Config)
	}

	runnerCfg, err := buildRunnerConfig(fileCfg, r.Mode)
	if err != nil {
		return err
	}

	opts := []domain.RequestOption{domain.WithPrompt(r.Prompt)}
	if r.TimeoutS > 0 {
		opts = append(opts, domain.WithTimeoutS(r.TimeoutS))
	}
	req, err := domain.NewProviderRequest(r.Model, opts...)
	if err != nil {
		return err
	}

	runID := r.RunID
	if runID == "" {
		runID = metrics.NewRunID()
	}

	gauges := telemetry.NewGauges()
	orchestrator := engine.New(runnerCfg, sink, logger, gauges, runID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := orchestrator.Run(ctx, req, providerList, runnerCfg)
	closeErr := orchestrator.Close(context.Background())
	if err != nil {
		return err
	}
	if closeErr != nil {
		logger.Sugar().Warnw("shadow drain failed", "error", closeErr)
	}

	out, err := cliJSON.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("llmrun"),
		kong.Description("Run a prompt against one or more LLM providers under a chosen execution mode."),
		kong.UsageOnError(),
		kong.Bind(cli),
	)
	err := ctx.Run(cli)
	ctx.FatalIfErrorf(err)
}
