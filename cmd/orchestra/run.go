// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/jllopis/orchestra/pkg/budget"
	"github.com/jllopis/orchestra/pkg/config"
	"github.com/jllopis/orchestra/pkg/coordinator"
	"github.com/jllopis/orchestra/pkg/core"
	"github.com/jllopis/orchestra/pkg/errors"
	"github.com/jllopis/orchestra/pkg/llm"
	"github.com/jllopis/orchestra/pkg/participant"
	"github.com/jllopis/orchestra/pkg/prompt"
	"github.com/jllopis/orchestra/pkg/reward"
	"github.com/jllopis/orchestra/pkg/roster"
	"github.com/jllopis/orchestra/pkg/telemetry"
	"github.com/jllopis/orchestra/pkg/turnlog"
)

// runtime holds everything a command needs, wired from configuration.
type runtime struct {
	cfg     *config.Config
	coord   *coordinator.Coordinator
	store   turnlog.TurnStore
	rewards *reward.Engine
	close   func()
}

func runRun(ctx context.Context, global globalFlags, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	rounds := fs.Int("rounds", 0, "number of rounds (overrides config)")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	rt, err := buildRuntime(global)
	if err != nil {
		fatal(err)
	}

	n := rt.cfg.Round.Rounds
	if *rounds > 0 {
		n = *rounds
	}
	if n < 1 {
		n = 1
	}

	results, err := rt.coord.RunRounds(ctx, n)
	reportRun(results)
	// Close before exiting: os.Exit skips deferred telemetry flushes.
	rt.close()
	exitForRunError(err)
}

func runChat(ctx context.Context, global globalFlags, args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	cycles := fs.Int("cycles", 1, "number of exchange cycles")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if fs.NArg() != 2 {
		fatal(fmt.Errorf("chat requires exactly two agent names"))
	}

	rt, err := buildRuntime(global)
	if err != nil {
		fatal(err)
	}

	result, err := rt.coord.RunSideChat(ctx, fs.Arg(0), fs.Arg(1), *cycles)
	reportRun([]core.RoundResult{result})
	rt.close()
	exitForRunError(err)
}

func reportRun(results []core.RoundResult) {
	var turns, failed int
	for _, result := range results {
		turns += len(result.Turns)
		for _, turn := range result.Turns {
			if turn.Status == core.TurnFailed {
				failed++
			}
		}
	}
	fmt.Printf("rounds: %d  turns: %d  failed: %d\n", len(results), turns, failed)
}

func exitForRunError(err error) {
	if err == nil {
		os.Exit(exitOK)
	}
	fmt.Fprintln(os.Stderr, err)
	if errors.IsCode(err, errors.CodeBudgetExceeded) {
		os.Exit(exitBudget)
	}
	os.Exit(exitFatal)
}

// buildRuntime wires stores, providers and the coordinator from config.
func buildRuntime(global globalFlags) (*runtime, error) {
	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		return nil, err
	}
	baseDir := global.BaseDir
	if baseDir == "" {
		baseDir = "."
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	shutdown, err := telemetry.InitWithConfig("orchestra", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return nil, err
	}
	closers := []func(){func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown(ctx)
	}}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store, board, storeClosers, err := openStores(cfg, baseDir)
	if err != nil {
		cleanup()
		return nil, err
	}
	closers = append(closers, storeClosers...)

	prompts, err := prompt.Load(baseDir, cfg.Storage.PromptManifest)
	if err != nil {
		cleanup()
		return nil, err
	}

	composers, err := buildComposers(cfg, prompts)
	if err != nil {
		cleanup()
		return nil, err
	}

	r, err := roster.New(cfg.Descriptors(), cfg.Roster.DefaultOrder,
		roster.RotationPolicy(cfg.Round.Rotation))
	if err != nil {
		cleanup()
		return nil, err
	}

	metrics, err := telemetry.NewRoundMetrics()
	if err != nil {
		cleanup()
		return nil, err
	}

	outputFile := underBase(baseDir, cfg.Storage.OutputFile)
	if err := ensureParentDir(outputFile); err != nil {
		cleanup()
		return nil, err
	}

	engine := reward.NewEngine(board, nil)
	tracker := budget.NewTracker(cfg.Limits())

	opts := []coordinator.Option{
		coordinator.WithTurnEstimate(turnEstimate(cfg, buildPricing(cfg))),
		coordinator.WithObjective(cfg.Round.Objective),
		coordinator.WithTalkBackCycles(cfg.Round.TalkBackCycles),
		coordinator.WithLogger(logger),
		coordinator.WithMetrics(metrics),
		coordinator.WithOutputFile(outputFile),
		coordinator.WithProjectMemoryFile(underBase(baseDir, cfg.Storage.ProjectMemoryFile)),
	}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		opts = append(opts, coordinator.WithEvents(consoleEmitter{}))
	}

	coord, err := coordinator.New(r, tracker, store, engine, composers, opts...)
	if err != nil {
		cleanup()
		return nil, err
	}

	return &runtime{cfg: cfg, coord: coord, store: store, rewards: engine, close: cleanup}, nil
}

func openStores(cfg *config.Config, baseDir string) (turnlog.TurnStore, reward.ScoreBoard, []func(), error) {
	var closers []func()
	switch cfg.Storage.Backend {
	case "memory":
		return turnlog.NewMemoryStore(), reward.NewMemoryScoreBoard(), nil, nil

	case "file":
		store, err := turnlog.NewFileStore(underBase(baseDir, cfg.Storage.TurnLogDir))
		if err != nil {
			return nil, nil, nil, err
		}
		board, err := reward.NewFileScoreBoard(underBase(baseDir, cfg.Storage.ScoresFile))
		if err != nil {
			return nil, nil, nil, err
		}
		return store, board, nil, nil

	case "sqlite":
		turnDB := underBase(baseDir, cfg.Storage.TurnDB)
		scoreDB := underBase(baseDir, cfg.Storage.ScoreDB)
		if err := ensureParentDir(turnDB); err != nil {
			return nil, nil, nil, err
		}
		if err := ensureParentDir(scoreDB); err != nil {
			return nil, nil, nil, err
		}
		store, err := turnlog.Open(turnDB)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, func() { store.Close() })
		board, err := reward.OpenScoreBoard(scoreDB)
		if err != nil {
			store.Close()
			return nil, nil, nil, err
		}
		closers = append(closers, func() { board.Close() })
		return store, board, closers, nil
	}
	return nil, nil, nil, errors.New(errors.CodeConfig,
		"unknown storage backend "+cfg.Storage.Backend, nil)
}

// buildComposers creates one composer per roster agent, sharing provider
// clients across agents that use the same backend.
func buildComposers(cfg *config.Config, prompts *prompt.Library) (map[string]participant.Composer, error) {
	pricing := buildPricing(cfg)

	var ollama llm.Provider
	composers := make(map[string]participant.Composer, len(cfg.Roster.Agents))
	for _, agent := range cfg.Roster.Agents {
		provider := agent.Provider
		if provider == "" {
			provider = cfg.LLM.Provider
		}
		switch provider {
		case "ollama":
			if ollama == nil {
				ollama = llm.NewOllama(cfg.LLM.BaseURL)
			}
			composers[agent.Name] = participant.NewLLMComposer(ollama, prompts,
				participant.WithPricing(pricing),
				participant.WithTemperature(cfg.LLM.Temperature))
		case "scripted":
			composers[agent.Name] = participant.NewScriptedComposer(
				"Reviewing the objective and laying out next steps.",
				"Building on the previous turns with a concrete proposal.",
				"Summarizing progress and flagging open items.",
			)
		default:
			return nil, errors.New(errors.CodeConfig,
				fmt.Sprintf("unknown provider %q for agent %q", provider, agent.Name), nil)
		}
	}
	return composers, nil
}

func buildPricing(cfg *config.Config) *llm.Pricing {
	rates := make(map[string]llm.Rate, len(cfg.LLM.Pricing))
	for model, rate := range cfg.LLM.Pricing {
		rates[model] = llm.Rate{
			PromptPerMTok:     rate.PromptPerMTok,
			CompletionPerMTok: rate.CompletionPerMTok,
		}
	}
	return llm.NewPricing(rates)
}

// turnEstimate builds the usage reserved before each turn. When the
// configuration carries no explicit cost estimate, the cost component is
// priced from the token estimate for the default model so that cost ceilings
// hold even before the first real usage report arrives.
func turnEstimate(cfg *config.Config, pricing *llm.Pricing) budget.Usage {
	estimate := budget.Usage{
		Tokens: cfg.Budget.EstimateTokens,
		Cost:   cfg.Budget.EstimateCost,
	}
	if estimate.Cost == 0 && estimate.Tokens > 0 {
		half := estimate.Tokens / 2
		estimate.Cost = pricing.Cost(cfg.LLM.Model, llm.Usage{
			PromptTokens:     half,
			CompletionTokens: estimate.Tokens - half,
		})
	}
	return estimate
}

func ensureParentDir(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.New(errors.CodePersistence, "create data directory", err)
	}
	return nil
}

func underBase(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// consoleEmitter prints turn progress when stdout is a terminal.
type consoleEmitter struct{}

func (consoleEmitter) Emit(_ context.Context, event core.Event) {
	switch event.Type {
	case core.EventRoundStarted:
		fmt.Printf("round %d (head: %s)\n", event.Round, event.Agent)
	case core.EventTurnCompleted:
		fmt.Printf("  %s spoke (%v)\n", event.Agent, event.Payload["phase"])
	case core.EventTurnFailed:
		fmt.Printf("  %s failed: %v\n", event.Agent, event.Payload["error"])
	case core.EventBudgetDenied:
		fmt.Printf("  budget denied (%v) before %s\n", event.Payload["dimension"], event.Agent)
	}
}
