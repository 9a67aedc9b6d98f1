// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

// Package coordinator drives turn-based rounds over a fixed roster.
//
// A round has three phases: the Head opens with a kickoff, every agent takes
// one task turn per talk-back cycle in roster order, and the Head closes with
// a review. Exactly one agent speaks at a time. The budget is checked before
// every agent invocation; a denial stops the run before the agent runs.
package coordinator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/orchestra/pkg/budget"
	"github.com/jllopis/orchestra/pkg/core"
	"github.com/jllopis/orchestra/pkg/errors"
	"github.com/jllopis/orchestra/pkg/participant"
	"github.com/jllopis/orchestra/pkg/resilience"
	"github.com/jllopis/orchestra/pkg/reward"
	"github.com/jllopis/orchestra/pkg/roster"
	"github.com/jllopis/orchestra/pkg/telemetry"
	"github.com/jllopis/orchestra/pkg/turnlog"
)

// defaultEstimate is the per-turn reservation used when no estimate is
// configured.
var defaultEstimate = budget.Usage{Tokens: 512}

// Coordinator sequences turns, enforces the budget and records every outcome.
// It is safe for a single run at a time; turn sequence numbers are monotonic
// for the life of the coordinator.
type Coordinator struct {
	roster    *roster.Roster
	tracker   *budget.Tracker
	store     turnlog.TurnStore
	rewards   *reward.Engine
	composers map[string]participant.Composer

	retry          resilience.RetryConfig
	emitter        core.EventEmitter
	metrics        *telemetry.RoundMetrics
	logger         *slog.Logger
	tracer         trace.Tracer
	objective      string
	talkBackCycles int
	estimate       budget.Usage
	outputFile     string
	memoryFile     string

	mu  sync.Mutex
	seq int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObjective sets the shared objective handed to every agent.
func WithObjective(objective string) Option {
	return func(c *Coordinator) { c.objective = objective }
}

// WithTalkBackCycles sets how many task passes over the roster each round
// makes. Values below 1 are clamped to 1.
func WithTalkBackCycles(cycles int) Option {
	return func(c *Coordinator) {
		if cycles < 1 {
			cycles = 1
		}
		c.talkBackCycles = cycles
	}
}

// WithRetry overrides the retry policy for recoverable compose failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Coordinator) { c.retry = cfg }
}

// WithEvents sets the event emitter.
func WithEvents(emitter core.EventEmitter) Option {
	return func(c *Coordinator) { c.emitter = emitter }
}

// WithMetrics sets the round metrics instruments.
func WithMetrics(metrics *telemetry.RoundMetrics) Option {
	return func(c *Coordinator) { c.metrics = metrics }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithTurnEstimate sets the per-turn usage reserved before each invocation.
func WithTurnEstimate(est budget.Usage) Option {
	return func(c *Coordinator) { c.estimate = est }
}

// WithOutputFile sets the markdown file round summaries are appended to.
func WithOutputFile(path string) Option {
	return func(c *Coordinator) { c.outputFile = path }
}

// WithProjectMemoryFile sets the file whose content is handed to every agent
// as long-lived project memory. A missing file reads as empty.
func WithProjectMemoryFile(path string) Option {
	return func(c *Coordinator) { c.memoryFile = path }
}

// New builds a coordinator. Every speaking agent in the roster must have a
// composer; a missing composer is a configuration error.
func New(r *roster.Roster, tracker *budget.Tracker, store turnlog.TurnStore,
	rewards *reward.Engine, composers map[string]participant.Composer, opts ...Option) (*Coordinator, error) {

	c := &Coordinator{
		roster:         r,
		tracker:        tracker,
		store:          store,
		rewards:        rewards,
		composers:      composers,
		retry:          resilience.DefaultRetryConfig(),
		emitter:        core.NoopEventEmitter{},
		logger:         slog.Default(),
		tracer:         otel.Tracer("orchestra/coordinator"),
		talkBackCycles: 1,
		estimate:       defaultEstimate,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, name := range r.OrderForRound(1) {
		if _, ok := composers[name]; !ok {
			return nil, errors.New(errors.CodeConfig,
				fmt.Sprintf("no composer for agent %q", name), nil)
		}
	}
	return c, nil
}

// RunRounds executes n rounds and returns every round's result in order.
//
// A budget denial halts the run: the truncated round is included in the
// results with Completed false and the returned error carries
// BUDGET_EXCEEDED. Persistence failures are fatal. An agent failure is
// recorded as a failed turn and the round continues.
func (c *Coordinator) RunRounds(ctx context.Context, n int) ([]core.RoundResult, error) {
	ctx, runID := core.EnsureRunID(ctx)
	c.logger.InfoContext(ctx, "run started",
		slog.String("run_id", runID),
		slog.Int("rounds", n))
	results := make([]core.RoundResult, 0, n)

	for round := 1; round <= n; round++ {
		result, err := c.runRound(ctx, round)
		results = append(results, result)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// RunSideChat runs a focused exchange between two roster agents outside the
// regular round cadence. It reuses the same turn machinery: the shared budget
// is charged, every turn is logged and scored, and a denial halts the chat.
// Side-chat turns are recorded under round 0.
func (c *Coordinator) RunSideChat(ctx context.Context, a, b string, cycles int) (core.RoundResult, error) {
	ctx, _ = core.EnsureRunID(ctx)
	result := core.RoundResult{Round: 0, Head: a}

	agentA, ok := c.roster.Agent(a)
	if !ok {
		return result, errors.New(errors.CodeConfig, fmt.Sprintf("unknown agent %q", a), nil)
	}
	agentB, ok := c.roster.Agent(b)
	if !ok {
		return result, errors.New(errors.CodeConfig, fmt.Sprintf("unknown agent %q", b), nil)
	}
	if agentA.Privilege == core.PrivilegeObserver || agentB.Privilege == core.PrivilegeObserver {
		return result, errors.New(errors.CodeConfig, "observers may not join a side chat", nil)
	}
	if cycles < 1 {
		cycles = 1
	}

	ctx, span := c.tracer.Start(ctx, "coordinator.side_chat",
		trace.WithAttributes(
			attribute.String("orchestra.side_chat.a", a),
			attribute.String("orchestra.side_chat.b", b),
		))
	defer span.End()

	var summary strings.Builder
	memory := c.readProjectMemory()

	for cycle := 0; cycle < cycles; cycle++ {
		for _, agent := range []core.AgentDescriptor{agentA, agentB} {
			turn, err := c.runTurn(ctx, agent, 0, core.PhaseTask, memory, &summary)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				return result, err
			}
			result.Turns = append(result.Turns, turn)
		}
	}
	result.Completed = true
	return result, nil
}

func (c *Coordinator) runRound(ctx context.Context, round int) (core.RoundResult, error) {
	order := c.roster.OrderForRound(round)
	head := order[0]
	result := core.RoundResult{Round: round, Head: head}

	ctx, span := c.tracer.Start(ctx, "coordinator.round",
		trace.WithAttributes(
			attribute.Int(telemetry.AttrRound, round),
			attribute.String("orchestra.round.head", head),
		))
	defer span.End()

	c.logger.InfoContext(ctx, "round started",
		slog.Int("round", round),
		slog.String("head", head),
		slog.Any("order", order))
	c.emitter.Emit(ctx, core.NewEvent(core.EventRoundStarted, head, round,
		map[string]any{"order": order}))

	var summary strings.Builder
	memory := c.readProjectMemory()

	schedule := c.schedule(order)
	for _, slot := range schedule {
		agent, _ := c.roster.Agent(slot.agent)
		turn, err := c.runTurn(ctx, agent, round, slot.phase, memory, &summary)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return result, err
		}
		result.Turns = append(result.Turns, turn)
	}

	result.Completed = true
	if err := c.appendRoundSummary(result); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	snapshot := c.tracker.Remaining()
	c.logger.InfoContext(ctx, "round completed",
		slog.Int("round", round),
		slog.Int("turns", len(result.Turns)),
		slog.Int("tokens_used", snapshot.Used.Tokens),
		slog.Float64("cost_used", snapshot.Used.Cost))
	c.emitter.Emit(ctx, core.NewEvent(core.EventRoundCompleted, head, round,
		map[string]any{"turns": len(result.Turns)}))
	return result, nil
}

type turnSlot struct {
	agent string
	phase core.TurnPhase
}

// schedule expands one round into its kickoff, task and review slots.
func (c *Coordinator) schedule(order []string) []turnSlot {
	head := order[0]
	slots := make([]turnSlot, 0, 2+len(order)*c.talkBackCycles)
	slots = append(slots, turnSlot{agent: head, phase: core.PhaseKickoff})
	for cycle := 0; cycle < c.talkBackCycles; cycle++ {
		for _, name := range order {
			slots = append(slots, turnSlot{agent: name, phase: core.PhaseTask})
		}
	}
	slots = append(slots, turnSlot{agent: head, phase: core.PhaseReview})
	return slots
}

// runTurn executes one turn end to end: budget check, compose with retry,
// commit, persist, score. A returned error is fatal for the run; a failed
// turn comes back with status failed and a nil error so the round continues.
func (c *Coordinator) runTurn(ctx context.Context, agent core.AgentDescriptor,
	round int, phase core.TurnPhase, memory string, summary *strings.Builder) (core.Turn, error) {

	if err := ctx.Err(); err != nil {
		return core.Turn{}, errors.New(errors.CodeContextLost, "run canceled", err)
	}

	ctx, span := c.tracer.Start(ctx, "coordinator.turn",
		trace.WithAttributes(
			attribute.String(telemetry.AttrAgentName, agent.Name),
			attribute.Int(telemetry.AttrRound, round),
			attribute.String(telemetry.AttrTurnPhase, string(phase)),
		))
	defer span.End()

	c.emitter.Emit(ctx, core.NewEvent(core.EventTurnStarted, agent.Name, round,
		map[string]any{"phase": string(phase)}))

	if err := c.tracker.CheckAndReserve(c.estimate); err != nil {
		dimension := ""
		if oe := errors.AsOrchestraError(err); oe != nil {
			dimension = oe.Attributes["dimension"]
		}
		c.logger.WarnContext(ctx, "budget denied, halting run",
			slog.String("agent", agent.Name),
			slog.Int("round", round),
			slog.String("dimension", dimension))
		c.emitter.Emit(ctx, core.NewEvent(core.EventBudgetDenied, agent.Name, round,
			map[string]any{"dimension": dimension}))
		c.metrics.RecordDenial(ctx, dimension)
		span.SetStatus(codes.Error, "budget denied")
		return core.Turn{}, err
	}

	tc := core.TurnContext{
		Round:         round,
		Phase:         phase,
		Agent:         agent,
		Objective:     c.objective,
		ProjectMemory: memory,
		Summary:       summary.String(),
	}

	composer := c.composers[agent.Name]
	var turn *core.Turn
	composeErr := c.retry.Do(ctx, func() error {
		t, err := composer.ComposeTurn(ctx, tc)
		if err != nil {
			return err
		}
		turn = t
		return nil
	})

	if composeErr != nil {
		return c.absorbFailure(ctx, span, agent, round, phase, composeErr)
	}

	turn.Round = round
	turn.Seq = c.nextSeq()
	actual := budget.Usage{Tokens: turn.Tokens, Cost: turn.Cost, Duration: turn.Duration}
	c.tracker.Commit(actual)

	if err := c.store.Append(ctx, *turn); err != nil {
		span.SetStatus(codes.Error, "turn store append failed")
		return core.Turn{}, errors.New(errors.CodePersistence, "append turn", err).
			WithAttribute("agent", agent.Name)
	}
	score, err := c.rewards.Record(ctx, *turn)
	if err != nil {
		span.SetStatus(codes.Error, "score persist failed")
		return core.Turn{}, err
	}

	c.metrics.RecordTurn(ctx, agent.Name, string(phase), string(core.TurnOK), turn.Tokens, turn.Cost)
	c.metrics.RecordScore(ctx, agent.Name, score)
	c.logger.InfoContext(ctx, "turn completed",
		slog.String("agent", agent.Name),
		slog.Int("round", round),
		slog.String("phase", string(phase)),
		slog.Int("tokens", turn.Tokens),
		slog.Float64("score", score))
	c.emitter.Emit(ctx, core.NewEvent(core.EventTurnCompleted, agent.Name, round,
		map[string]any{"phase": string(phase), "tokens": turn.Tokens, "score": score}))

	fmt.Fprintf(summary, "%s: %s\n", agent.Name, turn.Content)
	return *turn, nil
}

// absorbFailure commits whatever partial usage the failed attempt consumed,
// records a failed turn and lets the round continue. Cancellation and
// persistence problems stay fatal.
func (c *Coordinator) absorbFailure(ctx context.Context, span trace.Span,
	agent core.AgentDescriptor, round int, phase core.TurnPhase, cause error) (core.Turn, error) {

	var partial budget.Usage
	var ce *participant.ComposeError
	if stderrors.As(cause, &ce) {
		partial = ce.Usage
	}
	c.tracker.Commit(partial)

	if errors.IsCode(cause, errors.CodeContextLost) {
		span.SetStatus(codes.Error, "run canceled")
		return core.Turn{}, cause
	}

	failed := core.NewTurn(agent.Name, round, phase)
	failed.Status = core.TurnFailed
	failed.Error = cause.Error()
	failed.Seq = c.nextSeq()
	failed.Tokens = partial.Tokens
	failed.Cost = partial.Cost
	failed.Duration = partial.Duration

	if err := c.store.Append(ctx, failed); err != nil {
		span.SetStatus(codes.Error, "turn store append failed")
		return core.Turn{}, errors.New(errors.CodePersistence, "append failed turn", err).
			WithAttribute("agent", agent.Name)
	}

	// Failed turns score zero signal, so recording them pulls decaying
	// policies down and keeps turn counts honest.
	score, err := c.rewards.Record(ctx, failed)
	if err != nil {
		span.SetStatus(codes.Error, "score persist failed")
		return core.Turn{}, err
	}

	c.metrics.RecordTurn(ctx, agent.Name, string(phase), string(core.TurnFailed), partial.Tokens, partial.Cost)
	c.metrics.RecordScore(ctx, agent.Name, score)
	c.logger.WarnContext(ctx, "turn failed, continuing round",
		slog.String("agent", agent.Name),
		slog.Int("round", round),
		slog.String("phase", string(phase)),
		slog.String("error", cause.Error()))
	c.emitter.Emit(ctx, core.NewEvent(core.EventTurnFailed, agent.Name, round,
		map[string]any{"phase": string(phase), "error": cause.Error()}))
	span.SetStatus(codes.Error, "turn failed")

	return failed, nil
}

func (c *Coordinator) nextSeq() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *Coordinator) readProjectMemory() string {
	if c.memoryFile == "" {
		return ""
	}
	data, err := os.ReadFile(c.memoryFile)
	if err != nil {
		return ""
	}
	return string(data)
}

// appendRoundSummary appends a markdown section for the round to the output
// file. A write failure is a persistence error, fatal for the run.
func (c *Coordinator) appendRoundSummary(result core.RoundResult) error {
	if c.outputFile == "" {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Round %d (head: %s)\n\n", result.Round, result.Head)
	for _, turn := range result.Turns {
		line := firstLine(turn.Content)
		if turn.Status == core.TurnFailed {
			line = "failed: " + firstLine(turn.Error)
		}
		fmt.Fprintf(&b, "- **%s** (%s): %s\n", turn.Agent, turn.Phase, line)
	}
	b.WriteString("\n")

	f, err := os.OpenFile(c.outputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.New(errors.CodePersistence, "open round summary file", err)
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return errors.New(errors.CodePersistence, "write round summary", err)
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
