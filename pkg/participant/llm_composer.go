package participant

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jllopis/orchestra/pkg/budget"
	"github.com/jllopis/orchestra/pkg/core"
	"github.com/jllopis/orchestra/pkg/errors"
	"github.com/jllopis/orchestra/pkg/llm"
	"github.com/jllopis/orchestra/pkg/prompt"
)

// LLMComposer backs an agent with an llm.Provider. The phase prompt is
// rendered through the prompt library and the provider's token usage is
// priced into the turn.
type LLMComposer struct {
	provider    llm.Provider
	prompts     *prompt.Library
	pricing     *llm.Pricing
	temperature float64
}

// Option configures an LLMComposer.
type Option func(*LLMComposer)

// WithPricing attaches a pricing table for cost accounting.
func WithPricing(pricing *llm.Pricing) Option {
	return func(c *LLMComposer) {
		c.pricing = pricing
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(c *LLMComposer) {
		c.temperature = temperature
	}
}

// NewLLMComposer creates a provider-backed composer.
func NewLLMComposer(provider llm.Provider, prompts *prompt.Library, opts ...Option) *LLMComposer {
	c := &LLMComposer{
		provider: provider,
		prompts:  prompts,
		pricing:  llm.NewPricing(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComposeTurn implements Composer.
func (c *LLMComposer) ComposeTurn(ctx context.Context, tc core.TurnContext) (*core.Turn, error) {
	rendered, err := c.prompts.Render(tc.Phase, prompt.Data{
		AgentName:     tc.Agent.Name,
		AgentRole:     tc.Agent.Role,
		Round:         tc.Round,
		Objective:     tc.Objective,
		ProjectMemory: tc.ProjectMemory,
		Summary:       tc.Summary,
	})
	if err != nil {
		return nil, &ComposeError{Err: err}
	}

	req := llm.ChatRequest{
		Model:       tc.Agent.Model,
		Temperature: c.temperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: fmt.Sprintf("You are %s, acting as %s.", tc.Agent.Name, tc.Agent.Role)},
			{Role: llm.RoleUser, Content: rendered},
		},
	}

	started := time.Now()
	resp, err := c.provider.Chat(ctx, req)
	elapsed := time.Since(started)
	if err != nil {
		// The provider gave nothing back; only wall-clock time was spent.
		return nil, &ComposeError{
			Err:   errors.New(errors.CodeLLMError, "provider chat failed", err).WithRecoverable(true),
			Usage: budget.Usage{Duration: elapsed},
		}
	}

	turn := core.NewTurn(tc.Agent.Name, tc.Round, tc.Phase)
	turn.Content = resp.Content
	turn.Tokens = resp.Usage.TotalTokens
	turn.Cost = c.pricing.Cost(tc.Agent.Model, resp.Usage)
	turn.Duration = elapsed
	if eval, ok := extractSelfEval(resp.Content); ok {
		turn.Metadata = map[string]string{"self_eval": eval}
	}
	return &turn, nil
}

// extractSelfEval looks for a trailing "Self-eval: N/10" style line.
func extractSelfEval(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if !strings.HasPrefix(lower, "self-eval:") && !strings.HasPrefix(lower, "self eval:") {
			return "", false
		}
		value := strings.TrimSpace(line[strings.Index(line, ":")+1:])
		value = strings.TrimSuffix(value, "/10")
		if _, err := strconv.Atoi(value); err != nil {
			return "", false
		}
		return value, true
	}
	return "", false
}
