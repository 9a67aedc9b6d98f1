package participant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jllopis/orchestra/pkg/budget"
	"github.com/jllopis/orchestra/pkg/core"
	"github.com/jllopis/orchestra/pkg/errors"
)

// ScriptedComposer returns a fixed sequence of responses with fixed usage.
// It is the deterministic offline backend, selected for tests and dry runs.
type ScriptedComposer struct {
	mu        sync.Mutex
	responses []string
	index     int

	// TokensPerTurn and CostPerTurn are reported on every composed turn.
	TokensPerTurn int
	CostPerTurn   float64

	// FailAt makes the n-th call (1-based) fail once with a recoverable
	// error reporting PartialUsage.
	FailAt       int
	PartialUsage budget.Usage

	calls int
}

// NewScriptedComposer creates a scripted composer cycling through responses.
func NewScriptedComposer(responses ...string) *ScriptedComposer {
	return &ScriptedComposer{
		responses:     responses,
		TokensPerTurn: 20,
	}
}

// Calls reports how many times ComposeTurn was invoked.
func (s *ScriptedComposer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ComposeTurn implements Composer.
func (s *ScriptedComposer) ComposeTurn(_ context.Context, tc core.TurnContext) (*core.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.FailAt > 0 && s.calls == s.FailAt {
		return nil, &ComposeError{
			Err:   errors.New(errors.CodeAgentFailure, "scripted failure", nil).WithRecoverable(true),
			Usage: s.PartialUsage,
		}
	}

	if len(s.responses) == 0 {
		return nil, &ComposeError{
			Err: errors.New(errors.CodeAgentFailure, "scripted composer: no responses", nil),
		}
	}
	content := s.responses[s.index%len(s.responses)]
	s.index++

	turn := core.NewTurn(tc.Agent.Name, tc.Round, tc.Phase)
	turn.Content = fmt.Sprintf("[%s | %s] %s", tc.Agent.Name, tc.Agent.Role, content)
	turn.Tokens = s.TokensPerTurn
	turn.Cost = s.CostPerTurn
	turn.Duration = time.Millisecond
	return &turn, nil
}
