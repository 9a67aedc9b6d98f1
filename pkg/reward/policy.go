// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

// Package reward scores agent contributions for future prioritization.
//
// Policies are pure functions of the completed turn and the agent's prior
// running score. The engine persists the running tally; the rubric itself is
// pluggable.
package reward

import (
	"strings"

	"github.com/jllopis/orchestra/pkg/core"
)

// ScoringPolicy derives a new running score from a completed turn and the
// agent's prior score. Implementations must be deterministic and total.
type ScoringPolicy interface {
	Score(turn core.Turn, prior float64) float64
}

// ContributionSignal is the baseline heuristic signal: non-empty line count
// clamped to [1, 5], plus one when self-evaluation metadata is present.
// Failed turns signal zero.
func ContributionSignal(turn core.Turn) float64 {
	if turn.Status != core.TurnOK || turn.Content == "" {
		return 0
	}
	lines := 0
	for _, line := range strings.Split(turn.Content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	signal := float64(lines)
	if signal < 1 {
		signal = 1
	}
	if signal > 5 {
		signal = 5
	}
	if _, ok := turn.Metadata["self_eval"]; ok {
		signal++
	}
	return signal
}

// HeuristicPolicy adds the baseline contribution signal to the prior score.
type HeuristicPolicy struct{}

// Score implements ScoringPolicy.
func (HeuristicPolicy) Score(turn core.Turn, prior float64) float64 {
	return prior + ContributionSignal(turn)
}

// EMAPolicy blends the contribution signal into the prior score with an
// exponential moving average. Alpha in (0, 1]; higher alpha weighs recent
// turns more.
type EMAPolicy struct {
	Alpha float64
}

// Score implements ScoringPolicy.
func (p EMAPolicy) Score(turn core.Turn, prior float64) float64 {
	alpha := p.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	return prior*(1-alpha) + ContributionSignal(turn)*alpha
}
