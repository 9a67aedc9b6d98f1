// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

// Package budget enforces hard ceilings on tokens, cost and wall-clock time.
//
// The tracker is check-then-act: CheckAndReserve is evaluated strictly before
// an agent is invoked and a denial means the agent must not be invoked at all.
// Ceilings are evaluated with OR semantics: breaching any one dimension denies.
// A zero-valued Limits field leaves that dimension unconstrained; a ceiling
// explicitly configured as zero is expressed as ZeroCeiling and denies the
// very first reservation.
package budget

import (
	"strconv"
	"sync"
	"time"

	"github.com/jllopis/orchestra/pkg/errors"
)

// ZeroCeiling marks a ceiling that was explicitly configured as zero. The
// zero value of a Limits field means unconstrained; an explicit zero from
// configuration denies every reservation in that dimension.
const ZeroCeiling = -1

// Limits are the configured ceilings for one run. A zero value in any
// dimension means that dimension is unconstrained; ZeroCeiling means an
// effective ceiling of zero.
type Limits struct {
	MaxTokens   int
	MaxCost     float64
	MaxDuration time.Duration
}

// TokenCeiling returns the effective token ceiling and whether the dimension
// is constrained at all.
func (l Limits) TokenCeiling() (int, bool) {
	if l.MaxTokens == 0 {
		return 0, false
	}
	if l.MaxTokens < 0 {
		return 0, true
	}
	return l.MaxTokens, true
}

// CostCeiling returns the effective cost ceiling and whether the dimension is
// constrained at all.
func (l Limits) CostCeiling() (float64, bool) {
	if l.MaxCost == 0 {
		return 0, false
	}
	if l.MaxCost < 0 {
		return 0, true
	}
	return l.MaxCost, true
}

// DurationCeiling returns the effective wall-clock ceiling and whether the
// dimension is constrained at all.
func (l Limits) DurationCeiling() (time.Duration, bool) {
	if l.MaxDuration == 0 {
		return 0, false
	}
	if l.MaxDuration < 0 {
		return 0, true
	}
	return l.MaxDuration, true
}

// Usage is a resource delta, either an estimate or actual consumption.
type Usage struct {
	Tokens   int
	Cost     float64
	Duration time.Duration
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		Tokens:   u.Tokens + other.Tokens,
		Cost:     u.Cost + other.Cost,
		Duration: u.Duration + other.Duration,
	}
}

// Snapshot is a point-in-time view of cumulative consumption and ceilings.
type Snapshot struct {
	Limits  Limits
	Used    Usage
	Elapsed time.Duration
}

// TokensRemaining returns the token headroom, or -1 when unconstrained.
func (s Snapshot) TokensRemaining() int {
	ceiling, constrained := s.Limits.TokenCeiling()
	if !constrained {
		return -1
	}
	r := ceiling - s.Used.Tokens
	if r < 0 {
		return 0
	}
	return r
}

// CostRemaining returns the cost headroom, or -1 when unconstrained.
func (s Snapshot) CostRemaining() float64 {
	ceiling, constrained := s.Limits.CostCeiling()
	if !constrained {
		return -1
	}
	r := ceiling - s.Used.Cost
	if r < 0 {
		return 0
	}
	return r
}

// Tracker maintains cumulative consumption against configured ceilings.
// Committed counters are monotonically non-decreasing for the life of a run.
type Tracker struct {
	mu       sync.Mutex
	limits   Limits
	used     Usage
	reserved Usage
	start    time.Time
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the wall clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker. The wall-clock ceiling is measured from this
// call.
func NewTracker(limits Limits, opts ...Option) *Tracker {
	t := &Tracker{
		limits: limits,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.now()
	return t
}

// CheckAndReserve verifies that the estimated usage fits under every ceiling
// and records it as a reservation. It must be called before the agent is
// invoked; on denial no side effect has occurred and the run must halt.
//
// The returned error carries code BUDGET_EXCEEDED with a "dimension"
// attribute naming the breached ceiling.
func (t *Tracker) CheckAndReserve(est Usage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	projected := t.used.Add(t.reserved).Add(est)
	if ceiling, constrained := t.limits.TokenCeiling(); constrained && projected.Tokens > ceiling {
		return t.denied("tokens", strconv.Itoa(ceiling))
	}
	if ceiling, constrained := t.limits.CostCeiling(); constrained && projected.Cost > ceiling {
		return t.denied("cost", strconv.FormatFloat(ceiling, 'f', -1, 64))
	}
	if ceiling, constrained := t.limits.DurationCeiling(); constrained && t.now().Sub(t.start) > ceiling {
		return t.denied("time", ceiling.String())
	}
	t.reserved = t.reserved.Add(est)
	return nil
}

// Commit folds actual consumption into the committed counters and releases
// the outstanding reservation. Called only after a turn actually completed.
func (t *Tracker) Commit(actual Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserved = Usage{}
	t.used = t.used.Add(actual)
}

// Release drops the outstanding reservation without committing anything.
// Used on the failed-turn path, after any partial usage has been committed.
func (t *Tracker) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserved = Usage{}
}

// Exhausted reports whether committed usage or elapsed time already breaches
// a ceiling. Checked at turn boundaries.
func (t *Tracker) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ceiling, constrained := t.limits.TokenCeiling(); constrained && t.used.Tokens >= ceiling {
		return true
	}
	if ceiling, constrained := t.limits.CostCeiling(); constrained && t.used.Cost >= ceiling {
		return true
	}
	if ceiling, constrained := t.limits.DurationCeiling(); constrained && t.now().Sub(t.start) > ceiling {
		return true
	}
	return false
}

// Remaining returns a snapshot of cumulative counters and ceilings.
func (t *Tracker) Remaining() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Limits:  t.limits,
		Used:    t.used,
		Elapsed: t.now().Sub(t.start),
	}
}

func (t *Tracker) denied(dimension, ceiling string) *errors.OrchestraError {
	return errors.New(errors.CodeBudgetExceeded, dimension+" budget exceeded", nil).
		WithAttribute("dimension", dimension).
		WithAttribute("ceiling", ceiling).
		WithRecoverable(false)
}
