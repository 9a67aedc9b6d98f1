// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

// Package participant defines the agent capability boundary.
//
// A Composer produces one turn given context. It is the single suspension
// point per turn: the coordinator blocks on exactly one outstanding
// ComposeTurn call at a time. Concrete backends are injected at startup.
package participant

import (
	"context"

	"github.com/jllopis/orchestra/pkg/budget"
	"github.com/jllopis/orchestra/pkg/core"
)

// Composer produces a turn for an agent given the assembled context.
type Composer interface {
	ComposeTurn(ctx context.Context, tc core.TurnContext) (*core.Turn, error)
}

// ComposeError reports a failed compose attempt together with the usage that
// was actually consumed before the failure. The coordinator commits exactly
// that much and no more.
type ComposeError struct {
	Err   error
	Usage budget.Usage
}

// Error implements the error interface.
func (e *ComposeError) Error() string {
	return "compose turn: " + e.Err.Error()
}

// Unwrap exposes the underlying cause.
func (e *ComposeError) Unwrap() error {
	return e.Err
}
