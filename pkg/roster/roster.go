// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

// Package roster holds the fixed participant roster and the speaking order.
//
// The roster is validated once at startup; a configured order that names an
// unknown agent, repeats an agent, or includes an observer is a configuration
// error, fatal before any round starts.
package roster

import (
	"fmt"
	"sort"

	"github.com/jllopis/orchestra/pkg/core"
	"github.com/jllopis/orchestra/pkg/errors"
)

// RotationPolicy controls when the Head role rotates.
type RotationPolicy string

const (
	// RotatePerRound moves the Head to the next agent after every round.
	RotatePerRound RotationPolicy = "round"

	// RotatePerRun keeps the Head fixed for the whole run.
	RotatePerRun RotationPolicy = "run"
)

// Roster is the immutable participant set for a run.
type Roster struct {
	agents   map[string]core.AgentDescriptor
	order    []string
	rotation RotationPolicy
}

// New validates the roster and default speaking order.
//
// An empty order defaults to the roster's declared positions, observers
// excluded. Ties are impossible by construction: the order is a strict
// permutation of the speaking roster.
func New(descriptors []core.AgentDescriptor, order []string, rotation RotationPolicy) (*Roster, error) {
	if len(descriptors) == 0 {
		return nil, errors.New(errors.CodeConfig, "roster is empty", nil)
	}

	agents := make(map[string]core.AgentDescriptor, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, errors.New(errors.CodeConfig, "agent with empty name", nil)
		}
		if _, dup := agents[d.Name]; dup {
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("duplicate agent %q", d.Name), nil)
		}
		switch d.Privilege {
		case core.PrivilegeStandard, core.PrivilegeHead, core.PrivilegeObserver:
		case "":
			d.Privilege = core.PrivilegeStandard
		default:
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("unknown privilege %q for agent %q", d.Privilege, d.Name), nil)
		}
		agents[d.Name] = d
	}

	if len(order) == 0 {
		order = defaultOrder(descriptors)
	}
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		d, ok := agents[name]
		if !ok {
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("speaking order names unknown agent %q", name), nil)
		}
		if d.Privilege == core.PrivilegeObserver {
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("observer %q may not appear in speaking order", name), nil)
		}
		if seen[name] {
			return nil, errors.New(errors.CodeConfig, fmt.Sprintf("agent %q appears twice in speaking order", name), nil)
		}
		seen[name] = true
	}
	if len(order) == 0 {
		return nil, errors.New(errors.CodeConfig, "no speaking agents in roster", nil)
	}

	switch rotation {
	case RotatePerRound, RotatePerRun:
	case "":
		rotation = RotatePerRound
	case "none":
		// Older configurations wrote "none" for a fixed Head.
		rotation = RotatePerRun
	default:
		return nil, errors.New(errors.CodeConfig, fmt.Sprintf("unknown rotation policy %q", rotation), nil)
	}

	return &Roster{agents: agents, order: order, rotation: rotation}, nil
}

func defaultOrder(descriptors []core.AgentDescriptor) []string {
	ordered := make([]core.AgentDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Privilege != core.PrivilegeObserver {
			ordered = append(ordered, d)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })
	names := make([]string, len(ordered))
	for i, d := range ordered {
		names[i] = d.Name
	}
	return names
}

// Agent returns the descriptor for a roster member.
func (r *Roster) Agent(name string) (core.AgentDescriptor, bool) {
	d, ok := r.agents[name]
	return d, ok
}

// Rotation returns the configured rotation policy.
func (r *Roster) Rotation() RotationPolicy {
	return r.rotation
}

// Size returns the number of speaking agents.
func (r *Roster) Size() int {
	return len(r.order)
}

// OrderForRound returns the speaking order for a 1-based round number.
// With per-round rotation the order shifts forward by one each round, so the
// Head role at the front of the order rotates through the roster.
func (r *Roster) OrderForRound(round int) []string {
	out := make([]string, len(r.order))
	offset := 0
	if r.rotation == RotatePerRound && round > 1 {
		offset = (round - 1) % len(r.order)
	}
	for i := range r.order {
		out[i] = r.order[(i+offset)%len(r.order)]
	}
	return out
}

// HeadForRound returns the Head agent for a 1-based round number.
func (r *Roster) HeadForRound(round int) string {
	return r.OrderForRound(round)[0]
}
