// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

// Package core defines the shared types of the round coordination engine.
package core

import (
	"time"

	"github.com/google/uuid"
)

// Privilege classifies an agent's standing within the roster.
type Privilege string

const (
	// PrivilegeStandard marks a regular speaking participant.
	PrivilegeStandard Privilege = "standard"

	// PrivilegeHead marks the agent eligible to lead rounds.
	PrivilegeHead Privilege = "head"

	// PrivilegeObserver marks an agent that never takes a turn.
	PrivilegeObserver Privilege = "observer"
)

// AgentDescriptor is the immutable identity of a roster member.
// Descriptors are loaded once at startup and live for the whole run.
type AgentDescriptor struct {
	Name      string
	Provider  string
	Model     string
	Role      string
	Privilege Privilege
	Position  int
}

// TurnPhase identifies where in a round a turn was produced.
type TurnPhase string

const (
	PhaseKickoff TurnPhase = "kickoff"
	PhaseTask    TurnPhase = "task"
	PhaseReview  TurnPhase = "review"
)

// TurnStatus records whether a turn completed or was absorbed as a failure.
type TurnStatus string

const (
	TurnOK     TurnStatus = "ok"
	TurnFailed TurnStatus = "failed"
)

// Turn is a single agent contribution. Turns are immutable once created;
// the coordinator owns a turn until it is appended to the turn store.
type Turn struct {
	ID        string
	Agent     string
	Round     int
	Seq       int
	Phase     TurnPhase
	Status    TurnStatus
	Content   string
	Error     string
	Tokens    int
	Cost      float64
	Duration  time.Duration
	Metadata  map[string]string
	CreatedAt time.Time
}

// NewTurn builds a turn with a fresh id and a UTC timestamp.
func NewTurn(agent string, round int, phase TurnPhase) Turn {
	return Turn{
		ID:        uuid.New().String(),
		Agent:     agent,
		Round:     round,
		Phase:     phase,
		Status:    TurnOK,
		CreatedAt: time.Now().UTC(),
	}
}

// TurnContext is the material handed to an agent when it is asked to speak.
// Later agents in a round see the summary including every turn committed
// earlier in the same round.
type TurnContext struct {
	Round         int
	Phase         TurnPhase
	Agent         AgentDescriptor
	Objective     string
	ProjectMemory string
	Summary       string
}

// RoundResult is the ordered outcome of one round. Completed is false when
// a budget denial truncated the round before every agent spoke.
type RoundResult struct {
	Round     int
	Head      string
	Turns     []Turn
	Completed bool
}
