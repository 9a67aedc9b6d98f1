// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

package turnlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jllopis/orchestra/pkg/core"
)

func sampleTurn(agent string, round, seq int) core.Turn {
	turn := core.NewTurn(agent, round, core.PhaseTask)
	turn.Seq = seq
	turn.Content = "contribution from " + agent
	turn.Tokens = 25
	turn.Cost = 0.002
	turn.Duration = 120 * time.Millisecond
	turn.Metadata = map[string]string{"self_eval": "8"}
	return turn
}

func TestMemoryStore_AppendAndList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Append(ctx, sampleTurn("gemini", 1, 0))
	store.Append(ctx, sampleTurn("claude", 1, 1))
	store.Append(ctx, sampleTurn("gemini", 2, 0))

	byAgent, err := store.ListByAgent(ctx, "gemini")
	if err != nil {
		t.Fatalf("ListByAgent failed: %v", err)
	}
	if len(byAgent) != 2 {
		t.Fatalf("expected 2 gemini turns, got %d", len(byAgent))
	}
	if byAgent[0].Round != 1 || byAgent[1].Round != 2 {
		t.Errorf("turns not in insertion order: %+v", byAgent)
	}

	byRound, err := store.ListByRound(ctx, 1)
	if err != nil {
		t.Fatalf("ListByRound failed: %v", err)
	}
	if len(byRound) != 2 {
		t.Fatalf("expected 2 turns in round 1, got %d", len(byRound))
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "turns.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	first := sampleTurn("claude", 1, 0)
	failed := sampleTurn("gpt", 1, 1)
	failed.Status = core.TurnFailed
	failed.Error = "provider unavailable"
	failed.Content = ""
	failed.Metadata = nil

	if err := store.Append(ctx, first); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, failed); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	turns, err := store.ListByAgent(ctx, "claude")
	if err != nil {
		t.Fatalf("ListByAgent failed: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 claude turn, got %d", len(turns))
	}
	got := turns[0]
	if got.ID != first.ID || got.Content != first.Content {
		t.Errorf("turn did not round-trip: %+v", got)
	}
	if got.Metadata["self_eval"] != "8" {
		t.Errorf("metadata did not round-trip: %+v", got.Metadata)
	}
	if got.Duration != first.Duration {
		t.Errorf("duration did not round-trip: %v", got.Duration)
	}

	failures, err := store.ListByAgent(ctx, "gpt")
	if err != nil {
		t.Fatalf("ListByAgent failed: %v", err)
	}
	if len(failures) != 1 || failures[0].Status != core.TurnFailed {
		t.Fatalf("expected exactly one failure entry for gpt, got %+v", failures)
	}
	if failures[0].Error != "provider unavailable" {
		t.Errorf("failure reason lost: %q", failures[0].Error)
	}
}

func TestSQLiteStore_InsertionOrder(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "turns.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for seq := 0; seq < 4; seq++ {
		if err := store.Append(ctx, sampleTurn("gemini", 1, seq)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	turns, err := store.ListByRound(ctx, 1)
	if err != nil {
		t.Fatalf("ListByRound failed: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		if turn.Seq != i {
			t.Errorf("turn %d out of order: seq %d", i, turn.Seq)
		}
	}
}

func TestFileStore_AppendAndList(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()

	if err := store.Append(ctx, sampleTurn("claude", 1, 0)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, sampleTurn("claude", 1, 2)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, sampleTurn("gemini", 1, 1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	turns, err := store.ListByAgent(ctx, "claude")
	if err != nil {
		t.Fatalf("ListByAgent failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 claude turns, got %d", len(turns))
	}

	round, err := store.ListByRound(ctx, 1)
	if err != nil {
		t.Fatalf("ListByRound failed: %v", err)
	}
	if len(round) != 3 {
		t.Fatalf("expected 3 turns in round, got %d", len(round))
	}
	for i := 1; i < len(round); i++ {
		if round[i-1].Seq > round[i].Seq {
			t.Errorf("round not ordered by seq: %+v", round)
		}
	}

	missing, err := store.ListByAgent(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListByAgent for unknown agent: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown agent, got %+v", missing)
	}
}
