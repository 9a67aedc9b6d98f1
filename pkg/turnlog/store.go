// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

// Package turnlog persists the append-only, per-agent turn history.
//
// Append is the durability boundary: once it returns, the turn is committed
// and visible to subsequent summary composition. A failed append is fatal for
// the run because later agents' context depends on a complete history.
package turnlog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jllopis/orchestra/pkg/core"
)

// TurnStore persists agent turns in insertion order.
type TurnStore interface {
	Append(ctx context.Context, turn core.Turn) error
	ListByAgent(ctx context.Context, agent string) ([]core.Turn, error)
	ListByRound(ctx context.Context, round int) ([]core.Turn, error)
}

// MemoryStore keeps turns in memory. Used in tests and dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	turns []core.Turn
}

// NewMemoryStore returns an in-memory turn store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a turn.
func (s *MemoryStore) Append(_ context.Context, turn core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	return nil
}

// ListByAgent returns the agent's turns in insertion order.
func (s *MemoryStore) ListByAgent(_ context.Context, agent string) ([]core.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Turn
	for _, t := range s.turns {
		if t.Agent == agent {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListByRound returns the round's turns in insertion order.
func (s *MemoryStore) ListByRound(_ context.Context, round int) ([]core.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Turn
	for _, t := range s.turns {
		if t.Round == round {
			out = append(out, t)
		}
	}
	return out, nil
}

// encodeMetadata marshals turn metadata into JSON.
func encodeMetadata(meta map[string]string) ([]byte, error) {
	if meta == nil {
		return []byte("null"), nil
	}
	return json.Marshal(meta)
}

// decodeMetadata parses JSON metadata.
func decodeMetadata(raw []byte) (map[string]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeTime ensures timestamps are stored in UTC.
func normalizeTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC()
}
