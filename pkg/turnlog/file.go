// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

package turnlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jllopis/orchestra/pkg/core"
	"github.com/jllopis/orchestra/pkg/errors"
)

// FileStore implements TurnStore with one JSON log file per agent.
// Suitable for simple persistence and human inspection without a database.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-based turn store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errors.New(errors.CodePersistence, "create turn log directory", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (f *FileStore) agentFile(agent string) string {
	// Sanitize the agent name to prevent path traversal.
	safe := filepath.Base(agent)
	return filepath.Join(f.baseDir, safe+".json")
}

// Append adds a turn to the agent's log file.
func (f *FileStore) Append(_ context.Context, turn core.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	turns, err := f.load(turn.Agent)
	if err != nil && !os.IsNotExist(err) {
		return errors.New(errors.CodePersistence, "load turn log", err)
	}
	turns = append(turns, turn)
	return f.save(turn.Agent, turns)
}

// ListByAgent returns the agent's turns in insertion order.
func (f *FileStore) ListByAgent(_ context.Context, agent string) ([]core.Turn, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	turns, err := f.load(agent)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(errors.CodePersistence, "load turn log", err)
	}
	return turns, nil
}

// ListByRound scans every agent log for the round's turns, ordered by Seq.
func (f *FileStore) ListByRound(ctx context.Context, round int) ([]core.Turn, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, errors.New(errors.CodePersistence, "scan turn log directory", err)
	}

	var out []core.Turn
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		agent := entry.Name()[:len(entry.Name())-5]
		turns, err := f.load(agent)
		if err != nil {
			return nil, errors.New(errors.CodePersistence, "load turn log", err)
		}
		for _, t := range turns {
			if t.Round == round {
				out = append(out, t)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (f *FileStore) load(agent string) ([]core.Turn, error) {
	data, err := os.ReadFile(f.agentFile(agent))
	if err != nil {
		return nil, err
	}
	var turns []core.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("failed to parse turn log file: %w", err)
	}
	return turns, nil
}

func (f *FileStore) save(agent string, turns []core.Turn) error {
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return errors.New(errors.CodePersistence, "marshal turn log", err)
	}
	if err := os.WriteFile(f.agentFile(agent), data, 0644); err != nil {
		return errors.New(errors.CodePersistence, "write turn log", err)
	}
	return nil
}

