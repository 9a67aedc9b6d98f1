// Copyright 2026 © The Orchestra Authors
// SPDX-License-Identifier: Apache-2.0

package reward

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// FileScoreBoard persists scores as a single JSON file, readable by hand.
// Existing scores are loaded on open so tallies accumulate across runs.
type FileScoreBoard struct {
	mu      sync.Mutex
	path    string
	records map[string]ScoreRecord
}

// NewFileScoreBoard opens (or creates) a JSON score board at the given path.
func NewFileScoreBoard(path string) (*FileScoreBoard, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	b := &FileScoreBoard{path: path, records: make(map[string]ScoreRecord)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &b.records); err != nil {
		// A corrupt rewards file resets the tally rather than blocking the run.
		b.records = make(map[string]ScoreRecord)
	}
	return b, nil
}

// Get returns the agent's record if present.
func (b *FileScoreBoard) Get(_ context.Context, agent string) (ScoreRecord, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[agent]
	return rec, ok, nil
}

// Put stores the agent's record and rewrites the file.
func (b *FileScoreBoard) Put(_ context.Context, record ScoreRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[record.Agent] = record
	return b.persist()
}

// All returns every record sorted by agent name.
func (b *FileScoreBoard) All(_ context.Context) ([]ScoreRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ScoreRecord, 0, len(b.records))
	for _, rec := range b.records {
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (b *FileScoreBoard) persist() error {
	data, err := json.MarshalIndent(b.records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0644)
}
