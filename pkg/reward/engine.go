package reward

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/orchestra/pkg/core"
	"github.com/jllopis/orchestra/pkg/errors"
)

// ScoreRecord is one agent's persisted running score.
type ScoreRecord struct {
	Agent     string    `json:"agent"`
	Score     float64   `json:"score"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"last_updated"`
}

// ScoreBoard persists per-agent running scores across rounds (and runs).
type ScoreBoard interface {
	Get(ctx context.Context, agent string) (ScoreRecord, bool, error)
	Put(ctx context.Context, record ScoreRecord) error
	All(ctx context.Context) ([]ScoreRecord, error)
}

// Engine applies a scoring policy after every turn and persists the tally.
type Engine struct {
	mu     sync.Mutex
	board  ScoreBoard
	policy ScoringPolicy
}

// NewEngine creates an engine with the given board and policy. A nil policy
// defaults to HeuristicPolicy.
func NewEngine(board ScoreBoard, policy ScoringPolicy) *Engine {
	if policy == nil {
		policy = HeuristicPolicy{}
	}
	return &Engine{board: board, policy: policy}
}

// Record scores a completed turn against the agent's prior score and persists
// the result. A write failure is a persistence error, fatal for the run.
func (e *Engine) Record(ctx context.Context, turn core.Turn) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prior, _, err := e.board.Get(ctx, turn.Agent)
	if err != nil {
		return 0, errors.New(errors.CodePersistence, "read prior score", err).
			WithAttribute("agent", turn.Agent)
	}
	next := e.policy.Score(turn, prior.Score)
	record := ScoreRecord{
		Agent:     turn.Agent,
		Score:     next,
		Turns:     prior.Turns + 1,
		UpdatedAt: time.Now().UTC(),
	}
	if err := e.board.Put(ctx, record); err != nil {
		return 0, errors.New(errors.CodePersistence, "persist score", err).
			WithAttribute("agent", turn.Agent)
	}
	return next, nil
}

// Scores returns the current score table.
func (e *Engine) Scores(ctx context.Context) ([]ScoreRecord, error) {
	return e.board.All(ctx)
}

// MemoryScoreBoard keeps scores in memory.
type MemoryScoreBoard struct {
	mu      sync.Mutex
	records map[string]ScoreRecord
}

// NewMemoryScoreBoard returns an in-memory score board.
func NewMemoryScoreBoard() *MemoryScoreBoard {
	return &MemoryScoreBoard{records: make(map[string]ScoreRecord)}
}

// Get returns the agent's record if present.
func (b *MemoryScoreBoard) Get(_ context.Context, agent string) (ScoreRecord, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[agent]
	return rec, ok, nil
}

// Put stores the agent's record.
func (b *MemoryScoreBoard) Put(_ context.Context, record ScoreRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[record.Agent] = record
	return nil
}

// All returns every record sorted by agent name.
func (b *MemoryScoreBoard) All(_ context.Context) ([]ScoreRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ScoreRecord, 0, len(b.records))
	for _, rec := range b.records {
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}
