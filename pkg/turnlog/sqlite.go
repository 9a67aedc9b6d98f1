package turnlog

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jllopis/orchestra/pkg/core"
	"github.com/jllopis/orchestra/pkg/errors"
)

// SQLiteStore persists turns in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite turn store at the given path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.CodePersistence, "open turn store", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore creates a SQLite-backed turn store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, stderrors.New("db is nil")
	}
	if err := ensureTurnSchema(db); err != nil {
		return nil, errors.New(errors.CodePersistence, "ensure turn schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append stores a single turn. Failure is fatal for the run.
func (s *SQLiteStore) Append(ctx context.Context, turn core.Turn) error {
	meta, err := encodeMetadata(turn.Metadata)
	if err != nil {
		return errors.New(errors.CodePersistence, "encode turn metadata", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO turns (
			id, agent, round, seq, phase, status, content, error_text,
			tokens, cost, duration_ns, metadata_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		turn.ID,
		turn.Agent,
		turn.Round,
		turn.Seq,
		string(turn.Phase),
		string(turn.Status),
		turn.Content,
		turn.Error,
		turn.Tokens,
		turn.Cost,
		int64(turn.Duration),
		string(meta),
		normalizeTime(turn.CreatedAt),
	)
	if err != nil {
		return errors.New(errors.CodePersistence, "append turn", err).
			WithAttribute("agent", turn.Agent)
	}
	return nil
}

// ListByAgent returns the agent's turns ordered by insertion.
func (s *SQLiteStore) ListByAgent(ctx context.Context, agent string) ([]core.Turn, error) {
	return s.list(ctx, "agent = ?", agent)
}

// ListByRound returns the round's turns ordered by insertion.
func (s *SQLiteStore) ListByRound(ctx context.Context, round int) ([]core.Turn, error) {
	return s.list(ctx, "round = ?", round)
}

func (s *SQLiteStore) list(ctx context.Context, clause string, arg any) ([]core.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent, round, seq, phase, status, content, error_text,
		       tokens, cost, duration_ns, metadata_json, created_at
		FROM turns
		WHERE `+clause+`
		ORDER BY rowid ASC
	`, arg)
	if err != nil {
		return nil, errors.New(errors.CodePersistence, "list turns", err)
	}
	defer rows.Close()

	var turns []core.Turn
	for rows.Next() {
		var (
			turn       core.Turn
			phase      string
			status     string
			durationNS int64
			metaJSON   string
			created    sql.NullTime
		)
		if err := rows.Scan(
			&turn.ID,
			&turn.Agent,
			&turn.Round,
			&turn.Seq,
			&phase,
			&status,
			&turn.Content,
			&turn.Error,
			&turn.Tokens,
			&turn.Cost,
			&durationNS,
			&metaJSON,
			&created,
		); err != nil {
			return nil, errors.New(errors.CodePersistence, "scan turn", err)
		}
		turn.Phase = core.TurnPhase(phase)
		turn.Status = core.TurnStatus(status)
		turn.Duration = time.Duration(durationNS)
		if meta, err := decodeMetadata([]byte(metaJSON)); err == nil {
			turn.Metadata = meta
		}
		if created.Valid {
			turn.CreatedAt = created.Time
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.CodePersistence, "iterate turns", err)
	}
	return turns, nil
}

func ensureTurnSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			agent TEXT NOT NULL,
			round INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			phase TEXT NOT NULL,
			status TEXT NOT NULL,
			content TEXT,
			error_text TEXT,
			tokens INTEGER NOT NULL DEFAULT 0,
			cost REAL NOT NULL DEFAULT 0,
			duration_ns INTEGER NOT NULL DEFAULT 0,
			metadata_json TEXT,
			created_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_turns_agent ON turns(agent);
		CREATE INDEX IF NOT EXISTS idx_turns_round ON turns(round);
	`)
	return err
}
