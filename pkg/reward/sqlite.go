package reward

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sort"

	_ "modernc.org/sqlite"
)

// SQLiteScoreBoard persists scores in SQLite, keyed by agent identity.
type SQLiteScoreBoard struct {
	db *sql.DB
}

// OpenScoreBoard opens (or creates) a SQLite score board at the given path.
func OpenScoreBoard(path string) (*SQLiteScoreBoard, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	board, err := NewSQLiteScoreBoard(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return board, nil
}

// NewSQLiteScoreBoard creates a SQLite-backed score board and ensures schema.
func NewSQLiteScoreBoard(db *sql.DB) (*SQLiteScoreBoard, error) {
	if db == nil {
		return nil, stderrors.New("db is nil")
	}
	if err := ensureScoreSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteScoreBoard{db: db}, nil
}

// Close closes the underlying database.
func (b *SQLiteScoreBoard) Close() error {
	return b.db.Close()
}

// Get returns the agent's record if present.
func (b *SQLiteScoreBoard) Get(ctx context.Context, agent string) (ScoreRecord, bool, error) {
	var rec ScoreRecord
	row := b.db.QueryRowContext(ctx, `
		SELECT agent, score, turns, updated_at FROM agent_scores WHERE agent = ?
	`, agent)
	var updated sql.NullTime
	err := row.Scan(&rec.Agent, &rec.Score, &rec.Turns, &updated)
	if err == sql.ErrNoRows {
		return ScoreRecord{}, false, nil
	}
	if err != nil {
		return ScoreRecord{}, false, err
	}
	if updated.Valid {
		rec.UpdatedAt = updated.Time
	}
	return rec, true, nil
}

// Put upserts the agent's record.
func (b *SQLiteScoreBoard) Put(ctx context.Context, record ScoreRecord) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO agent_scores (agent, score, turns, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(agent) DO UPDATE SET
			score = excluded.score,
			turns = excluded.turns,
			updated_at = excluded.updated_at
	`, record.Agent, record.Score, record.Turns, record.UpdatedAt.UTC())
	return err
}

// All returns every record sorted by agent name.
func (b *SQLiteScoreBoard) All(ctx context.Context) ([]ScoreRecord, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT agent, score, turns, updated_at FROM agent_scores ORDER BY agent ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoreRecord
	for rows.Next() {
		var rec ScoreRecord
		var updated sql.NullTime
		if err := rows.Scan(&rec.Agent, &rec.Score, &rec.Turns, &updated); err != nil {
			return nil, err
		}
		if updated.Valid {
			rec.UpdatedAt = updated.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func ensureScoreSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_scores (
			agent TEXT PRIMARY KEY,
			score REAL NOT NULL DEFAULT 0,
			turns INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP
		);
	`)
	return err
}

func sortRecords(records []ScoreRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].Agent < records[j].Agent })
}
