package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists checkpoints to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) a SQLite checkpoint database.
// The path should be a file path (e.g., "./checkpoints.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			session_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (session_id, sequence)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS summaries (
			session_id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			through_sequence INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create summaries table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, c *Checkpoint) (Ack, error) {
	if err := validateAppend(sessionID, c); err != nil {
		return Ack{}, err
	}

	cp := normalize(sessionID, c)
	data, err := cp.Marshal()
	if err != nil {
		return Ack{}, fmt.Errorf("marshal checkpoint: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Ack{}, ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Ack{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ack := Ack{Sequence: cp.Sequence, Duplicate: true}

	through, err := throughSequence(ctx, tx, sessionID)
	if err != nil {
		return Ack{}, err
	}
	if cp.Sequence <= through {
		return ack, nil
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO checkpoints (session_id, sequence, timestamp, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, sequence) DO NOTHING
	`, sessionID, cp.Sequence, cp.Timestamp.UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return Ack{}, fmt.Errorf("append checkpoint: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Ack{}, fmt.Errorf("append checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Ack{}, fmt.Errorf("commit append: %w", err)
	}

	ack.Duplicate = n == 0
	return ack, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM checkpoints
		WHERE session_id = ?
		ORDER BY sequence
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()

	out := []*Checkpoint{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		c, err := Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("decode checkpoint: %w", err)
		}
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}

	return out, nil
}

// SummarizeAndTruncate implements Store.
func (s *SQLiteStore) SummarizeAndTruncate(ctx context.Context, sessionID, summary string, keepLastN int) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	if keepLastN < 0 {
		return ErrInvalidKeep
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin summarize: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	through, err := throughSequence(ctx, tx, sessionID)
	if err != nil {
		return err
	}

	// The newest checkpoint that is not kept, if any.
	var cutoff int64
	err = tx.QueryRowContext(ctx, `
		SELECT sequence FROM checkpoints
		WHERE session_id = ?
		ORDER BY sequence DESC
		LIMIT 1 OFFSET ?
	`, sessionID, keepLastN).Scan(&cutoff)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("find truncation point: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM checkpoints
			WHERE session_id = ? AND sequence <= ?
		`, sessionID, cutoff); err != nil {
			return fmt.Errorf("truncate checkpoints: %w", err)
		}
		if cutoff > through {
			through = cutoff
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO summaries (session_id, text, through_sequence, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			text = excluded.text,
			through_sequence = excluded.through_sequence,
			updated_at = excluded.updated_at
	`, sessionID, summary, through, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit summarize: %w", err)
	}
	return nil
}

// Summary implements Store.
func (s *SQLiteStore) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	sum := Summary{SessionID: sessionID}
	var updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT text, through_sequence, updated_at FROM summaries
		WHERE session_id = ?
	`, sessionID).Scan(&sum.Text, &sum.ThroughSequence, &updated)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}
	sum.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &sum, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

func throughSequence(ctx context.Context, tx *sql.Tx, sessionID string) (int64, error) {
	var through int64
	err := tx.QueryRowContext(ctx, `
		SELECT through_sequence FROM summaries WHERE session_id = ?
	`, sessionID).Scan(&through)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load summary high-water mark: %w", err)
	}
	return through, nil
}

var _ Store = (*SQLiteStore)(nil)
