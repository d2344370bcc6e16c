// Package history persists one row per completed utterance in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Record is one completed utterance.
type Record struct {
	ID         int64
	SessionID  uint64
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Raw        string
	Output     string
	Handled    bool
	Confidence float64
	TypedChars int
}

// Store is a SQLite-backed utterance log. keep bounds the row count;
// zero keeps everything.
type Store struct {
	db   *sql.DB
	log  zerolog.Logger
	keep int
}

func Open(ctx context.Context, path string, keep int, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging history db: %w", err)
	}

	s := &Store{db: db, log: logger, keep: keep}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Prune(ctx); err != nil {
		logger.Warn().Err(err).Msg("history prune on open failed")
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS utterances (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL,
    mode TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    raw TEXT NOT NULL,
    output TEXT NOT NULL,
    handled INTEGER NOT NULL,
    confidence REAL NOT NULL,
    typed_chars INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_utterances_finished ON utterances(finished_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// Append writes one utterance and applies the retention bound.
func (s *Store) Append(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO utterances(session_id, mode, started_at, finished_at, raw, output, handled, confidence, typed_chars)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Mode,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Raw, r.Output, r.Handled, r.Confidence, r.TypedChars)
	if err != nil {
		return fmt.Errorf("appending utterance: %w", err)
	}
	return s.Prune(ctx)
}

// Recent returns up to n utterances, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, mode, started_at, finished_at, raw, output, handled, confidence, typed_chars
		 FROM utterances ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var started, finished string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Mode, &started, &finished,
			&r.Raw, &r.Output, &r.Handled, &r.Confidence, &r.TypedChars); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, started); err == nil {
			r.StartedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, finished); err == nil {
			r.FinishedAt = ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune drops the oldest rows beyond the keep bound.
func (s *Store) Prune(ctx context.Context) error {
	if s.keep <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM utterances WHERE id IN (
			SELECT id FROM utterances ORDER BY id DESC LIMIT -1 OFFSET ?
		)`, s.keep)
	return err
}
