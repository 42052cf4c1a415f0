package study

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS study_progress (
	seq                 INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id             TEXT    NOT NULL,
	topic_id            TEXT    NOT NULL,
	questions_attempted INTEGER NOT NULL DEFAULT 0,
	questions_correct   INTEGER NOT NULL DEFAULT 0,
	last_studied        TEXT    NOT NULL,
	UNIQUE (user_id, topic_id)
);

CREATE TABLE IF NOT EXISTS study_sessions (
	id                  TEXT    PRIMARY KEY,
	user_id             TEXT    NOT NULL,
	topic_id            TEXT    NOT NULL,
	start_time          TEXT    NOT NULL,
	end_time            TEXT,
	questions_attempted INTEGER NOT NULL DEFAULT 0,
	questions_correct   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS study_sessions_user_idx ON study_sessions (user_id, start_time);
`

// SQLiteStore is a file-backed ProgressStore for single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create study schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) AddProgress(ctx context.Context, userID, topicID string, attempted, correct int, at time.Time) (Progress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return sqliteAddProgress(ctx, s.db, userID, topicID, attempted, correct, at)
}

func sqliteAddProgress(ctx context.Context, q sqlQuerier, userID, topicID string, attempted, correct int, at time.Time) (Progress, error) {
	p := Progress{UserID: userID, TopicID: topicID}
	var last string
	err := q.QueryRowContext(ctx,
		`INSERT INTO study_progress (user_id, topic_id, questions_attempted, questions_correct, last_studied)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, topic_id) DO UPDATE
		 SET questions_attempted = questions_attempted + excluded.questions_attempted,
		     questions_correct   = questions_correct + excluded.questions_correct,
		     last_studied        = excluded.last_studied
		 RETURNING questions_attempted, questions_correct, last_studied`,
		userID, topicID, attempted, correct, formatTime(at),
	).Scan(&p.QuestionsAttempted, &p.QuestionsCorrect, &last)
	if err != nil {
		return Progress{}, fmt.Errorf("upsert progress: %w", err)
	}
	if p.LastStudied, err = parseTime(last); err != nil {
		return Progress{}, err
	}
	return p, nil
}

func (s *SQLiteStore) ListProgress(ctx context.Context, userID string) ([]Progress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, topic_id, questions_attempted, questions_correct, last_studied
		 FROM study_progress
		 WHERE user_id = ?
		 ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	out := []Progress{}
	for rows.Next() {
		var p Progress
		var last string
		if err := rows.Scan(&p.UserID, &p.TopicID, &p.QuestionsAttempted, &p.QuestionsCorrect, &last); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		if p.LastStudied, err = parseTime(last); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, sess Session) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return sqliteSaveSession(ctx, s.db, sess)
}

func sqliteSaveSession(ctx context.Context, q sqlQuerier, sess Session) error {
	var end sql.NullString
	if sess.EndTime != nil {
		end = sql.NullString{String: formatTime(*sess.EndTime), Valid: true}
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO study_sessions (id, user_id, topic_id, start_time, end_time, questions_attempted, questions_correct)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE
		 SET end_time = excluded.end_time,
		     questions_attempted = excluded.questions_attempted,
		     questions_correct = excluded.questions_correct`,
		sess.ID, sess.UserID, sess.TopicID, formatTime(sess.StartTime), end,
		sess.QuestionsAttempted, sess.QuestionsCorrect,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// RecordSession saves an ended session and folds its counts into the ledger in one
// transaction.
func (s *SQLiteStore) RecordSession(ctx context.Context, sess Session) (Progress, error) {
	if sess.EndTime == nil {
		return Progress{}, fmt.Errorf("session %s has not ended", sess.ID)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Progress{}, fmt.Errorf("begin record session: %w", err)
	}
	defer tx.Rollback()

	if err := sqliteSaveSession(ctx, tx, sess); err != nil {
		return Progress{}, fmt.Errorf("record session %s: %w", sess.ID, err)
	}
	p, err := sqliteAddProgress(ctx, tx, sess.UserID, sess.TopicID, sess.QuestionsAttempted, sess.QuestionsCorrect, *sess.EndTime)
	if err != nil {
		return Progress{}, fmt.Errorf("record session %s: %w", sess.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return Progress{}, fmt.Errorf("commit record session %s: %w", sess.ID, err)
	}
	return p, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, topic_id, start_time, end_time, questions_attempted, questions_correct
		 FROM study_sessions
		 WHERE user_id = ?
		 ORDER BY start_time ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		var sess Session
		var start string
		var end sql.NullString
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.TopicID, &start, &end,
			&sess.QuestionsAttempted, &sess.QuestionsCorrect); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.StartTime, err = parseTime(start); err != nil {
			return nil, err
		}
		if end.Valid {
			t, err := parseTime(end.String)
			if err != nil {
				return nil, err
			}
			sess.EndTime = &t
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
