package study

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

const postgresSchema = `
CREATE TABLE IF NOT EXISTS study_progress (
	user_id             TEXT        NOT NULL,
	topic_id            TEXT        NOT NULL,
	questions_attempted INTEGER     NOT NULL DEFAULT 0,
	questions_correct   INTEGER     NOT NULL DEFAULT 0,
	last_studied        TIMESTAMPTZ NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, topic_id)
);

CREATE TABLE IF NOT EXISTS study_sessions (
	id                  TEXT        PRIMARY KEY,
	user_id             TEXT        NOT NULL,
	topic_id            TEXT        NOT NULL,
	start_time          TIMESTAMPTZ NOT NULL,
	end_time            TIMESTAMPTZ,
	questions_attempted INTEGER     NOT NULL DEFAULT 0,
	questions_correct   INTEGER     NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS study_sessions_user_idx ON study_sessions (user_id, start_time);

CREATE TABLE IF NOT EXISTS study_events (
	id          BIGSERIAL   PRIMARY KEY,
	session_id  TEXT        NOT NULL,
	user_id     TEXT        NOT NULL,
	topic_id    TEXT        NOT NULL,
	event_type  TEXT        NOT NULL,
	data        JSONB       NOT NULL DEFAULT '{}'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL
);
`

// PostgresStore is a PostgreSQL-backed ProgressStore implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the study tables if needed and returns the store.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create study schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) AddProgress(ctx context.Context, userID, topicID string, attempted, correct int, at time.Time) (Progress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return pgAddProgress(ctx, s.pool, userID, topicID, attempted, correct, at)
}

func pgAddProgress(ctx context.Context, q pgQuerier, userID, topicID string, attempted, correct int, at time.Time) (Progress, error) {
	p := Progress{UserID: userID, TopicID: topicID}
	err := q.QueryRow(ctx,
		`INSERT INTO study_progress (user_id, topic_id, questions_attempted, questions_correct, last_studied)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, topic_id) DO UPDATE
		 SET questions_attempted = study_progress.questions_attempted + EXCLUDED.questions_attempted,
		     questions_correct   = study_progress.questions_correct + EXCLUDED.questions_correct,
		     last_studied        = EXCLUDED.last_studied
		 RETURNING questions_attempted, questions_correct, last_studied`,
		userID, topicID, attempted, correct, at,
	).Scan(&p.QuestionsAttempted, &p.QuestionsCorrect, &p.LastStudied)
	if err != nil {
		return Progress{}, fmt.Errorf("upsert progress: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProgress(ctx context.Context, userID string) ([]Progress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, topic_id, questions_attempted, questions_correct, last_studied
		 FROM study_progress
		 WHERE user_id = $1
		 ORDER BY created_at ASC, topic_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Progress, error) {
		var p Progress
		err := row.Scan(&p.UserID, &p.TopicID, &p.QuestionsAttempted, &p.QuestionsCorrect, &p.LastStudied)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan progress: %w", err)
	}
	if out == nil {
		out = []Progress{}
	}
	return out, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, sess Session) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return pgSaveSession(ctx, s.pool, sess)
}

func pgSaveSession(ctx context.Context, q pgQuerier, sess Session) error {
	_, err := q.Exec(ctx,
		`INSERT INTO study_sessions (id, user_id, topic_id, start_time, end_time, questions_attempted, questions_correct)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET end_time = EXCLUDED.end_time,
		     questions_attempted = EXCLUDED.questions_attempted,
		     questions_correct = EXCLUDED.questions_correct`,
		sess.ID, sess.UserID, sess.TopicID, sess.StartTime, sess.EndTime,
		sess.QuestionsAttempted, sess.QuestionsCorrect,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// RecordSession saves an ended session and folds its counts into the ledger in one
// transaction.
func (s *PostgresStore) RecordSession(ctx context.Context, sess Session) (Progress, error) {
	if sess.EndTime == nil {
		return Progress{}, fmt.Errorf("session %s has not ended", sess.ID)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var p Progress
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := pgSaveSession(ctx, tx, sess); err != nil {
			return err
		}
		var err error
		p, err = pgAddProgress(ctx, tx, sess.UserID, sess.TopicID, sess.QuestionsAttempted, sess.QuestionsCorrect, *sess.EndTime)
		return err
	})
	if err != nil {
		return Progress{}, fmt.Errorf("record session %s: %w", sess.ID, err)
	}
	return p, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, topic_id, start_time, end_time, questions_attempted, questions_correct
		 FROM study_sessions
		 WHERE user_id = $1
		 ORDER BY start_time ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Session, error) {
		var sess Session
		err := row.Scan(&sess.ID, &sess.UserID, &sess.TopicID, &sess.StartTime, &sess.EndTime,
			&sess.QuestionsAttempted, &sess.QuestionsCorrect)
		return sess, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	if out == nil {
		out = []Session{}
	}
	return out, nil
}
