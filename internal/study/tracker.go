package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultUserID attributes sessions when no user is configured.
const DefaultUserID = "user1"

// RestartPolicy decides what happens to an open session when another one starts.
type RestartPolicy int

const (
	// RestartReplace drops the open session without recording progress for it.
	RestartReplace RestartPolicy = iota
	// RestartEndPrevious ends the open session with zero counts before starting the new one.
	RestartEndPrevious
)

// ParseRestartPolicy parses "replace" or "end_previous". Empty means RestartReplace.
func ParseRestartPolicy(s string) (RestartPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return RestartReplace, nil
	case "end_previous", "end-previous":
		return RestartEndPrevious, nil
	}
	return RestartReplace, fmt.Errorf("unknown restart policy %q", s)
}

func (p RestartPolicy) String() string {
	if p == RestartEndPrevious {
		return "end_previous"
	}
	return "replace"
}

// TrackerConfig holds the dependencies for a Tracker.
type TrackerConfig struct {
	Store       ProgressStore
	EventLogger EventLogger
	UserID      string
	Policy      RestartPolicy
	// TopicExists gates StartSession; nil accepts any non-empty id.
	TopicExists func(topicID string) bool
	NewID       func() string
	Now         func() time.Time
}

// Tracker is the Idle/InSession state machine for one running instance.
type Tracker struct {
	store       ProgressStore
	events      EventLogger
	userID      string
	policy      RestartPolicy
	topicExists func(string) bool
	newID       func() string
	now         func() time.Time

	mu      sync.Mutex
	current *Session
}

// NewTracker creates a tracker in the Idle state.
func NewTracker(cfg TrackerConfig) *Tracker {
	t := &Tracker{
		store:       cfg.Store,
		events:      cfg.EventLogger,
		userID:      cfg.UserID,
		policy:      cfg.Policy,
		topicExists: cfg.TopicExists,
		newID:       cfg.NewID,
		now:         cfg.Now,
	}
	if t.store == nil {
		t.store = NewMemoryStore()
	}
	if t.events == nil {
		t.events = NopEventLogger{}
	}
	if t.userID == "" {
		t.userID = DefaultUserID
	}
	if t.newID == nil {
		t.newID = uuid.NewString
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// UserID returns the user sessions are attributed to.
func (t *Tracker) UserID() string {
	return t.userID
}

// Current returns the open session, if any.
func (t *Tracker) Current() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Session{}, false
	}
	return *t.current, true
}

// StartSession opens a session on topicID. Unknown topics are ignored and report false.
// An already open session is handled according to the restart policy.
func (t *Tracker) StartSession(ctx context.Context, topicID string) (Session, bool) {
	if topicID == "" || (t.topicExists != nil && !t.topicExists(topicID)) {
		slog.Debug("start session ignored, unknown topic", "topic_id", topicID)
		return Session{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev := t.current; prev != nil {
		switch t.policy {
		case RestartEndPrevious:
			if _, err := t.endLocked(ctx, 0, 0); err != nil {
				slog.Error("failed to record previous session", "session_id", prev.ID, "error", err)
			}
		default:
			slog.Warn("open session discarded",
				"session_id", prev.ID,
				"topic_id", prev.TopicID,
				"user_id", prev.UserID,
			)
			t.logEvent(EventSessionDiscarded, *prev, nil)
		}
	}

	sess := Session{
		ID:        t.newID(),
		UserID:    t.userID,
		TopicID:   topicID,
		StartTime: t.now(),
	}
	t.current = &sess
	t.logEvent(EventSessionStarted, sess, nil)
	slog.Info("study session started", "session_id", sess.ID, "topic_id", topicID, "user_id", t.userID)
	return sess, true
}

// EndSession closes the open session with the given counters and folds them into the
// progress ledger. With no open session it does nothing and reports false. The
// tracker is Idle afterwards even when persisting fails.
func (t *Tracker) EndSession(ctx context.Context, attempted, correct int) (Progress, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return Progress{}, false, nil
	}
	p, err := t.endLocked(ctx, max(attempted, 0), max(correct, 0))
	return p, true, err
}

func (t *Tracker) endLocked(ctx context.Context, attempted, correct int) (Progress, error) {
	sess := *t.current
	t.current = nil

	end := t.now()
	sess.EndTime = &end
	sess.QuestionsAttempted = attempted
	sess.QuestionsCorrect = correct

	t.logEvent(EventSessionEnded, sess, map[string]any{
		"questions_attempted": attempted,
		"questions_correct":   correct,
		"duration_seconds":    sess.Duration().Seconds(),
	})
	slog.Info("study session ended",
		"session_id", sess.ID,
		"topic_id", sess.TopicID,
		"attempted", attempted,
		"correct", correct,
	)

	return t.record(ctx, sess)
}

// record persists an ended session. Every ended session gets exactly one progress
// upsert attempt, even when saving the session itself fails.
func (t *Tracker) record(ctx context.Context, sess Session) (Progress, error) {
	if rec, ok := t.store.(SessionRecorder); ok {
		return rec.RecordSession(ctx, sess)
	}

	var errs []error
	if err := t.store.SaveSession(ctx, sess); err != nil {
		errs = append(errs, fmt.Errorf("recording session %s: %w", sess.ID, err))
	}
	p, err := t.store.AddProgress(ctx, sess.UserID, sess.TopicID, sess.QuestionsAttempted, sess.QuestionsCorrect, *sess.EndTime)
	if err != nil {
		errs = append(errs, fmt.Errorf("updating progress for %s: %w", sess.TopicID, err))
		p = Progress{}
	}
	return p, errors.Join(errs...)
}

// Progress returns the user's ledger.
func (t *Tracker) Progress(ctx context.Context) ([]Progress, error) {
	return t.store.ListProgress(ctx, t.userID)
}

// Sessions returns the user's ended sessions.
func (t *Tracker) Sessions(ctx context.Context) ([]Session, error) {
	return t.store.ListSessions(ctx, t.userID)
}

func (t *Tracker) logEvent(eventType string, sess Session, data map[string]any) {
	err := t.events.LogEvent(Event{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		TopicID:   sess.TopicID,
		EventType: eventType,
		Data:      data,
		CreatedAt: t.now(),
	})
	if err != nil {
		slog.Warn("failed to log study event", "type", eventType, "session_id", sess.ID, "error", err)
	}
}
