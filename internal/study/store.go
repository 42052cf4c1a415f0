package study

import (
	"context"
	"sync"
	"time"
)

// ProgressStore persists the progress ledger and ended sessions.
type ProgressStore interface {
	// AddProgress adds attempted and correct to the (userID, topicID) record, creating
	// it when absent, sets LastStudied to at and returns the updated record.
	AddProgress(ctx context.Context, userID, topicID string, attempted, correct int, at time.Time) (Progress, error)
	ListProgress(ctx context.Context, userID string) ([]Progress, error)
	SaveSession(ctx context.Context, s Session) error
	ListSessions(ctx context.Context, userID string) ([]Session, error)
}

// SessionRecorder is implemented by stores that can save an ended session and its
// progress upsert atomically. The tracker prefers it over two separate writes.
type SessionRecorder interface {
	RecordSession(ctx context.Context, s Session) (Progress, error)
}

type progressKey struct {
	userID  string
	topicID string
}

// MemoryStore is an in-memory implementation of ProgressStore.
type MemoryStore struct {
	mu       sync.RWMutex
	progress map[progressKey]*Progress
	order    []progressKey
	sessions []Session
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		progress: make(map[progressKey]*Progress),
	}
}

func (s *MemoryStore) AddProgress(_ context.Context, userID, topicID string, attempted, correct int, at time.Time) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{userID, topicID}
	p, ok := s.progress[key]
	if !ok {
		p = &Progress{UserID: userID, TopicID: topicID}
		s.progress[key] = p
		s.order = append(s.order, key)
	}
	p.QuestionsAttempted += attempted
	p.QuestionsCorrect += correct
	p.LastStudied = at
	return *p, nil
}

// ListProgress returns the user's records in creation order.
func (s *MemoryStore) ListProgress(_ context.Context, userID string) ([]Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Progress{}
	for _, key := range s.order {
		if key.userID == userID {
			out = append(out, *s.progress[key])
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveSession(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.EndTime != nil {
		end := *sess.EndTime
		sess.EndTime = &end
	}
	s.sessions = append(s.sessions, sess)
	return nil
}

// ListSessions returns the user's ended sessions, oldest first.
func (s *MemoryStore) ListSessions(_ context.Context, userID string) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Session{}
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out, nil
}
