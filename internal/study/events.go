package study

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
)

// Session lifecycle event types.
const (
	EventSessionStarted   = "session_started"
	EventSessionEnded     = "session_ended"
	EventSessionDiscarded = "session_discarded"
)

// Event is an analytics record of a session lifecycle change.
type Event struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	TopicID   string         `json:"topic_id"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// EventLogger defines event logging behavior.
type EventLogger interface {
	LogEvent(event Event) error
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(Event) error {
	return nil
}

// MemoryEventLogger stores events in memory for tests.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{
		events: []Event{},
	}
}

func (l *MemoryEventLogger) LogEvent(event Event) error {
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// MultiEventLogger fans an event out to several loggers.
type MultiEventLogger []EventLogger

func (m MultiEventLogger) LogEvent(event Event) error {
	var firstErr error
	for _, l := range m {
		if err := l.LogEvent(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PostgresEventLogger inserts events into the study_events table created by
// NewPostgresStore.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	_, err = l.pool.Exec(ctx,
		`INSERT INTO study_events (session_id, user_id, topic_id, event_type, data, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		event.SessionID,
		event.UserID,
		event.TopicID,
		event.EventType,
		string(data),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.EventType,
		"session_id", event.SessionID,
		"user_id", event.UserID,
	)
	return nil
}

// DefaultSubjectPrefix is the NATS subject prefix for session events.
const DefaultSubjectPrefix = "reviserx.study"

// NATSEventLogger publishes each event as JSON on {prefix}.{event_type}.
type NATSEventLogger struct {
	nc     *nats.Conn
	prefix string
}

// ConnectNATS dials the NATS server with reconnect settings suited to a long-lived publisher.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("reviserx"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return nc, nil
}

func NewNATSEventLogger(nc *nats.Conn, prefix string) *NATSEventLogger {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSEventLogger{nc: nc, prefix: prefix}
}

// Subject returns the subject an event type is published on.
func (l *NATSEventLogger) Subject(eventType string) string {
	return l.prefix + "." + eventType
}

func (l *NATSEventLogger) LogEvent(event Event) error {
	if l == nil || l.nc == nil {
		return fmt.Errorf("event logger connection is nil")
	}
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := l.Subject(event.EventType)
	if err := l.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}
