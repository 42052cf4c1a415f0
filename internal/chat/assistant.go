package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/reviserx/internal/catalog"
)

// DefaultReplyDelay is the simulated latency before the assistant answers.
const DefaultReplyDelay = 500 * time.Millisecond

// AssistantConfig holds the dependencies for an Assistant.
type AssistantConfig struct {
	Catalog *catalog.Catalog
	// Delay before each reply; zero replies immediately, negative uses DefaultReplyDelay.
	Delay time.Duration
	NewID func() string
	Now   func() time.Time
	// Notify is called after every append, user and assistant messages alike.
	Notify func(Message)
}

// Assistant answers chat messages from the question bank after a simulated delay.
type Assistant struct {
	questions []catalog.Question
	topicName TopicNamer
	delay     time.Duration
	newID     func() string
	now       func() time.Time
	notify    func(Message)

	history *History
	wg      sync.WaitGroup
}

// NewAssistant creates an assistant over the catalog's question bank.
func NewAssistant(cfg AssistantConfig) *Assistant {
	a := &Assistant{
		delay:   cfg.Delay,
		newID:   cfg.NewID,
		now:     cfg.Now,
		notify:  cfg.Notify,
		history: &History{},
	}
	if cfg.Catalog != nil {
		a.questions = cfg.Catalog.Questions()
		a.topicName = cfg.Catalog.TopicName
	}
	if a.delay < 0 {
		a.delay = DefaultReplyDelay
	}
	if a.newID == nil {
		a.newID = uuid.NewString
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Send appends the user's message and schedules exactly one assistant reply.
// It returns immediately; blank content is ignored and reports false.
func (a *Assistant) Send(content string) (Message, bool) {
	if strings.TrimSpace(content) == "" {
		return Message{}, false
	}

	msg := a.append(content, RoleUser)

	a.wg.Add(1)
	go a.reply(content)

	return msg, true
}

func (a *Assistant) reply(content string) {
	defer a.wg.Done()
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	text := Respond(content, a.questions, a.topicName)
	m := a.append(text, RoleAssistant)
	slog.Debug("chat reply appended", "message_id", m.ID, "matched", text != FallbackReply)
}

func (a *Assistant) append(content string, role Role) Message {
	m := Message{
		ID:        a.newID(),
		Content:   content,
		Role:      role,
		Timestamp: a.now(),
	}
	a.history.Append(m)
	if a.notify != nil {
		a.notify(m)
	}
	return m
}

// History returns the transcript so far.
func (a *Assistant) History() []Message {
	return a.history.Messages()
}

// Drain waits until every scheduled reply has been appended or ctx is done.
func (a *Assistant) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
