// Package engine owns the live study state: the augmented catalog, the current
// selection, derived views, the chat assistant and the session tracker.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/reviserx/internal/catalog"
	"github.com/p-n-ai/reviserx/internal/chat"
	"github.com/p-n-ai/reviserx/internal/search"
	"github.com/p-n-ai/reviserx/internal/study"
)

// EngineConfig holds dependencies for the engine.
type EngineConfig struct {
	Catalog              *catalog.Catalog
	MinQuestionsPerTopic int // top-up threshold; zero uses catalog.MinQuestionsPerTopic
	Store                study.ProgressStore
	EventLogger          study.EventLogger
	UserID               string
	RestartPolicy        study.RestartPolicy
	ReplyDelay           time.Duration // negative uses chat.DefaultReplyDelay
	SearchCache          search.Cache
	NewID                func() string
	Now                  func() time.Time
	// OnMessage is called for every chat message appended to the transcript.
	OnMessage func(chat.Message)
}

// Selection is the user's current browsing context. Empty fields are unset.
type Selection struct {
	Category   string             `json:"category,omitempty"`
	Topic      *catalog.Topic     `json:"topic,omitempty"`
	Difficulty catalog.Difficulty `json:"difficulty,omitempty"`
}

// Engine is the shared state container. All commands are serialized.
type Engine struct {
	catalog   *catalog.Catalog
	version   string
	cache     search.Cache
	assistant *chat.Assistant
	tracker   *study.Tracker

	mu        sync.RWMutex
	selection Selection
	query     string
	topics    []catalog.Topic
	questions []catalog.Question
	results   search.Results
}

// NewEngine creates an engine over cfg.Catalog, topping each topic up to the
// minimum question count exactly once.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	minQuestions := cfg.MinQuestionsPerTopic
	if minQuestions == 0 {
		minQuestions = catalog.MinQuestionsPerTopic
	}

	extra := cfg.Catalog.TopUp(minQuestions)
	cat := cfg.Catalog.WithQuestions(extra)
	slog.Info("question bank topped up",
		"generated", len(extra),
		"questions", len(cat.Questions()),
		"min_per_topic", minQuestions,
	)

	cache := cfg.SearchCache
	if cache == nil {
		cache = search.NopCache{}
	}

	e := &Engine{
		catalog: cat,
		version: search.CatalogVersion(cat.Topics(), cat.Questions(), cat.Glossary()),
		cache:   cache,
	}
	e.assistant = chat.NewAssistant(chat.AssistantConfig{
		Catalog: cat,
		Delay:   cfg.ReplyDelay,
		NewID:   cfg.NewID,
		Now:     cfg.Now,
		Notify:  cfg.OnMessage,
	})
	e.tracker = study.NewTracker(study.TrackerConfig{
		Store:       cfg.Store,
		EventLogger: cfg.EventLogger,
		UserID:      cfg.UserID,
		Policy:      cfg.RestartPolicy,
		TopicExists: func(id string) bool { _, ok := cat.TopicByID(id); return ok },
		NewID:       cfg.NewID,
		Now:         cfg.Now,
	})

	e.recompute(context.Background())
	return e, nil
}

// recompute refreshes the derived views. Callers hold e.mu for writing.
func (e *Engine) recompute(ctx context.Context) {
	topicID := ""
	if e.selection.Topic != nil {
		topicID = e.selection.Topic.ID
	}
	e.topics = search.FilterTopics(e.catalog.Topics(), e.selection.Category)
	e.questions = search.FilterQuestions(e.catalog.Questions(), topicID, e.selection.Difficulty)
	e.results = e.search(ctx, e.query)
}

// search runs a stateless search through the cache.
func (e *Engine) search(ctx context.Context, query string) search.Results {
	if !search.Active(query) {
		return search.Empty()
	}
	key := search.CacheKey(e.version, query)
	if res, ok := e.cache.Get(ctx, key); ok {
		return res
	}
	res := search.Search(query, e.catalog.Topics(), e.catalog.Questions(), e.catalog.Glossary())
	e.cache.Set(ctx, key, res)
	return res
}

// Catalog returns the augmented catalog snapshot.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Categories returns the category enumeration.
func (e *Engine) Categories() []string {
	return e.catalog.Categories()
}

// AllTopics returns every topic regardless of selection.
func (e *Engine) AllTopics() []catalog.Topic {
	return e.catalog.Topics()
}

// AllQuestions returns the whole augmented question bank.
func (e *Engine) AllQuestions() []catalog.Question {
	return e.catalog.Questions()
}

// Glossary returns every glossary term.
func (e *Engine) Glossary() []catalog.GlossaryTerm {
	return e.catalog.Glossary()
}

// Topics returns the topics in the selected category.
func (e *Engine) Topics() []catalog.Topic {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]catalog.Topic{}, e.topics...)
}

// Questions returns the questions of the selected topic at the selected difficulty.
func (e *Engine) Questions() []catalog.Question {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]catalog.Question{}, e.questions...)
}

// Selection returns the current selection.
func (e *Engine) Selection() Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sel := e.selection
	if sel.Topic != nil {
		t := *sel.Topic
		sel.Topic = &t
	}
	return sel
}

// SearchQuery returns the current search text.
func (e *Engine) SearchQuery() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.query
}

// SearchResults returns the results for the current search text.
func (e *Engine) SearchResults() search.Results {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.results.Clone()
}

// Search runs query without touching the selection.
func (e *Engine) Search(ctx context.Context, query string) search.Results {
	return e.search(ctx, query)
}

// SetSelectedCategory sets the category filter; "" clears it.
func (e *Engine) SetSelectedCategory(ctx context.Context, category string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection.Category = category
	e.recompute(ctx)
}

// SetSelectedTopic selects a topic by id. Empty or unknown ids clear the selection.
func (e *Engine) SetSelectedTopic(ctx context.Context, topicID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selectTopicLocked(topicID)
	e.recompute(ctx)
}

func (e *Engine) selectTopicLocked(topicID string) {
	t, ok := e.catalog.TopicByID(topicID)
	if !ok {
		if topicID != "" {
			slog.Debug("unknown topic selected, clearing selection", "topic_id", topicID)
		}
		e.selection.Topic = nil
		return
	}
	e.selection.Topic = &t
}

// SetSelectedDifficulty sets the difficulty filter; "" clears it.
func (e *Engine) SetSelectedDifficulty(ctx context.Context, d catalog.Difficulty) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection.Difficulty = d
	e.recompute(ctx)
}

// SetSearchQuery stores the search text and refreshes the results.
func (e *Engine) SetSearchQuery(ctx context.Context, query string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = query
	e.results = e.search(ctx, query)
}

// ChatHistory returns the chat transcript.
func (e *Engine) ChatHistory() []chat.Message {
	return e.assistant.History()
}

// SendMessage posts a user message; the assistant reply follows asynchronously.
// Blank content is ignored and reports false.
func (e *Engine) SendMessage(content string) (chat.Message, bool) {
	return e.assistant.Send(content)
}

// HandleInbound posts a message received from a push channel.
func (e *Engine) HandleInbound(msg chat.InboundMessage) {
	if _, ok := e.SendMessage(msg.Text); !ok {
		slog.Debug("blank inbound chat message ignored", "channel", msg.Channel, "user_id", msg.UserID)
	}
}

// StartSession opens a study session on topicID and selects that topic. Unknown
// topics are ignored and report false.
func (e *Engine) StartSession(ctx context.Context, topicID string) (study.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.tracker.StartSession(ctx, topicID)
	if !ok {
		return study.Session{}, false
	}
	e.selectTopicLocked(topicID)
	e.recompute(ctx)
	return sess, true
}

// EndSession ends the open session and folds the counts into the progress ledger.
// With no open session it does nothing and reports false. Persistence failures are
// logged and the session still ends; the returned record is nil when the ledger
// could not be updated.
func (e *Engine) EndSession(ctx context.Context, attempted, correct int) (*study.Progress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ended, err := e.tracker.EndSession(ctx, attempted, correct)
	if err != nil {
		slog.Error("failed to persist study progress", "error", err)
	}
	if !ended || p.TopicID == "" {
		return nil, ended
	}
	return &p, true
}

// CurrentSession returns the open session, if any.
func (e *Engine) CurrentSession() (study.Session, bool) {
	return e.tracker.Current()
}

// UserID returns the user progress is recorded for.
func (e *Engine) UserID() string {
	return e.tracker.UserID()
}

// Progress returns the progress ledger. Store failures yield an empty ledger.
func (e *Engine) Progress(ctx context.Context) []study.Progress {
	p, err := e.tracker.Progress(ctx)
	if err != nil {
		slog.Error("failed to load progress", "error", err)
		return []study.Progress{}
	}
	return p
}

// Sessions returns the ended sessions. Store failures yield an empty list.
func (e *Engine) Sessions(ctx context.Context) []study.Session {
	s, err := e.tracker.Sessions(ctx)
	if err != nil {
		slog.Error("failed to load sessions", "error", err)
		return []study.Session{}
	}
	return s
}

// ProgressSummary totals the ledger and session history.
func (e *Engine) ProgressSummary(ctx context.Context) study.Summary {
	return study.Summarize(e.Progress(ctx), e.Sessions(ctx))
}

// Drain waits for pending chat replies.
func (e *Engine) Drain(ctx context.Context) error {
	if err := e.assistant.Drain(ctx); err != nil {
		return fmt.Errorf("draining chat replies: %w", err)
	}
	return nil
}
