package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/reviserx/internal/catalog"
	"github.com/p-n-ai/reviserx/internal/chat"
	"github.com/p-n-ai/reviserx/internal/engine"
	"github.com/p-n-ai/reviserx/internal/search"
	"github.com/p-n-ai/reviserx/internal/study"
)

func newEngine(t *testing.T, mutate ...func(*engine.EngineConfig)) *engine.Engine {
	t.Helper()
	cat, err := catalog.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	var mu sync.Mutex
	n := 0
	cfg := engine.EngineConfig{
		Catalog:    cat,
		ReplyDelay: 0,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := engine.NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func drain(t *testing.T, e *engine.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
}

func TestNewEngine_RequiresCatalog(t *testing.T) {
	if _, err := engine.NewEngine(engine.EngineConfig{}); err == nil {
		t.Fatal("NewEngine() should fail without a catalog")
	}
}

func TestNewEngine_TopsUpOnce(t *testing.T) {
	e := newEngine(t)

	counts := map[string]int{}
	for _, q := range e.AllQuestions() {
		counts[q.TopicID]++
	}
	for _, topic := range e.AllTopics() {
		if counts[topic.ID] < catalog.MinQuestionsPerTopic {
			t.Errorf("topic %s has %d questions, want >= %d", topic.ID, counts[topic.ID], catalog.MinQuestionsPerTopic)
		}
	}

	// The augmented catalog needs no further top-up.
	if extra := e.Catalog().TopUp(catalog.MinQuestionsPerTopic); len(extra) != 0 {
		t.Errorf("TopUp() after construction generated %d questions", len(extra))
	}
}

func TestEngine_InitialViews(t *testing.T) {
	e := newEngine(t)

	if got := len(e.Topics()); got != len(e.AllTopics()) {
		t.Errorf("Topics() = %d, want all %d", got, len(e.AllTopics()))
	}
	if got := len(e.Questions()); got != 0 {
		t.Errorf("Questions() with no topic = %d, want 0", got)
	}
	if e.SearchResults().Total() != 0 {
		t.Error("SearchResults() should start empty")
	}
	if len(e.Categories()) != 12 || len(e.Glossary()) != 10 {
		t.Errorf("Categories() = %d, Glossary() = %d", len(e.Categories()), len(e.Glossary()))
	}
}

func TestEngine_Selection(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	e.SetSelectedCategory(ctx, "Pharmacology")
	for _, tp := range e.Topics() {
		if tp.Category != "Pharmacology" {
			t.Errorf("Topics() includes %s in %s", tp.ID, tp.Category)
		}
	}

	e.SetSelectedTopic(ctx, "heart-anatomy")
	if sel := e.Selection(); sel.Topic == nil || sel.Topic.Name != "Heart Anatomy" {
		t.Fatalf("Selection().Topic = %+v", sel.Topic)
	}
	// q1, q2, q3 plus seven generated questions.
	if got := len(e.Questions()); got != 10 {
		t.Errorf("Questions() for heart-anatomy = %d, want 10", got)
	}

	e.SetSelectedDifficulty(ctx, catalog.Advanced)
	for _, q := range e.Questions() {
		if q.DifficultyLevel != catalog.Advanced || q.TopicID != "heart-anatomy" {
			t.Errorf("Questions() includes %s (%s, %s)", q.ID, q.TopicID, q.DifficultyLevel)
		}
	}

	e.SetSelectedTopic(ctx, "nonexistent-topic")
	if e.Selection().Topic != nil {
		t.Error("unknown topic should clear the selection")
	}
	if len(e.Questions()) != 0 {
		t.Error("Questions() should be empty with no topic selected")
	}

	e.SetSelectedCategory(ctx, "")
	e.SetSelectedDifficulty(ctx, "")
	if len(e.Topics()) != len(e.AllTopics()) {
		t.Error("clearing the category should show all topics")
	}
}

func TestEngine_SearchQuery(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	e.SetSearchQuery(ctx, "ab")
	if e.SearchResults().Total() != 0 {
		t.Error("two-character query should yield no results")
	}

	e.SetSearchQuery(ctx, "glycolysis")
	res := e.SearchResults()
	if len(res.Questions) == 0 {
		t.Error("search for glycolysis found no questions")
	}
	if e.SearchQuery() != "glycolysis" {
		t.Errorf("SearchQuery() = %q", e.SearchQuery())
	}

	e.SetSearchQuery(ctx, "")
	if e.SearchResults().Total() != 0 {
		t.Error("clearing the query should clear the results")
	}
}

func TestEngine_SearchResultsAreCopies(t *testing.T) {
	e := newEngine(t)
	e.SetSearchQuery(context.Background(), "glycolysis")

	res := e.SearchResults()
	if len(res.Questions) == 0 {
		t.Fatal("search for glycolysis found no questions")
	}
	want := res.Questions[0].ID
	res.Questions[0].ID = "mutated"

	if got := e.SearchResults().Questions[0].ID; got != want {
		t.Errorf("SearchResults() after caller mutation = %q, want %q", got, want)
	}
}

type countingCache struct {
	search.MemoryCache
	mu   sync.Mutex
	hits int
}

func (c *countingCache) Get(ctx context.Context, key string) (search.Results, bool) {
	res, ok := c.MemoryCache.Get(ctx, key)
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
	}
	return res, ok
}

func TestEngine_SearchUsesCache(t *testing.T) {
	cache := &countingCache{MemoryCache: *search.NewMemoryCache(time.Minute)}
	e := newEngine(t, func(cfg *engine.EngineConfig) { cfg.SearchCache = cache })
	ctx := context.Background()

	first := e.Search(ctx, "heart")
	second := e.Search(ctx, "HEART ")
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}
	if first.Total() != second.Total() {
		t.Errorf("cached results differ: %d vs %d", first.Total(), second.Total())
	}
}

func TestEngine_SendMessage_Pacemaker(t *testing.T) {
	e := newEngine(t)

	msg, ok := e.SendMessage("What is the pacemaker of the heart?")
	if !ok || msg.Role != chat.RoleUser {
		t.Fatalf("SendMessage() = %+v, %v", msg, ok)
	}
	drain(t, e)

	h := e.ChatHistory()
	if len(h) != 2 {
		t.Fatalf("ChatHistory() = %d messages, want 2", len(h))
	}
	reply := h[1]
	if reply.Role != chat.RoleAssistant {
		t.Errorf("second message role = %s", reply.Role)
	}
	if !strings.Contains(reply.Content, "The sinoatrial (SA) node is the natural pacemaker of the heart.") {
		t.Errorf("reply missing q2 answer: %q", reply.Content)
	}
	if !strings.Contains(reply.Content, "Heart Anatomy") {
		t.Errorf("reply missing topic name: %q", reply.Content)
	}
}

func TestEngine_HandleInbound(t *testing.T) {
	var mu sync.Mutex
	var pushed []chat.Message
	e := newEngine(t, func(cfg *engine.EngineConfig) {
		cfg.OnMessage = func(m chat.Message) {
			mu.Lock()
			pushed = append(pushed, m)
			mu.Unlock()
		}
	})

	e.HandleInbound(chat.InboundMessage{Channel: chat.WebSocketChannelName, UserID: "user1", Text: "stages of labor"})
	e.HandleInbound(chat.InboundMessage{Channel: chat.WebSocketChannelName, UserID: "user1", Text: "  "})
	drain(t, e)

	mu.Lock()
	defer mu.Unlock()
	if len(pushed) != 2 {
		t.Fatalf("pushed = %d messages, want 2", len(pushed))
	}
}

func TestEngine_Sessions(t *testing.T) {
	events := study.NewMemoryEventLogger()
	e := newEngine(t, func(cfg *engine.EngineConfig) { cfg.EventLogger = events })
	ctx := context.Background()

	if _, ended := e.EndSession(ctx, 5, 4); ended {
		t.Error("EndSession() without a session should be a no-op")
	}
	if len(e.Progress(ctx)) != 0 {
		t.Error("ledger changed by a no-op EndSession")
	}

	if _, ok := e.StartSession(ctx, "nonexistent-topic"); ok {
		t.Error("StartSession() should ignore unknown topics")
	}

	sess, ok := e.StartSession(ctx, "heart-anatomy")
	if !ok {
		t.Fatal("StartSession(heart-anatomy) failed")
	}
	if sel := e.Selection(); sel.Topic == nil || sel.Topic.ID != "heart-anatomy" {
		t.Error("StartSession() should select the topic")
	}
	if cur, open := e.CurrentSession(); !open || cur.ID != sess.ID {
		t.Errorf("CurrentSession() = %+v, %v", cur, open)
	}
	if p, ended := e.EndSession(ctx, 5, 4); !ended || p == nil || p.QuestionsAttempted != 5 {
		t.Errorf("EndSession() = %+v, %v, want 5 attempted", p, ended)
	}

	e.StartSession(ctx, "heart-anatomy")
	e.EndSession(ctx, 3, 2)

	progress := e.Progress(ctx)
	if len(progress) != 1 {
		t.Fatalf("Progress() = %d records, want 1", len(progress))
	}
	if p := progress[0]; p.QuestionsAttempted != 8 || p.QuestionsCorrect != 6 || p.UserID != study.DefaultUserID {
		t.Errorf("Progress()[0] = %+v, want 8/6 for %s", p, study.DefaultUserID)
	}
	if _, open := e.CurrentSession(); open {
		t.Error("no session should be open")
	}

	summary := e.ProgressSummary(ctx)
	if summary.Sessions != 2 || summary.Accuracy != 75 {
		t.Errorf("ProgressSummary() = %+v", summary)
	}
	if got := len(events.Events()); got != 4 {
		t.Errorf("events = %d, want 4", got)
	}
}

// failingStore rejects every write.
type failingStore struct{ *study.MemoryStore }

func (failingStore) SaveSession(context.Context, study.Session) error {
	return errors.New("session table unavailable")
}

func (failingStore) AddProgress(context.Context, string, string, int, int, time.Time) (study.Progress, error) {
	return study.Progress{}, errors.New("disk full")
}

func TestEngine_EndSession_StoreFailure(t *testing.T) {
	e := newEngine(t, func(cfg *engine.EngineConfig) {
		cfg.Store = failingStore{study.NewMemoryStore()}
	})
	ctx := context.Background()

	e.StartSession(ctx, "heart-anatomy")
	p, ended := e.EndSession(ctx, 5, 4)
	if !ended {
		t.Error("EndSession() should report the session ended")
	}
	if p != nil {
		t.Errorf("EndSession() progress = %+v, want nil when the ledger was not updated", p)
	}
	if _, open := e.CurrentSession(); open {
		t.Error("session should be closed after a store failure")
	}
}

func TestEngine_ConcurrentCommands(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 4 {
			case 0:
				e.SetSelectedCategory(ctx, "Anatomy")
			case 1:
				e.SetSelectedTopic(ctx, "heart-anatomy")
			case 2:
				e.SetSearchQuery(ctx, "heart")
			case 3:
				e.SendMessage("arteries")
			}
			_ = e.Questions()
			_ = e.SearchResults()
		}(i)
	}
	wg.Wait()
	drain(t, e)

	if got := len(e.ChatHistory()); got != 10 {
		t.Errorf("ChatHistory() = %d, want 10", got)
	}
}
