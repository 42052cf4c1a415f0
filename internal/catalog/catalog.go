// Package catalog holds the study content: categories, topics, questions and glossary terms.
// A Catalog is an immutable snapshot; accessors hand out copies.
package catalog

import (
	"log/slog"
	"slices"
)

// Catalog is an indexed, read-only snapshot of study content.
type Catalog struct {
	categories []string
	topics     []Topic
	questions  []Question
	glossary   []GlossaryTerm

	topicIdx   map[string]int
	questionID map[string]struct{}
	termIdx    map[string]int
	warnings   []string
}

// Categories returns the category enumeration in authored order.
func (c *Catalog) Categories() []string {
	return slices.Clone(c.categories)
}

// CategoryExists reports whether category is part of the enumeration.
func (c *Catalog) CategoryExists(category string) bool {
	return slices.Contains(c.categories, category)
}

// Topics returns all topics in source order.
func (c *Catalog) Topics() []Topic {
	return slices.Clone(c.topics)
}

// Questions returns all questions in source order.
func (c *Catalog) Questions() []Question {
	return slices.Clone(c.questions)
}

// Glossary returns all glossary terms in source order.
func (c *Catalog) Glossary() []GlossaryTerm {
	return slices.Clone(c.glossary)
}

// Warnings returns non-fatal problems found at load time.
func (c *Catalog) Warnings() []string {
	return slices.Clone(c.warnings)
}

// TopicByID returns a topic by ID.
func (c *Catalog) TopicByID(id string) (Topic, bool) {
	i, ok := c.topicIdx[id]
	if !ok {
		return Topic{}, false
	}
	return c.topics[i], true
}

// TopicName returns the display name of a topic.
func (c *Catalog) TopicName(id string) (string, bool) {
	t, ok := c.TopicByID(id)
	return t.Name, ok
}

// SubTopics resolves a topic's subtopic ids, skipping ids that do not exist.
func (c *Catalog) SubTopics(id string) []Topic {
	t, ok := c.TopicByID(id)
	if !ok {
		return nil
	}
	subs := make([]Topic, 0, len(t.SubTopics))
	for _, sid := range t.SubTopics {
		if st, ok := c.TopicByID(sid); ok {
			subs = append(subs, st)
		}
	}
	return subs
}

// TermByName returns a glossary term by its exact name.
func (c *Catalog) TermByName(term string) (GlossaryTerm, bool) {
	i, ok := c.termIdx[term]
	if !ok {
		return GlossaryTerm{}, false
	}
	return c.glossary[i], true
}

// QuestionCount returns the number of questions bound to a topic.
func (c *Catalog) QuestionCount(topicID string) int {
	n := 0
	for _, q := range c.questions {
		if q.TopicID == topicID {
			n++
		}
	}
	return n
}

// WithQuestions returns a new snapshot with extra questions appended.
// Questions whose id is already taken or whose topic is unknown are dropped.
func (c *Catalog) WithQuestions(extra []Question) *Catalog {
	next := &Catalog{
		categories: c.categories,
		topics:     c.topics,
		glossary:   c.glossary,
		topicIdx:   c.topicIdx,
		termIdx:    c.termIdx,
		warnings:   c.warnings,
		questions:  slices.Clone(c.questions),
		questionID: make(map[string]struct{}, len(c.questionID)+len(extra)),
	}
	for id := range c.questionID {
		next.questionID[id] = struct{}{}
	}

	for _, q := range extra {
		if _, dup := next.questionID[q.ID]; dup {
			slog.Warn("dropping question with duplicate id", "question_id", q.ID)
			continue
		}
		if _, ok := next.topicIdx[q.TopicID]; !ok {
			slog.Warn("dropping question for unknown topic", "question_id", q.ID, "topic_id", q.TopicID)
			continue
		}
		next.questionID[q.ID] = struct{}{}
		next.questions = append(next.questions, q)
	}
	return next
}
