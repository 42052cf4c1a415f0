// Package search holds the pure query functions over catalog snapshots: selection
// filters, free-text search and glossary lookups. None of them mutate their inputs.
package search

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/p-n-ai/reviserx/internal/catalog"
)

// Fold returns s in Unicode case-folded form for case-insensitive comparison.
func Fold(s string) string {
	// Casers carry state, so each call gets its own.
	return cases.Fold().String(s)
}

// containsFolded reports whether folded needle occurs in s.
func containsFolded(s, foldedNeedle string) bool {
	return strings.Contains(Fold(s), foldedNeedle)
}

// FilterTopics returns topics in the given category, or all topics when category is empty.
func FilterTopics(topics []catalog.Topic, category string) []catalog.Topic {
	out := make([]catalog.Topic, 0, len(topics))
	for _, t := range topics {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// FilterQuestions returns the questions of a topic, narrowed by difficulty when one is set.
// No topic selected means no questions.
func FilterQuestions(questions []catalog.Question, topicID string, difficulty catalog.Difficulty) []catalog.Question {
	out := []catalog.Question{}
	if topicID == "" {
		return out
	}
	for _, q := range questions {
		if q.TopicID != topicID {
			continue
		}
		if difficulty != "" && q.DifficultyLevel != difficulty {
			continue
		}
		out = append(out, q)
	}
	return out
}
