package chat

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/p-n-ai/reviserx/internal/catalog"
)

// FallbackReply is sent when no question in the bank matches the input.
const FallbackReply = "I don't have specific information about that. Could you try rephrasing your question or explore our topics library?"

// SuggestedQuestions are starter prompts offered before a conversation begins.
var SuggestedQuestions = []string{
	"What are the chambers of the heart?",
	"Explain the cardiac cycle",
	"What is the difference between arteries and veins?",
	"How does the respiratory system work?",
	"What are the stages of labor?",
	"Explain the glycolysis pathway",
}

// TopicNamer resolves a topic id to its display name.
type TopicNamer func(topicID string) (string, bool)

// Match picks the question that best answers content. A question whose text contains
// content wins; otherwise the first question with a tag appearing inside content is used.
// Comparison is case-insensitive and ties go to source order.
//
// The text pass runs over every question before any tag is tried, so a broad tag on an
// early question cannot shadow a direct hit on a later one. Blank tags never match.
func Match(content string, questions []catalog.Question) (catalog.Question, bool) {
	fold := cases.Fold()
	input := fold.String(content)
	for _, q := range questions {
		if strings.Contains(fold.String(q.Question), input) {
			return q, true
		}
	}
	for _, q := range questions {
		for _, tag := range q.Tags {
			if strings.TrimSpace(tag) == "" {
				continue
			}
			if strings.Contains(input, fold.String(tag)) {
				return q, true
			}
		}
	}
	return catalog.Question{}, false
}

// Respond builds the assistant reply for content from the question bank.
func Respond(content string, questions []catalog.Question, topicName TopicNamer) string {
	q, ok := Match(content, questions)
	if !ok {
		return FallbackReply
	}
	name := q.TopicID
	if topicName != nil {
		if n, found := topicName(q.TopicID); found {
			name = n
		}
	}
	return fmt.Sprintf("%s\n\nThis information relates to the topic: %s", q.Answer, name)
}
