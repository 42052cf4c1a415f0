package catalog

import (
	"fmt"
	"strings"
)

// MinQuestionsPerTopic is the top-up threshold applied at startup.
const MinQuestionsPerTopic = 10

// GenerateQuestions synthesizes count filler questions for a topic.
// Ids are {topicID}-q1..q{count}; difficulty cycles Basic, Intermediate, Advanced.
// It returns nil for an unknown topic or a non-positive count.
func (c *Catalog) GenerateQuestions(topicID string, count int) []Question {
	topic, ok := c.TopicByID(topicID)
	if !ok || count <= 0 {
		return nil
	}

	tags := []string{strings.ToLower(topic.Name), strings.ToLower(topic.Category)}
	out := make([]Question, 0, count)
	for i := range count {
		n := i + 1
		out = append(out, Question{
			ID:              fmt.Sprintf("%s-q%d", topic.ID, n),
			Question:        fmt.Sprintf("Sample question %d about %s", n, topic.Name),
			Answer:          fmt.Sprintf("Detailed answer for sample question %d about %s. This would contain comprehensive information relevant to an MBBS curriculum.", n, topic.Name),
			TopicID:         topic.ID,
			DifficultyLevel: Difficulties[i%len(Difficulties)],
			Tags:            append([]string(nil), tags...),
		})
	}
	return out
}

// TopUp returns the filler questions needed for every topic to reach min questions.
// It never proposes anything for a topic that already has enough.
func (c *Catalog) TopUp(min int) []Question {
	counts := make(map[string]int, len(c.topics))
	for _, q := range c.questions {
		counts[q.TopicID]++
	}

	var extra []Question
	for _, t := range c.topics {
		if have := counts[t.ID]; have < min {
			extra = append(extra, c.GenerateQuestions(t.ID, min-have)...)
		}
	}
	return extra
}
