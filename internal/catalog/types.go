package catalog

import "strings"

// Difficulty is the tier of a question.
type Difficulty string

const (
	Basic        Difficulty = "Basic"
	Intermediate Difficulty = "Intermediate"
	Advanced     Difficulty = "Advanced"
)

// Difficulties lists the tiers in generator cycling order.
var Difficulties = []Difficulty{Basic, Intermediate, Advanced}

// ParseDifficulty matches a tier name case-insensitively.
// An empty string parses to the unset difficulty.
func ParseDifficulty(s string) (Difficulty, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	for _, d := range Difficulties {
		if strings.EqualFold(s, string(d)) {
			return d, true
		}
	}
	return "", false
}

// Topic is a named unit of medical subject matter.
type Topic struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Category    string   `yaml:"category" json:"category"`
	SubTopics   []string `yaml:"sub_topics" json:"sub_topics"`
}

// Question is a quiz item bound to exactly one topic.
type Question struct {
	ID              string     `yaml:"id" json:"id"`
	Question        string     `yaml:"question" json:"question"`
	Answer          string     `yaml:"answer" json:"answer"`
	TopicID         string     `yaml:"topic_id" json:"topic_id"`
	DifficultyLevel Difficulty `yaml:"difficulty_level" json:"difficulty_level"`
	Tags            []string   `yaml:"tags" json:"tags"`
}

// GlossaryTerm is a term/definition pair. Term is its identity.
type GlossaryTerm struct {
	Term         string   `yaml:"term" json:"term"`
	Definition   string   `yaml:"definition" json:"definition"`
	RelatedTerms []string `yaml:"related_terms" json:"related_terms"`
}

// document is the on-disk layout of a catalog YAML file.
type document struct {
	Categories []string       `yaml:"categories"`
	Topics     []Topic        `yaml:"topics"`
	Questions  []Question     `yaml:"questions"`
	Glossary   []GlossaryTerm `yaml:"glossary"`
}
