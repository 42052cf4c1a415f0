package search

import (
	"strings"
	"unicode/utf8"

	"github.com/p-n-ai/reviserx/internal/catalog"
)

// MinQueryLength is the number of runes a trimmed query must exceed before search runs.
const MinQueryLength = 2

// Results holds the matches of one search, each in source order.
type Results struct {
	Topics    []catalog.Topic        `json:"topics"`
	Questions []catalog.Question     `json:"questions"`
	Glossary  []catalog.GlossaryTerm `json:"glossary_terms"`
}

// Empty returns a result set with all three collections empty.
func Empty() Results {
	return Results{
		Topics:    []catalog.Topic{},
		Questions: []catalog.Question{},
		Glossary:  []catalog.GlossaryTerm{},
	}
}

// Clone returns a copy whose collections do not share backing arrays with r.
func (r Results) Clone() Results {
	return Results{
		Topics:    append([]catalog.Topic{}, r.Topics...),
		Questions: append([]catalog.Question{}, r.Questions...),
		Glossary:  append([]catalog.GlossaryTerm{}, r.Glossary...),
	}
}

// Total returns the number of matches across all collections.
func (r Results) Total() int {
	return len(r.Topics) + len(r.Questions) + len(r.Glossary)
}

// Active reports whether query is long enough to run a search.
func Active(query string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(query)) > MinQueryLength
}

// Search matches query case-insensitively as a substring of topic names and descriptions,
// question text, answers and tags, and glossary terms and definitions.
// Queries of MinQueryLength runes or fewer (after trimming) match nothing.
func Search(query string, topics []catalog.Topic, questions []catalog.Question, glossary []catalog.GlossaryTerm) Results {
	res := Empty()
	if !Active(query) {
		return res
	}
	needle := Fold(strings.TrimSpace(query))

	for _, t := range topics {
		if containsFolded(t.Name, needle) || containsFolded(t.Description, needle) {
			res.Topics = append(res.Topics, t)
		}
	}

	for _, q := range questions {
		if containsFolded(q.Question, needle) || containsFolded(q.Answer, needle) || anyTagContains(q.Tags, needle) {
			res.Questions = append(res.Questions, q)
		}
	}

	for _, g := range glossary {
		if containsFolded(g.Term, needle) || containsFolded(g.Definition, needle) {
			res.Glossary = append(res.Glossary, g)
		}
	}

	return res
}

func anyTagContains(tags []string, needle string) bool {
	for _, tag := range tags {
		if containsFolded(tag, needle) {
			return true
		}
	}
	return false
}
