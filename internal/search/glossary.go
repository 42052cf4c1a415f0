package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/p-n-ai/reviserx/internal/catalog"
)

// LetterGroup is the set of glossary terms sharing an initial letter.
type LetterGroup struct {
	Letter string                 `json:"letter"`
	Terms  []catalog.GlossaryTerm `json:"terms"`
}

// Related is the outcome of resolving a term's related-term references.
type Related struct {
	Resolved   []catalog.GlossaryTerm `json:"resolved"`
	Unresolved []string               `json:"unresolved"`
}

// InitialLetter returns the upper-cased first letter of a term, or "" when it has none.
func InitialLetter(term string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(term))
	if r == utf8.RuneError || !unicode.IsLetter(r) {
		return ""
	}
	return string(unicode.ToUpper(r))
}

// FilterGlossary narrows terms by a free-text query over term and definition and by
// initial letter. Unlike Search there is no minimum query length; empty filters match all.
func FilterGlossary(terms []catalog.GlossaryTerm, query, letter string) []catalog.GlossaryTerm {
	needle := Fold(strings.TrimSpace(query))
	letter = strings.ToUpper(strings.TrimSpace(letter))

	out := []catalog.GlossaryTerm{}
	for _, g := range terms {
		if needle != "" && !containsFolded(g.Term, needle) && !containsFolded(g.Definition, needle) {
			continue
		}
		if letter != "" && InitialLetter(g.Term) != letter {
			continue
		}
		out = append(out, g)
	}
	return out
}

// GroupByLetter groups terms by initial letter, A to Z. Letters without terms are omitted
// and terms keep their source order within a group.
func GroupByLetter(terms []catalog.GlossaryTerm) []LetterGroup {
	var groups []LetterGroup
	for c := 'A'; c <= 'Z'; c++ {
		letter := string(c)
		var in []catalog.GlossaryTerm
		for _, g := range terms {
			if InitialLetter(g.Term) == letter {
				in = append(in, g)
			}
		}
		if len(in) > 0 {
			groups = append(groups, LetterGroup{Letter: letter, Terms: in})
		}
	}
	return groups
}

// Letters returns the letters that have at least one term, A to Z.
func Letters(terms []catalog.GlossaryTerm) []string {
	groups := GroupByLetter(terms)
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Letter)
	}
	return out
}

// ResolveRelated looks up a term's related terms by exact name. Names without a
// glossary entry are reported as unresolved rather than treated as errors.
func ResolveRelated(terms []catalog.GlossaryTerm, term catalog.GlossaryTerm) Related {
	byName := make(map[string]catalog.GlossaryTerm, len(terms))
	for _, g := range terms {
		byName[g.Term] = g
	}

	rel := Related{Resolved: []catalog.GlossaryTerm{}, Unresolved: []string{}}
	for _, name := range term.RelatedTerms {
		if g, ok := byName[name]; ok {
			rel.Resolved = append(rel.Resolved, g)
		} else {
			rel.Unresolved = append(rel.Unresolved, name)
		}
	}
	return rel
}
