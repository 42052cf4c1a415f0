package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed seed/*.yaml
var seedFS embed.FS

// ErrInvalidCatalog is returned when catalog content breaks an identity or reference invariant.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Seed loads the built-in medical catalog.
func Seed() (*Catalog, error) {
	sub, err := fs.Sub(seedFS, "seed")
	if err != nil {
		return nil, fmt.Errorf("opening seed: %w", err)
	}
	return LoadFS(sub)
}

// LoadDir loads every catalog YAML file under rootDir.
func LoadDir(rootDir string) (*Catalog, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("opening catalog dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path %s is not a directory", rootDir)
	}
	return LoadFS(os.DirFS(rootDir))
}

// LoadFS loads every .yaml/.yml file in fsys in lexical path order and merges them
// into one catalog. Files are validated against the catalog schema first.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	var merged document

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(path.Ext(p))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if err := validateDocument(p, data); err != nil {
			return err
		}

		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decoding %s: %w", p, err)
		}
		merged.merge(doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	c, err := build(merged)
	if err != nil {
		return nil, err
	}

	slog.Info("catalog loaded",
		"categories", len(c.categories),
		"topics", len(c.topics),
		"questions", len(c.questions),
		"glossary_terms", len(c.glossary),
	)
	return c, nil
}

func (d *document) merge(other document) {
	for _, cat := range other.Categories {
		if !slices.Contains(d.Categories, cat) {
			d.Categories = append(d.Categories, cat)
		}
	}
	d.Topics = append(d.Topics, other.Topics...)
	d.Questions = append(d.Questions, other.Questions...)
	d.Glossary = append(d.Glossary, other.Glossary...)
}

// build indexes a merged document and enforces the catalog invariants.
func build(doc document) (*Catalog, error) {
	c := &Catalog{
		categories: doc.Categories,
		topicIdx:   make(map[string]int, len(doc.Topics)),
		questionID: make(map[string]struct{}, len(doc.Questions)),
		termIdx:    make(map[string]int, len(doc.Glossary)),
	}
	var errs []error

	for _, t := range doc.Topics {
		if _, dup := c.topicIdx[t.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate topic id %q", t.ID))
			continue
		}
		if len(c.categories) > 0 && !slices.Contains(c.categories, t.Category) {
			errs = append(errs, fmt.Errorf("topic %q has unknown category %q", t.ID, t.Category))
			continue
		}
		if t.SubTopics == nil {
			t.SubTopics = []string{}
		}
		c.topicIdx[t.ID] = len(c.topics)
		c.topics = append(c.topics, t)
	}

	// Subtopic ids may point at topics that are not authored yet.
	for _, t := range c.topics {
		for _, sub := range t.SubTopics {
			if _, ok := c.topicIdx[sub]; !ok {
				c.warnings = append(c.warnings, fmt.Sprintf("topic %q lists unknown subtopic %q", t.ID, sub))
			}
		}
	}

	for _, q := range doc.Questions {
		if _, dup := c.questionID[q.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate question id %q", q.ID))
			continue
		}
		if _, ok := c.topicIdx[q.TopicID]; !ok {
			errs = append(errs, fmt.Errorf("question %q references unknown topic %q", q.ID, q.TopicID))
			continue
		}
		if !slices.Contains(Difficulties, q.DifficultyLevel) {
			errs = append(errs, fmt.Errorf("question %q has invalid difficulty %q", q.ID, q.DifficultyLevel))
			continue
		}
		if q.Tags == nil {
			q.Tags = []string{}
		}
		c.questionID[q.ID] = struct{}{}
		c.questions = append(c.questions, q)
	}

	for _, g := range doc.Glossary {
		if _, dup := c.termIdx[g.Term]; dup {
			errs = append(errs, fmt.Errorf("duplicate glossary term %q", g.Term))
			continue
		}
		if g.RelatedTerms == nil {
			g.RelatedTerms = []string{}
		}
		c.termIdx[g.Term] = len(c.glossary)
		c.glossary = append(c.glossary, g)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}

	if len(c.warnings) > 0 {
		slog.Warn("catalog has dangling subtopic references", "count", len(c.warnings))
		for _, w := range c.warnings {
			slog.Debug("catalog warning", "detail", w)
		}
	}
	return c, nil
}
