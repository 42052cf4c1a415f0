package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/p-n-ai/reviserx/internal/catalog"
)

func TestSeed_Loads(t *testing.T) {
	c, err := catalog.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	if got := len(c.Categories()); got != 12 {
		t.Errorf("Categories() = %d, want 12", got)
	}
	if got := len(c.Topics()); got != 12 {
		t.Errorf("Topics() = %d, want 12", got)
	}
	if got := len(c.Questions()); got != 8 {
		t.Errorf("Questions() = %d, want 8", got)
	}
	if got := len(c.Glossary()); got != 10 {
		t.Errorf("Glossary() = %d, want 10", got)
	}
}

func TestSeed_SourceOrder(t *testing.T) {
	c, err := catalog.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	topics := c.Topics()
	if topics[0].ID != "cardiovascular-system" || topics[len(topics)-1].ID != "pediatric-development" {
		t.Errorf("topics out of source order: first=%q last=%q", topics[0].ID, topics[len(topics)-1].ID)
	}
	questions := c.Questions()
	for i, q := range questions {
		want := "q" + string(rune('1'+i))
		if q.ID != want {
			t.Errorf("questions[%d].ID = %q, want %q", i, q.ID, want)
		}
	}
}

func TestSeed_DanglingSubTopicsAreWarnings(t *testing.T) {
	c, err := catalog.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	if len(c.Warnings()) == 0 {
		t.Error("expected warnings for subtopics that are not authored")
	}

	subs := c.SubTopics("cardiovascular-system")
	if len(subs) != 2 {
		t.Fatalf("SubTopics(cardiovascular-system) = %d, want 2 (heart-anatomy, blood-vessels)", len(subs))
	}
	if subs[0].ID != "heart-anatomy" || subs[1].ID != "blood-vessels" {
		t.Errorf("SubTopics = [%s %s], want [heart-anatomy blood-vessels]", subs[0].ID, subs[1].ID)
	}
}

func TestCatalog_TopicByID(t *testing.T) {
	c, err := catalog.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	topic, found := c.TopicByID("heart-anatomy")
	if !found {
		t.Fatal("TopicByID(heart-anatomy) not found")
	}
	if topic.Name != "Heart Anatomy" {
		t.Errorf("Name = %q, want Heart Anatomy", topic.Name)
	}

	if _, found := c.TopicByID("NONEXISTENT"); found {
		t.Error("TopicByID(NONEXISTENT) should not be found")
	}
}

func TestCatalog_TermByName(t *testing.T) {
	c, err := catalog.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	term, found := c.TermByName("Bradycardia")
	if !found {
		t.Fatal("TermByName(Bradycardia) not found")
	}
	if len(term.RelatedTerms) != 2 {
		t.Errorf("RelatedTerms = %v, want 2 entries", term.RelatedTerms)
	}
	if _, found := c.TermByName("bradycardia"); found {
		t.Error("TermByName should match the exact term only")
	}
}

func TestCatalog_AccessorsReturnCopies(t *testing.T) {
	c, err := catalog.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	topics := c.Topics()
	topics[0].Name = "changed"

	if got, _ := c.TopicByID(topics[0].ID); got.Name == "changed" {
		t.Error("mutating the Topics() result leaked into the catalog")
	}
}

func TestLoadDir_MergesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a-categories.yaml", `
categories: ["Anatomy", "Physiology"]
`)
	writeFile(t, dir, "b-topics.yaml", `
topics:
  - id: heart
    name: "Heart"
    description: "The heart."
    category: "Anatomy"
questions:
  - id: h1
    question: "What pumps blood?"
    answer: "The heart."
    topic_id: heart
    difficulty_level: Basic
`)
	writeFile(t, dir, "notes.md", "# not a catalog file")

	c, err := catalog.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(c.Topics()) != 1 || len(c.Questions()) != 1 {
		t.Errorf("got %d topics, %d questions; want 1, 1", len(c.Topics()), len(c.Questions()))
	}
	if q := c.Questions()[0]; q.Tags == nil {
		t.Error("missing tags should load as an empty list")
	}
}

func TestLoadDir_EmptyDir(t *testing.T) {
	c, err := catalog.LoadDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(c.Topics()) != 0 {
		t.Errorf("Topics() = %d, want 0 for empty dir", len(c.Topics()))
	}
}

func TestLoadDir_MissingDir(t *testing.T) {
	if _, err := catalog.LoadDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("LoadDir() should fail for a missing directory")
	}
}

func TestLoadDir_Invariants(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "duplicate topic id",
			yaml: `
topics:
  - {id: heart, name: "Heart", category: "Anatomy"}
  - {id: heart, name: "Heart again", category: "Anatomy"}
`,
		},
		{
			name: "question with unknown topic",
			yaml: `
topics:
  - {id: heart, name: "Heart", category: "Anatomy"}
questions:
  - {id: q1, question: "Q?", answer: "A.", topic_id: lungs, difficulty_level: Basic}
`,
		},
		{
			name: "duplicate question id",
			yaml: `
topics:
  - {id: heart, name: "Heart", category: "Anatomy"}
questions:
  - {id: q1, question: "Q?", answer: "A.", topic_id: heart, difficulty_level: Basic}
  - {id: q1, question: "Q2?", answer: "B.", topic_id: heart, difficulty_level: Basic}
`,
		},
		{
			name: "duplicate glossary term",
			yaml: `
glossary:
  - {term: "Edema", definition: "Swelling."}
  - {term: "Edema", definition: "Swelling again."}
`,
		},
		{
			name: "unknown category",
			yaml: `
categories: ["Anatomy"]
topics:
  - {id: heart, name: "Heart", category: "Cardiology"}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "catalog.yaml", tt.yaml)

			_, err := catalog.LoadDir(dir)
			if !errors.Is(err, catalog.ErrInvalidCatalog) {
				t.Fatalf("LoadDir() error = %v, want ErrInvalidCatalog", err)
			}
		})
	}
}

func TestLoadDir_SchemaViolation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"difficulty outside enumeration", `
questions:
  - id: q1
    question: "Q?"
    answer: "A."
    topic_id: heart
    difficulty_level: Expert
`},
		{"empty tag", `
questions:
  - id: q1
    question: "Q?"
    answer: "A."
    topic_id: heart
    tags: ["cardiology", ""]
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "catalog.yaml", tt.yaml)

			_, err := catalog.LoadDir(dir)
			if err == nil {
				t.Fatal("LoadDir() should reject a document that fails the schema")
			}
			if errors.Is(err, catalog.ErrInvalidCatalog) {
				t.Error("schema violations should be reported before invariant checks")
			}
		})
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in     string
		want   catalog.Difficulty
		wantOK bool
	}{
		{"", "", true},
		{"Basic", catalog.Basic, true},
		{"intermediate", catalog.Intermediate, true},
		{" ADVANCED ", catalog.Advanced, true},
		{"expert", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := catalog.ParseDifficulty(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseDifficulty(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}
