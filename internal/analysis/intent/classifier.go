package intent

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Family names a group of phrases that signal one kind of request.
type Family string

const (
	// AboutProblem covers questions about the statement, inputs, outputs and terminology.
	AboutProblem Family = "about_problem"
	// SyntaxSolution covers requests for code, syntax, algorithms or how to write something.
	SyntaxSolution Family = "syntax_solution"
)

//go:embed phrases.yaml
var defaultTable []byte

// Table is the immutable phrase configuration.
type Table struct {
	Families map[Family][]string `yaml:"families"`
	Refusal  string              `yaml:"refusal"`
}

// Decision is the outcome of classifying one prompt.
type Decision struct {
	AboutProblem   bool
	SyntaxSolution bool
}

// Refuse reports whether the prompt must be answered with the canned refusal:
// it asks for syntax or a solution and does not ask about the problem itself.
func (d Decision) Refuse() bool {
	return d.SyntaxSolution && !d.AboutProblem
}

// Classifier matches prompts against the phrase families.
type Classifier struct {
	families map[Family][]string
	refusal  string
}

// ParseTable decodes a phrase table document.
func ParseTable(data []byte) (Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return Table{}, fmt.Errorf("decode phrase table: %w", err)
	}
	for _, family := range []Family{AboutProblem, SyntaxSolution} {
		if len(table.Families[family]) == 0 {
			return Table{}, fmt.Errorf("phrase table has no %s phrases", family)
		}
	}
	if strings.TrimSpace(table.Refusal) == "" {
		return Table{}, fmt.Errorf("phrase table has no refusal text")
	}
	return table, nil
}

// NewClassifier builds a classifier from table, normalising every phrase the
// same way prompts are normalised.
func NewClassifier(table Table) *Classifier {
	families := make(map[Family][]string, len(table.Families))
	for family, phrases := range table.Families {
		normalized := make([]string, 0, len(phrases))
		for _, phrase := range phrases {
			if p := normalize(phrase); p != "" {
				normalized = append(normalized, p)
			}
		}
		families[family] = normalized
	}
	return &Classifier{families: families, refusal: table.Refusal}
}

var (
	defaultOnce       sync.Once
	defaultClassifier *Classifier
)

// Default returns the classifier built from the embedded phrase table.
func Default() *Classifier {
	defaultOnce.Do(func() {
		table, err := ParseTable(defaultTable)
		if err != nil {
			panic(err)
		}
		defaultClassifier = NewClassifier(table)
	})
	return defaultClassifier
}

// Classify reports which families prompt matches.
func (c *Classifier) Classify(prompt string) Decision {
	text := normalize(prompt)
	if text == "" {
		return Decision{}
	}
	return Decision{
		AboutProblem:   c.matches(AboutProblem, text),
		SyntaxSolution: c.matches(SyntaxSolution, text),
	}
}

// Refusal is the fixed reply for refused prompts.
func (c *Classifier) Refusal() string {
	return c.refusal
}

func (c *Classifier) matches(family Family, text string) bool {
	for _, phrase := range c.families[family] {
		if containsWord(text, phrase) {
			return true
		}
	}
	return false
}

// containsWord reports whether phrase occurs in text starting at a word
// boundary, so "de bai" does not match inside "code bai".
func containsWord(text, phrase string) bool {
	for offset := 0; offset <= len(text); {
		idx := strings.Index(text[offset:], phrase)
		if idx < 0 {
			return false
		}
		start := offset + idx
		if start == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

// normalize composes Vietnamese diacritics (NFC) so decomposed input still
// matches, then lowercases.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(text)))
}
