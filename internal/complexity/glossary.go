// Package complexity scores how demanding a synthesized attack tree is to
// read: the share of glossary vocabulary in its text (language score) and
// its size on a saturating curve (syntax score).
package complexity

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

//go:embed glossary.txt
var defaultGlossary string

// Glossary is an ordered set of domain terms, each a sequence of
// normalized tokens.
type Glossary struct {
	terms [][]string
}

// NewGlossary builds a glossary from raw terms. Blank terms, terms made
// only of punctuation and repeats are dropped.
func NewGlossary(terms ...string) Glossary {
	var g Glossary
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		toks := tokens(term)
		key := strings.Join(toks, " ")
		if strings.TrimSpace(key) == "" || seen[key] {
			continue
		}
		seen[key] = true
		g.terms = append(g.terms, toks)
	}
	return g
}

// DefaultGlossary returns the built-in security glossary.
func DefaultGlossary() Glossary {
	g, _ := ReadGlossary(strings.NewReader(defaultGlossary))
	return g
}

// LoadGlossary reads a glossary file: one term per line, blank lines and
// lines starting with '#' ignored.
func LoadGlossary(path string) (Glossary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Glossary{}, fmt.Errorf("complexity: open glossary: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadGlossary(f)
}

// ReadGlossary parses glossary terms from r.
func ReadGlossary(r io.Reader) (Glossary, error) {
	var terms []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := sc.Err(); err != nil {
		return Glossary{}, fmt.Errorf("complexity: read glossary: %w", err)
	}
	return NewGlossary(terms...), nil
}

// Len is the number of terms.
func (g Glossary) Len() int { return len(g.terms) }

// Terms returns the terms as space-joined strings.
func (g Glossary) Terms() []string {
	out := make([]string, len(g.terms))
	for i, t := range g.terms {
		out[i] = strings.Join(t, " ")
	}
	return out
}

// tokens splits text on whitespace, lower-cases each token and trims
// surrounding punctuation. Tokens that are pure punctuation become "".
func tokens(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = normalize(f)
	}
	return out
}

func normalize(tok string) string {
	return strings.ToLower(strings.TrimFunc(tok, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
}
