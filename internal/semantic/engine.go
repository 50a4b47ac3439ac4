package semantic

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Document is one rankable unit, typically a source file.
type Document struct {
	Path string
	Text string
}

// Corpus supplies the documents to rank.
type Corpus interface {
	Documents() []Document
}

// Engine ranks documents by token overlap with a free-text query.
type Engine struct {
	corpus       Corpus
	maxFileBytes int
}

// Result captures a ranking hit.
type Result struct {
	Path    string
	Score   float64
	Snippet string
}

// NewEngine constructs an engine over the provided corpus.
func NewEngine(c Corpus, maxFileBytes int) *Engine {
	if maxFileBytes <= 0 {
		maxFileBytes = 64 * 1024
	}
	return &Engine{corpus: c, maxFileBytes: maxFileBytes}
}

// Search returns the top-k documents ranked by overlap with the query.
// Path tokens weigh as much as body tokens, so a file named after a term in
// the query ranks above one that merely mentions it.
func (e *Engine) Search(query string, limit int) ([]Result, error) {
	if e == nil || e.corpus == nil {
		return nil, fmt.Errorf("semantic engine unavailable")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if limit <= 0 {
		limit = 5
	}

	qTokens := Tokenize(query)
	if len(qTokens) == 0 {
		return nil, fmt.Errorf("query too short")
	}

	docs := e.corpus.Documents()
	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		content := d.Text
		if len(content) > e.maxFileBytes {
			content = content[:e.maxFileBytes]
		}
		score := overlapScore(qTokens, Tokenize(content)) + overlapScore(qTokens, Tokenize(d.Path))
		if score <= 0 {
			continue
		}
		results = append(results, Result{Path: d.Path, Score: score, Snippet: summarize(content)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Path < results[j].Path
		}
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func overlapScore(query, doc []string) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(doc))
	for _, t := range doc {
		seen[t] = struct{}{}
	}
	var overlap int
	for _, q := range query {
		if _, ok := seen[q]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(query))
}

var tokenRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "when": {}, "this": {}, "that": {},
	"from": {}, "not": {}, "are": {}, "was": {}, "but": {}, "java": {}, "src": {}, "main": {},
}

// Tokenize lowercases s and splits it into distinct identifier fragments.
// camelCase and snake_case words are split so "PersonDao" matches "person".
func Tokenize(s string) []string {
	words := tokenRe.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	add := func(t string) {
		t = strings.ToLower(t)
		if len(t) < 3 {
			return
		}
		if _, stop := stopwords[t]; stop {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, w := range words {
		add(w)
		for _, part := range splitIdentifier(w) {
			add(part)
		}
	}
	return out
}

func splitIdentifier(w string) []string {
	var parts []string
	var cur []rune
	runes := []rune(w)
	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '_':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0:
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	if len(parts) == 1 {
		return nil
	}
	return parts
}

func summarize(content string) string {
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		trim := strings.TrimSpace(line)
		if trim == "" {
			continue
		}
		if len(trim) > 200 {
			return trim[:200] + "..."
		}
		return trim
	}
	if len(content) > 200 {
		return content[:200] + "..."
	}
	return content
}
