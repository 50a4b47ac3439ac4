package codebase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GenLoc-2025/GenLoc/internal/tools"
)

// View answers tool lookups for one bug report. Candidate ranking uses the
// report text; every other lookup depends only on the index.
type View struct {
	idx   *Index
	query string

	once       sync.Once
	candidates []string
}

var _ tools.CodebaseService = (*View)(nil)

// ForReport binds the index to the text of a bug report.
func (idx *Index) ForReport(text string) *View {
	return &View{idx: idx, query: text}
}

// SearchFile finds files by an inferred or guessed name.
func (v *View) SearchFile(ctx context.Context, filename string) (tools.FileMatches, error) {
	if err := ctx.Err(); err != nil {
		return tools.FileMatches{}, err
	}
	if strings.TrimSpace(filename) == "" {
		return tools.FileMatches{}, fmt.Errorf("filename is required")
	}
	files := v.idx.findFiles(filename)
	if len(files) == 0 {
		return tools.FileMatches{
			Files:   []string{},
			Message: fmt.Sprintf("No file matching %q exists in the codebase.", filename),
		}, nil
	}
	return tools.FileMatches{Files: files}, nil
}

// SearchMethod lists files that declare a method with the given name.
func (v *View) SearchMethod(ctx context.Context, methodName string) (tools.FileMatches, error) {
	if err := ctx.Err(); err != nil {
		return tools.FileMatches{}, err
	}
	name := strings.TrimSpace(methodName)
	if i := strings.Index(name, "("); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if i := strings.LastIndexAny(name, ".#"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return tools.FileMatches{}, fmt.Errorf("method_name is required")
	}
	files := v.idx.byMethod[name]
	if len(files) == 0 {
		return tools.FileMatches{
			Files:   []string{},
			Message: fmt.Sprintf("No method named %q exists in the codebase.", name),
		}, nil
	}
	return tools.FileMatches{Files: append([]string(nil), files...)}, nil
}

// CandidateFilenames returns up to the configured limit of files ranked by
// overlap with the bug report. Without usable report text it falls back to
// index order.
func (v *View) CandidateFilenames(ctx context.Context) (tools.FileMatches, error) {
	if err := ctx.Err(); err != nil {
		return tools.FileMatches{}, err
	}
	v.once.Do(v.rankCandidates)
	return tools.FileMatches{Files: append([]string{}, v.candidates...)}, nil
}

func (v *View) rankCandidates() {
	limit := v.idx.candidateLimit
	results, err := v.idx.engine.Search(v.query, limit)
	if err != nil {
		v.idx.logger.Debug("candidate ranking unavailable", zap.Error(err))
	}
	seen := make(map[string]struct{}, limit)
	for _, r := range results {
		seen[r.Path] = struct{}{}
		v.candidates = append(v.candidates, r.Path)
	}
	for _, e := range v.idx.files {
		if len(v.candidates) >= limit {
			break
		}
		if _, ok := seen[e.path]; ok {
			continue
		}
		v.candidates = append(v.candidates, e.path)
	}
}

// MethodSignatures lists the methods declared in a file.
func (v *View) MethodSignatures(ctx context.Context, filename string) (tools.MethodSignatures, error) {
	if err := ctx.Err(); err != nil {
		return tools.MethodSignatures{}, err
	}
	entry, err := v.idx.resolveFile(filename)
	if err != nil {
		return tools.MethodSignatures{}, err
	}
	sigs := make([]string, 0, len(entry.methods))
	for _, m := range entry.methods {
		sigs = append(sigs, m.Signature)
	}
	return tools.MethodSignatures{File: entry.path, Signatures: sigs}, nil
}

// MethodBody returns the source of a method. The signature is matched
// exactly, then with normalised spacing, then by method name alone. A name
// shared by several overloads is rejected with the candidate signatures.
func (v *View) MethodBody(ctx context.Context, filename, signature string) (tools.MethodBody, error) {
	if err := ctx.Err(); err != nil {
		return tools.MethodBody{}, err
	}
	entry, err := v.idx.resolveFile(filename)
	if err != nil {
		return tools.MethodBody{}, err
	}
	m, err := matchMethod(entry.methods, signature)
	if err != nil {
		return tools.MethodBody{}, fmt.Errorf("%w in %s", err, entry.path)
	}
	return tools.MethodBody{File: entry.path, Signature: m.Signature, Body: m.Body}, nil
}

func matchMethod(methods []Method, signature string) (Method, error) {
	for _, m := range methods {
		if m.Signature == signature {
			return m, nil
		}
	}
	norm := normalizeSpace(signature)
	for _, m := range methods {
		if m.Signature == norm {
			return m, nil
		}
	}
	name := methodName(norm)
	var overloads []Method
	if name != "" {
		for _, m := range methods {
			if m.Name == name {
				overloads = append(overloads, m)
			}
		}
	}
	switch len(overloads) {
	case 0:
		return Method{}, fmt.Errorf("method %q not found", signature)
	case 1:
		return overloads[0], nil
	default:
		sigs := make([]string, len(overloads))
		for i, m := range overloads {
			sigs[i] = m.Signature
		}
		return Method{}, fmt.Errorf("method %q is ambiguous, use one of: %s", signature, strings.Join(sigs, "; "))
	}
}

// methodName extracts the identifier right before the parameter list.
func methodName(signature string) string {
	s := signature
	if i := strings.Index(s, "("); i >= 0 {
		s = s[:i]
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	name := fields[len(fields)-1]
	if i := strings.LastIndexAny(name, ".#"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
