package codebase

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GenLoc-2025/GenLoc/internal/logging"
	"github.com/GenLoc-2025/GenLoc/internal/semantic"
)

// Options controls index construction.
type Options struct {
	Root           string
	Extensions     []string
	MaxFiles       int
	MaxFileBytes   int
	Workers        int
	CandidateLimit int
	Logger         *zap.Logger
}

type fileEntry struct {
	path    string
	text    string
	methods []Method
}

// Index is an immutable in-memory view of a Java source tree.
type Index struct {
	files          []*fileEntry
	byPath         map[string]*fileEntry
	byMethod       map[string][]string
	candidateLimit int
	engine         *semantic.Engine
	logger         *zap.Logger
}

// Build walks the source tree and parses every accepted file concurrently.
// Files that fail to parse stay searchable by name but expose no methods.
func Build(ctx context.Context, opts Options) (*Index, error) {
	logger := logging.OrNop(opts.Logger)
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = 50
	}

	tree, err := NewSourceTree(opts.Root, opts.Extensions)
	if err != nil {
		return nil, err
	}

	var paths []string
	if err := tree.WalkFiles(opts.MaxFiles, func(rel string, _ fs.DirEntry) error {
		paths = append(paths, rel)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("walk source tree: %w", err)
	}
	sort.Strings(paths)

	entries := make([]*fileEntry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries[i] = loadFile(gctx, tree, rel, opts.MaxFileBytes, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("index source tree: %w", err)
	}

	idx := newIndex(entries, opts.CandidateLimit, opts.MaxFileBytes, logger)
	logger.Info("codebase indexed",
		zap.String("root", tree.Root()),
		zap.Int("files", len(idx.files)),
		zap.Int("methods", idx.methodCount()),
	)
	return idx, nil
}

func loadFile(ctx context.Context, tree *SourceTree, rel string, maxBytes int, logger *zap.Logger) *fileEntry {
	entry := &fileEntry{path: rel}
	data, err := tree.ReadFile(rel)
	if err != nil {
		logger.Debug("skip unreadable file", zap.String("file", rel), zap.Error(err))
		return entry
	}
	entry.text = string(data)
	if maxBytes > 0 && len(data) > maxBytes {
		logger.Debug("skip parsing oversized file", zap.String("file", rel), zap.Int("bytes", len(data)))
		return entry
	}
	if strings.EqualFold(path.Ext(rel), ".java") {
		methods, err := parseJava(ctx, data)
		if err != nil {
			logger.Debug("parse failed", zap.String("file", rel), zap.Error(err))
			return entry
		}
		entry.methods = methods
	}
	return entry
}

func newIndex(entries []*fileEntry, candidateLimit, maxFileBytes int, logger *zap.Logger) *Index {
	idx := &Index{
		files:          entries,
		byPath:         make(map[string]*fileEntry, len(entries)),
		byMethod:       make(map[string][]string),
		candidateLimit: candidateLimit,
		logger:         logger,
	}
	for _, e := range entries {
		idx.byPath[e.path] = e
		seen := make(map[string]struct{})
		for _, m := range e.methods {
			if _, dup := seen[m.Name]; dup {
				continue
			}
			seen[m.Name] = struct{}{}
			idx.byMethod[m.Name] = append(idx.byMethod[m.Name], e.path)
		}
	}
	idx.engine = semantic.NewEngine(idx, maxFileBytes)
	return idx
}

// Documents exposes file paths and contents for ranking.
func (idx *Index) Documents() []semantic.Document {
	out := make([]semantic.Document, 0, len(idx.files))
	for _, e := range idx.files {
		out = append(out, semantic.Document{Path: e.path, Text: e.text})
	}
	return out
}

// Files lists every indexed path in lexical order.
func (idx *Index) Files() []string {
	out := make([]string, 0, len(idx.files))
	for _, e := range idx.files {
		out = append(out, e.path)
	}
	return out
}

func (idx *Index) methodCount() int {
	n := 0
	for _, e := range idx.files {
		n += len(e.methods)
	}
	return n
}

// findFiles matches a path suffix when the name has directories, otherwise
// the base name. Both compare case-insensitively; a name without extension
// matches the file stem.
func (idx *Index) findFiles(name string) []string {
	name = strings.Trim(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"), "/")
	if name == "" {
		return nil
	}
	if _, ok := idx.byPath[name]; ok {
		return []string{name}
	}

	var matches []string
	if strings.Contains(name, "/") {
		for _, e := range idx.files {
			if hasSuffixFold(e.path, name) {
				matches = append(matches, e.path)
			}
		}
		if len(matches) > 0 {
			return matches
		}
	}

	base := path.Base(name)
	ext := path.Ext(base)
	for _, e := range idx.files {
		fileBase := path.Base(e.path)
		if strings.EqualFold(fileBase, base) ||
			(ext == "" && strings.EqualFold(strings.TrimSuffix(fileBase, path.Ext(fileBase)), base)) {
			matches = append(matches, e.path)
		}
	}
	if len(matches) > 0 || strings.Count(base, ".") < 2 {
		return matches
	}

	// dotted qualified names such as org.example.Person.java
	slashed := strings.ReplaceAll(strings.TrimSuffix(base, ext), ".", "/") + ext
	for _, e := range idx.files {
		if hasSuffixFold(e.path, slashed) {
			matches = append(matches, e.path)
		}
	}
	return matches
}

// resolveFile maps a model-supplied file name to exactly one indexed file.
func (idx *Index) resolveFile(name string) (*fileEntry, error) {
	matches := idx.findFiles(name)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("file %q not found in the codebase", name)
	case 1:
		return idx.byPath[matches[0]], nil
	default:
		return nil, fmt.Errorf("file name %q is ambiguous, use one of: %s", name, strings.Join(matches, ", "))
	}
}

func hasSuffixFold(s, suffix string) bool {
	if len(suffix) > len(s) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	if !strings.EqualFold(tail, suffix) {
		return false
	}
	return len(s) == len(suffix) || s[len(s)-len(suffix)-1] == '/'
}
