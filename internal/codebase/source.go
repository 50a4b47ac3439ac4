package codebase

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var errFileLimit = errors.New("file limit reached")

// SourceTree gives read-only access to a project checkout.
type SourceTree struct {
	guard      *PathGuard
	extensions map[string]struct{}
}

// NewSourceTree opens root for reading files with the given extensions.
// An empty extension list accepts every file.
func NewSourceTree(root string, extensions []string) (*SourceTree, error) {
	guard, err := NewPathGuard(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(guard.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", guard.BaseDir)
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &SourceTree{guard: guard, extensions: exts}, nil
}

// Root returns the absolute base directory.
func (s *SourceTree) Root() string {
	return s.guard.BaseDir
}

// ReadFile returns the raw bytes of a file relative to the root.
func (s *SourceTree) ReadFile(rel string) ([]byte, error) {
	resolved, err := s.guard.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(resolved)
}

// WalkFiles visits matching regular files in lexical order, passing
// slash-separated paths relative to the root. maxFiles <= 0 means no limit.
func (s *SourceTree) WalkFiles(maxFiles int, fn func(rel string, info fs.DirEntry) error) error {
	if fn == nil {
		return fmt.Errorf("fn is required")
	}
	count := 0
	err := filepath.WalkDir(s.guard.BaseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.guard.BaseDir && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !s.accepts(d.Name()) {
			return nil
		}
		if maxFiles > 0 && count >= maxFiles {
			return errFileLimit
		}
		rel, err := filepath.Rel(s.guard.BaseDir, path)
		if err != nil {
			return err
		}
		count++
		return fn(filepath.ToSlash(rel), d)
	})
	if errors.Is(err, errFileLimit) {
		return nil
	}
	return err
}

func (s *SourceTree) accepts(name string) bool {
	if len(s.extensions) == 0 {
		return true
	}
	_, ok := s.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func skipDir(name string) bool {
	switch strings.ToLower(name) {
	case ".git", ".svn", ".hg", ".idea", ".vscode", "node_modules", "target", "build", ".gradle", ".cache":
		return true
	default:
		return false
	}
}
