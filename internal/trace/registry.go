package trace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"

	"github.com/GenLoc-2025/GenLoc/internal/logging"
)

// Registry hands out one Logger per (project, bug id), creating directories
// and files lazily. It is safe for concurrent use by many runs.
type Registry struct {
	dir     string
	mu      sync.Mutex
	loggers map[string]*Logger
}

// NewRegistry roots trace files under dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, loggers: make(map[string]*Logger)}
}

// For returns the logger for a bug report, writing to
// <dir>/<project>/bug_<bugID>_log.txt in append mode.
func (r *Registry) For(project, bugID string) (*Logger, error) {
	project = sanitize(project)
	bugID = sanitize(bugID)
	if project == "" || bugID == "" {
		return nil, errors.New("trace: project and bug id are required")
	}
	key := project + "\x00" + bugID

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loggers[key]; ok {
		return l, nil
	}

	projectDir := filepath.Join(r.dir, project)
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return nil, fmt.Errorf("trace: create project dir: %w", err)
	}
	path := filepath.Join(projectDir, fmt.Sprintf("bug_%s_log.txt", bugID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("trace: open log file: %w", err)
	}

	ws := zapcore.Lock(f)
	l := &Logger{
		zl:   logging.NewTraceLogger(ws),
		path: path,
		sync: ws.Sync,
		stop: f.Close,
	}
	r.loggers[key] = l
	return l, nil
}

// Close flushes and closes every file opened by the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, l := range r.loggers {
		l.mu.Lock()
		if err := l.sync(); err != nil {
			errs = append(errs, err)
		}
		if err := l.stop(); err != nil {
			errs = append(errs, err)
		}
		l.mu.Unlock()
		delete(r.loggers, key)
	}
	return errors.Join(errs...)
}

// sanitize keeps path components from escaping the trace directory.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	return s
}
