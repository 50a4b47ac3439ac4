// Package trace writes the per-bug-report run log consumed by offline analysis.
//
// Every line is "<yyyy-mm-dd hh:mm:ss,mmm> - <message>" and the message
// prefixes below are matched literally by the analyzer, so they must not change.
package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GenLoc-2025/GenLoc/internal/llm"
)

const (
	iterationPrefix = "Iteration "
	callPrefix      = "Function called: "
	responsePrefix  = "Function response for "
	usagePrefix     = "API Usage: "
)

// ToolCall is one invocation made during an iteration.
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

// ToolResponse is the value returned for one invocation.
type ToolResponse struct {
	Name    string
	Content any
}

// IterationRecord is flushed once per completed tool-calling iteration, after
// the header for the same index was written by RecordStart.
type IterationRecord struct {
	Index         int
	ToolCalls     []ToolCall
	ToolResponses []ToolResponse
}

// TerminalRecord is flushed once when a run ends with a final answer.
type TerminalRecord struct {
	Index int
	Usage llm.Usage
}

// Recorder receives iteration and terminal records for one run.
type Recorder interface {
	RecordStart(index int)
	RecordIteration(rec IterationRecord)
	RecordTerminal(rec TerminalRecord)
}

// Nop discards all records.
type Nop struct{}

func (Nop) RecordStart(int)                  {}
func (Nop) RecordIteration(IterationRecord) {}
func (Nop) RecordTerminal(TerminalRecord)   {}

// Logger writes records for a single bug report.
type Logger struct {
	mu   sync.Mutex
	zl   *zap.Logger
	path string
	sync func() error
	stop func() error
}

// Path returns the file backing this logger.
func (l *Logger) Path() string {
	return l.path
}

// RecordStart writes the iteration header. It precedes the backend call.
func (l *Logger) RecordStart(index int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl.Info(fmt.Sprintf("%s%d", iterationPrefix, index))
}

// RecordIteration writes each call and its response, interleaved in request
// order.
func (l *Logger) RecordIteration(rec IterationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(rec.ToolCalls)
	if len(rec.ToolResponses) > n {
		n = len(rec.ToolResponses)
	}
	for i := 0; i < n; i++ {
		if i < len(rec.ToolCalls) {
			c := rec.ToolCalls[i]
			l.zl.Info(fmt.Sprintf("%s%s, Arguments: %s", callPrefix, c.Name, compactJSON(c.Arguments)))
		}
		if i < len(rec.ToolResponses) {
			r := rec.ToolResponses[i]
			l.zl.Info(fmt.Sprintf("%s%s: %s", responsePrefix, r.Name, encodeContent(r.Content)))
		}
	}
}

// RecordTerminal writes the accumulated token usage.
func (l *Logger) RecordTerminal(rec TerminalRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.zl.Info(fmt.Sprintf("%sprompt_tokens=%d completion_tokens=%d total_tokens=%d",
		usagePrefix, rec.Usage.PromptTokens, rec.Usage.CompletionTokens, rec.Usage.TotalTokens))
}

// Sync flushes buffered lines to disk.
func (l *Logger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sync()
}

func compactJSON(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func encodeContent(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case json.RawMessage:
		return compactJSON(c)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
