package agent

import (
	"context"
	"encoding/json"

	"github.com/GenLoc-2025/GenLoc/internal/llm"
	"github.com/GenLoc-2025/GenLoc/internal/trace"
)

// Dispatcher executes a tool call and returns a JSON-serializable result.
// Failures are reported inside the result, never as an error.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args json.RawMessage) any
}

// Request is a single localization run.
type Request struct {
	Report BugReport
	// Model is a logical model name; empty selects the configured default.
	Model string
	Tools Dispatcher
	// Trace receives iteration records; nil discards them.
	Trace trace.Recorder
}

// Response is the outcome of a successful run.
type Response struct {
	RunID   string
	Ranking RankingResult
	// Iterations counts backend calls, the final one included.
	Iterations   int
	Usage        llm.Usage
	Model        string
	Conversation []llm.ChatMessage
}
