package agent

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/GenLoc-2025/GenLoc/internal/llm"
)

// backendReply is decided once per backend call: either a batch of tool
// calls or a final ranking. There is no partial state in between.
type backendReply interface {
	isBackendReply()
}

type toolCallBatch struct {
	content string
	calls   []llm.ToolCall
}

type finalAnswer struct {
	ranking RankingResult
}

func (toolCallBatch) isBackendReply() {}
func (finalAnswer) isBackendReply()   {}

// classifyReply turns an assistant message into a backendReply. Tool calls
// get an id when the backend left it empty and "{}" for missing arguments,
// so every stored call can be answered by id.
func classifyReply(msg llm.ChatMessage) (backendReply, error) {
	if len(msg.ToolCalls) > 0 {
		calls := make([]llm.ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			calls[i] = tc
			if calls[i].ID == "" {
				calls[i].ID = "call_" + uuid.NewString()
			}
			if calls[i].Type == "" {
				calls[i].Type = "function"
			}
			if len(bytes.TrimSpace(tc.Function.Arguments)) == 0 {
				calls[i].Function.Arguments = json.RawMessage(`{}`)
			}
		}
		return toolCallBatch{content: msg.Content, calls: calls}, nil
	}
	ranking, err := ParseRanking(msg.Content)
	if err != nil {
		return nil, err
	}
	return finalAnswer{ranking: ranking}, nil
}
