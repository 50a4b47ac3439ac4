package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneMessagesIsDeep(t *testing.T) {
	in := []ChatMessage{AssistantMessage("", []ToolCall{{
		ID:       "c1",
		Function: ToolFunctionCall{Name: "search_file", Arguments: json.RawMessage(`{"filename":"A.java"}`)},
	}})}

	out := CloneMessages(in)
	out[0].ToolCalls[0].ID = "changed"
	out[0].ToolCalls[0].Function.Arguments[2] = 'X'

	require.Equal(t, "c1", in[0].ToolCalls[0].ID)
	require.JSONEq(t, `{"filename":"A.java"}`, string(in[0].ToolCalls[0].Function.Arguments))
	require.Nil(t, CloneMessages(nil))
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}.Add(Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30})
	require.Equal(t, Usage{PromptTokens: 11, CompletionTokens: 22, TotalTokens: 33}, u)
}
