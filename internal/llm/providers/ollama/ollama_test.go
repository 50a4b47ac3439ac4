package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GenLoc-2025/GenLoc/internal/llm"
)

var searchTool = llm.ToolDefinition{
	Name:        "search_file",
	Description: "find a file",
	Parameters:  json.RawMessage(`{"type":"object","properties":{"filename":{"type":"string"}}}`),
}

func TestChat(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "http://mock", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/chat", r.URL.Path)
			return okResponse(`{"message":{"role":"assistant","content":"pong"},"done_reason":"stop","prompt_eval_count":3,"eval_count":1}`), nil
		}),
	}

	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Model: "llama3",
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: "ping"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "pong", resp.Message.Content)
	require.Equal(t, "stop", resp.FinishReason)
	require.Equal(t, 4, resp.Usage.TotalTokens)
}

func TestChatToolCallsGetIDs(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "http://mock", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			var body map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Contains(t, body, "tools")
			require.NotContains(t, body, "format")
			return okResponse(`{"message":{"role":"assistant","content":"","tool_calls":[
				{"function":{"name":"search_file","arguments":{"filename":"Person.java"}}},
				{"function":{"name":"get_candidate_filenames","arguments":{}}}
			]}}`), nil
		}),
	}

	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Model:          "llama3",
		Messages:       []llm.ChatMessage{llm.UserMessage("bug")},
		Tools:          []llm.ToolDefinition{searchTool},
		ToolChoice:     llm.ToolChoiceRequired,
		ResponseSchema: &llm.ResponseSchema{Name: "out", Schema: json.RawMessage(`{"type":"object"}`)},
	})
	require.NoError(t, err)
	require.Equal(t, "tool_calls", resp.FinishReason)
	require.Len(t, resp.Message.ToolCalls, 2)
	require.NotEqual(t, resp.Message.ToolCalls[0].ID, resp.Message.ToolCalls[1].ID)
	require.True(t, strings.HasPrefix(resp.Message.ToolCalls[0].ID, "call_"))
	require.JSONEq(t, `{"filename":"Person.java"}`, string(resp.Message.ToolCalls[0].Function.Arguments))
}

func TestChatNonePolicyWithholdsTools(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "http://mock", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			var body struct {
				Tools    []json.RawMessage `json:"tools"`
				Format   json.RawMessage   `json:"format"`
				Messages []struct {
					Role      string `json:"role"`
					ToolName  string `json:"tool_name"`
					ToolCalls []struct {
						Function struct {
							Name string `json:"name"`
						} `json:"function"`
					} `json:"tool_calls"`
				} `json:"messages"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Empty(t, body.Tools)
			require.JSONEq(t, `{"type":"object"}`, string(body.Format))
			require.Equal(t, "search_file", body.Messages[1].ToolCalls[0].Function.Name)
			require.Equal(t, "search_file", body.Messages[2].ToolName)
			return okResponse(`{"message":{"role":"assistant","content":"{}"}}`), nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{
		Model: "llama3",
		Messages: []llm.ChatMessage{
			llm.UserMessage("bug"),
			llm.AssistantMessage("", []llm.ToolCall{{ID: "c1", Function: llm.ToolFunctionCall{Name: "search_file"}}}),
			llm.ToolMessage("c1", "search_file", `{"files":[]}`),
		},
		Tools:          []llm.ToolDefinition{searchTool},
		ToolChoice:     llm.ToolChoiceNone,
		ResponseSchema: &llm.ResponseSchema{Name: "out", Schema: json.RawMessage(`{"type":"object"}`)},
	})
	require.NoError(t, err)
}

func TestChatStatusError(t *testing.T) {
	t.Parallel()

	p := NewProvider("ollama", "http://mock", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader("boom")),
			}, nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{Model: "llama3"})
	require.ErrorContains(t, err, "status 500")
}

func okResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
