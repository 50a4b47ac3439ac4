package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/GenLoc-2025/GenLoc/internal/llm"
)

// Provider is a test double implementing llm.Provider.
type Provider struct {
	NameValue string
	ChatFn    func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if p.ChatFn != nil {
		return p.ChatFn(ctx, req)
	}
	return llm.ChatResponse{
		Message: llm.ChatMessage{
			Role:    llm.RoleAssistant,
			Content: "mock",
		},
	}, nil
}

// Script replays a fixed sequence of replies and records every request it sees.
type Script struct {
	mu       sync.Mutex
	replies  []llm.ChatResponse
	requests []llm.ChatRequest
}

// NewScript returns a provider answering with replies in order.
func NewScript(replies ...llm.ChatResponse) *Script {
	return &Script{replies: replies}
}

func (s *Script) Name() string { return "script" }

func (s *Script) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.Messages = llm.CloneMessages(req.Messages)
	s.requests = append(s.requests, req)
	idx := len(s.requests) - 1
	if idx >= len(s.replies) {
		return llm.ChatResponse{}, fmt.Errorf("script exhausted after %d replies", len(s.replies))
	}
	return s.replies[idx], nil
}

// Requests returns the requests received so far.
func (s *Script) Requests() []llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.ChatRequest(nil), s.requests...)
}

// ToolCallReply builds an assistant reply requesting the given calls.
func ToolCallReply(calls ...llm.ToolCall) llm.ChatResponse {
	return llm.ChatResponse{
		Message:      llm.AssistantMessage("", calls),
		FinishReason: "tool_calls",
	}
}

// ContentReply builds a terminal assistant reply.
func ContentReply(content string, usage llm.Usage) llm.ChatResponse {
	return llm.ChatResponse{
		Message:      llm.AssistantMessage(content, nil),
		FinishReason: "stop",
		Usage:        usage,
	}
}

// Call builds a function tool call.
func Call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:   id,
		Type: "function",
		Function: llm.ToolFunctionCall{
			Name:      name,
			Arguments: []byte(args),
		},
	}
}
