// Package anthropic adapts the Claude Messages API to llm.Provider.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/GenLoc-2025/GenLoc/internal/llm"
)

const defaultMaxTokens = 4096

// MessagesClient is the subset of the SDK used here. *sdk.MessageService satisfies it.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Provider implements llm.Provider over the Messages API.
type Provider struct {
	name      string
	msg       MessagesClient
	maxTokens int
}

// NewProvider constructs a Provider using the SDK's HTTP client.
func NewProvider(name, baseURL, apiKey string, timeout time.Duration, maxTokens int) *Provider {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := sdk.NewClient(opts...)
	return New(name, &client.Messages, maxTokens)
}

// New wraps an existing messages client.
func New(name string, msg MessagesClient, maxTokens int) *Provider {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Provider{name: name, msg: msg, maxTokens: maxTokens}
}

// Name returns provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Chat issues a non-streaming Messages.New request.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if req.Model == "" {
		return llm.ChatResponse{}, errors.New("anthropic: model is required")
	}
	if len(req.Messages) == 0 {
		return llm.ChatResponse{}, errors.New("anthropic: messages are required")
	}

	msgs, system, err := encodeMessages(req.Messages)
	if err != nil {
		return llm.ChatResponse{}, err
	}
	if req.ResponseSchema != nil {
		system = append(system, sdk.TextBlockParam{Text: schemaInstruction(req.ResponseSchema)})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(req.Model),
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return llm.ChatResponse{}, err
		}
		params.Tools = tools
		params.ToolChoice = encodeToolChoice(req.ToolChoice)
	}

	msg, err := p.msg.New(ctx, params)
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateResponse(msg, p.name, req.Model)
}

func schemaInstruction(rs *llm.ResponseSchema) string {
	return fmt.Sprintf("When you give your final answer, reply with only a JSON document named %q matching this JSON Schema, without any surrounding text:\n%s",
		rs.Name, string(rs.Schema))
}

// encodeMessages splits out system text and folds consecutive tool replies
// into a single user turn, as the Messages API requires.
func encodeMessages(msgs []llm.ChatMessage) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	var system []sdk.TextBlockParam
	var pendingResults []sdk.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			conversation = append(conversation, sdk.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			if m.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Content})
			}
		case llm.RoleTool:
			if m.ToolCallID == "" {
				return nil, nil, fmt.Errorf("anthropic: tool message for %q has no call id", m.Name)
			}
			pendingResults = append(pendingResults, sdk.NewToolResultBlock(m.ToolCallID, m.Content, false))
		case llm.RoleUser:
			flush()
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case llm.RoleAssistant:
			flush()
			blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				input := tc.Function.Arguments
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, nil, fmt.Errorf("anthropic: unsupported role %q", m.Role)
		}
	}
	flush()
	return conversation, system, nil
}

func encodeTools(defs []llm.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		var schema map[string]any
		if len(def.Parameters) > 0 {
			if err := json.Unmarshal(def.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("anthropic: tool %q schema: %w", def.Name, err)
			}
		}
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schema}, def.Name)
		if u.OfTool != nil && def.Description != "" {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func encodeToolChoice(choice llm.ToolChoice) sdk.ToolChoiceUnionParam {
	switch choice {
	case llm.ToolChoiceRequired:
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	case llm.ToolChoiceNone:
		none := sdk.NewToolChoiceNoneParam()
		return sdk.ToolChoiceUnionParam{OfNone: &none}
	default:
		return sdk.ToolChoiceUnionParam{}
	}
}

func translateResponse(msg *sdk.Message, providerName, model string) (llm.ChatResponse, error) {
	if msg == nil {
		return llm.ChatResponse{}, errors.New("anthropic: response message is nil")
	}
	var text []string
	var calls []llm.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				text = append(text, block.Text)
			}
		case "tool_use":
			args := json.RawMessage(block.Input)
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			calls = append(calls, llm.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: llm.ToolFunctionCall{
					Name:      block.Name,
					Arguments: args,
				},
			})
		}
	}

	finish := "stop"
	switch msg.StopReason {
	case sdk.StopReasonToolUse:
		finish = "tool_calls"
	case sdk.StopReasonMaxTokens:
		finish = "length"
	}

	return llm.ChatResponse{
		Message: llm.ChatMessage{
			Role:      llm.RoleAssistant,
			Content:   strings.Join(text, ""),
			ToolCalls: calls,
		},
		FinishReason: finish,
		Usage: llm.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		ProviderName: providerName,
		Model:        model,
	}, nil
}
