package agent

import (
	"fmt"
	"strings"

	"toolbench/internal/tools"
)

// openRouterRequest is the JSON payload sent to the chat completions endpoint.
type openRouterRequest struct {
	Model         string                   `json:"model"`
	Stream        bool                     `json:"stream"`
	StreamOptions *openRouterStreamOptions `json:"stream_options,omitempty"`
	Messages      []openRouterMessage      `json:"messages"`
	Tools         []openRouterTool         `json:"tools,omitempty"`
	ToolChoice    any                      `json:"tool_choice,omitempty"`
	Temperature   *float64                 `json:"temperature,omitempty"`
	MaxTokens     int                      `json:"max_tokens,omitempty"`
}

// openRouterStreamOptions asks for a trailing usage chunk.
type openRouterStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// openRouterMessage represents a single chat message.
type openRouterMessage struct {
	Role       string               `json:"role"`
	Content    *string              `json:"content"`
	ToolCalls  []openRouterToolCall `json:"tool_calls,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
}

// openRouterTool describes a function tool.
type openRouterTool struct {
	Type     string                       `json:"type"`
	Function openRouterFunctionDefinition `json:"function"`
}

// openRouterFunctionDefinition describes a tool's function signature.
type openRouterFunctionDefinition struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Parameters  tools.Schema `json:"parameters"`
}

// openRouterToolCall represents a tool call in an assistant message.
type openRouterToolCall struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Function openRouterFunctionCall `json:"function"`
}

// openRouterFunctionCall describes the name and arguments of a tool call.
type openRouterFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openRouterNamedToolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// buildOpenRouterMessages converts a prompt into chat message payloads.
func buildOpenRouterMessages(prompt Prompt) ([]openRouterMessage, error) {
	messages := make([]openRouterMessage, 0, len(prompt.InputItems)+1)
	if strings.TrimSpace(prompt.Instructions) != "" {
		messages = append(messages, openRouterMessage{
			Role:    "system",
			Content: stringPointer(prompt.Instructions),
		})
	}
	for _, item := range prompt.InputItems {
		msg, err := toOpenRouterMessage(item)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// toOpenRouterMessage converts a history item into a chat message.
func toOpenRouterMessage(item HistoryItem) (openRouterMessage, error) {
	switch content := item.Content.(type) {
	case HistoryText:
		return openRouterMessage{Role: item.Role, Content: stringPointer(content.Text)}, nil
	case AssistantTurn:
		msg := openRouterMessage{Role: RoleAssistant}
		if content.Text != "" || len(content.ToolCalls) == 0 {
			msg.Content = stringPointer(content.Text)
		}
		for _, call := range content.ToolCalls {
			if call.ID == "" {
				return openRouterMessage{}, fmt.Errorf("tool call id is required")
			}
			arguments := call.Arguments
			if strings.TrimSpace(arguments) == "" {
				arguments = "{}"
			}
			msg.ToolCalls = append(msg.ToolCalls, openRouterToolCall{
				ID:   call.ID,
				Type: "function",
				Function: openRouterFunctionCall{
					Name:      call.Name,
					Arguments: arguments,
				},
			})
		}
		return msg, nil
	case ToolOutput:
		if content.ToolCallID == "" {
			return openRouterMessage{}, fmt.Errorf("tool call id is required")
		}
		return openRouterMessage{
			Role:       RoleTool,
			Content:    stringPointer(content.Result.Output),
			ToolCallID: content.ToolCallID,
		}, nil
	default:
		return openRouterMessage{}, fmt.Errorf("unsupported history content type %T", item.Content)
	}
}

// buildOpenRouterTools converts tool definitions into function tool payloads.
func buildOpenRouterTools(defs []tools.Definition) []openRouterTool {
	out := make([]openRouterTool, 0, len(defs))
	for _, def := range defs {
		params := def.Parameters
		if params.Type == "" {
			params = tools.ObjectSchema(nil)
		}
		out = append(out, openRouterTool{
			Type: "function",
			Function: openRouterFunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// buildToolChoice renders a ToolChoice in chat completions form.
func buildToolChoice(choice ToolChoice) any {
	if choice.Function != "" {
		named := openRouterNamedToolChoice{Type: "function"}
		named.Function.Name = choice.Function
		return named
	}
	if choice.Mode == "" {
		return "auto"
	}
	return choice.Mode
}

func stringPointer(value string) *string {
	return &value
}
