package agent

import (
	"strings"

	"toolbench/internal/tools"
)

// Roles used in history items.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolChoice controls whether and which tool the model must call.
type ToolChoice struct {
	// Mode is "auto", "required" or "none". Empty means auto.
	Mode string
	// Function forces a call to the named tool when set.
	Function string
}

// AutoToolChoice lets the model decide.
func AutoToolChoice() ToolChoice {
	return ToolChoice{Mode: "auto"}
}

// ForceTool requires a call to the named tool.
func ForceTool(name string) ToolChoice {
	return ToolChoice{Function: name}
}

// Prompt is the fully assembled request sent to a provider. A nil
// Temperature leaves the provider default in place.
type Prompt struct {
	Instructions    string
	InputItems      []HistoryItem
	Tools           []tools.Definition
	ToolChoice      ToolChoice
	Temperature     *float64
	MaxOutputTokens int
}

// BuildPrompt assembles a prompt from a system prompt, history and tools.
func BuildPrompt(instructions string, history []HistoryItem, defs []tools.Definition) Prompt {
	prompt := Prompt{
		Instructions: strings.TrimSpace(instructions),
		InputItems:   append([]HistoryItem(nil), history...),
		Tools:        defs,
	}
	if len(defs) > 0 {
		prompt.ToolChoice = AutoToolChoice()
	}
	return prompt
}
