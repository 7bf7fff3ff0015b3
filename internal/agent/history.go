package agent

// HistoryItem captures a single turn item with a role and typed content.
type HistoryItem struct {
	Role    string
	Content HistoryContent
}

// HistoryContent represents a single typed content item in a turn.
type HistoryContent interface {
	historyContent()
}

// HistoryText holds plain text content for a history item.
type HistoryText struct {
	Text string
}

// AssistantTurn holds one model step: its text and any tool calls requested
// in the same step.
type AssistantTurn struct {
	Text      string
	ToolCalls []ToolCall
}

// historyContent marks HistoryText as HistoryContent.
func (HistoryText) historyContent() {}

// historyContent marks AssistantTurn as HistoryContent.
func (AssistantTurn) historyContent() {}

// historyContent marks ToolOutput as HistoryContent.
func (ToolOutput) historyContent() {}

// UserText returns a user history item.
func UserText(text string) HistoryItem {
	return HistoryItem{Role: RoleUser, Content: HistoryText{Text: text}}
}
