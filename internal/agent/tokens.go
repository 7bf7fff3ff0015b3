package agent

// ApproxTokenCount estimates token usage by dividing character count by four.
// It is the fallback when a provider reports no usage.
func ApproxTokenCount(history []HistoryItem) int {
	total := 0
	for _, item := range history {
		total += len(contentString(item.Content))
	}
	return total / 4
}

func contentString(content HistoryContent) string {
	switch value := content.(type) {
	case HistoryText:
		return value.Text
	case AssistantTurn:
		size := value.Text
		for _, call := range value.ToolCalls {
			size += call.Name + call.Arguments
		}
		return size
	case ToolOutput:
		return value.Result.Output
	default:
		return ""
	}
}
